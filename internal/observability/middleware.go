package observability

import (
	"strconv"
	"time"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const operationKey = "gardenctl.operation"

// MarkOperation attaches the decoded operation to c so the access log and
// ingress metrics can report what was routed.
func MarkOperation(c *gin.Context, op *model.Operation) {
	if op != nil {
		c.Set(operationKey, op)
	}
}

func markedOperation(c *gin.Context) (*model.Operation, bool) {
	raw, ok := c.Get(operationKey)
	if !ok {
		return nil, false
	}
	op, ok := raw.(*model.Operation)
	return op, ok && op != nil
}

// RequestLogger writes one access record per request. Forwarded operations
// are logged as forward_received with their routing fields; health and
// metrics polls drop to debug.
func RequestLogger(garden string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		op, forwarded := markedOperation(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case forwarded:
			event = logger.Info()
		default:
			event = logger.Debug()
		}

		event = event.
			Str("garden", garden).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if !forwarded {
			event.Msg("http_request")
			return
		}
		event.
			Str("type", string(op.OperationType)).
			Str("source", op.SourceGardenName).
			Str("target", op.TargetGardenName).
			Msg("forward_received")
	}
}

// RequestMetricsMiddleware records every request, and forwarded operations a
// second time by type and sending garden.
func RequestMetricsMiddleware(garden string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		RecordHTTPRequest(garden, c.Request.Method, routePath(c), status, time.Since(start))
		if op, ok := markedOperation(c); ok {
			RecordForwardReceived(garden, string(op.OperationType), op.SourceGardenName, status)
		}
	}
}

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
