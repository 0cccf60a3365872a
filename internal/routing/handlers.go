package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
)

// Handler executes one operation kind on the local garden. When the operation
// carries a model it is args[0].
type Handler func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// HandlerRegistry is the fixed dispatch table for local execution.
type HandlerRegistry struct {
	handlers map[model.OperationType]Handler
}

// NewHandlerRegistry requires a handler for every recognized operation kind
// and rejects handlers for unknown kinds.
func NewHandlerRegistry(handlers map[model.OperationType]Handler) (*HandlerRegistry, error) {
	out := make(map[model.OperationType]Handler, len(handlers))
	var missing []string
	for _, t := range model.OperationTypes() {
		h, ok := handlers[t]
		if !ok || h == nil {
			missing = append(missing, string(t))
			continue
		}
		out[t] = h
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteHandlers, strings.Join(missing, ", "))
	}
	var unknown []string
	for t := range handlers {
		if !t.Valid() {
			unknown = append(unknown, string(t))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown operation types %s", ErrIncompleteHandlers, strings.Join(unknown, ", "))
	}
	return &HandlerRegistry{handlers: out}, nil
}

func (r *HandlerRegistry) Get(t model.OperationType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}
