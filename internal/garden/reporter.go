package garden

import (
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/routing"
	"github.com/rs/zerolog/log"
)

// ForwardReporter logs and counts every delivery attempt from the forward
// queue. Failures never reach the caller that queued the operation, so this
// is where they become visible.
type ForwardReporter struct {
	GardenName string
}

var _ routing.ForwardObserver = ForwardReporter{}

func (r ForwardReporter) ObserveForward(outcome routing.ForwardOutcome) {
	opType := ""
	if outcome.Operation != nil {
		opType = string(outcome.Operation.OperationType)
	}
	observability.RecordForward(outcome.Garden, opType, outcome.Duration, outcome.Err == nil)

	if outcome.Err != nil {
		log.Error().
			Err(outcome.Err).
			Str("garden", r.GardenName).
			Str("target", outcome.Garden).
			Str("type", opType).
			Dur("duration", outcome.Duration).
			Msg("forward_failed")
		return
	}
	log.Debug().
		Str("garden", r.GardenName).
		Str("target", outcome.Garden).
		Str("type", opType).
		Dur("duration", outcome.Duration).
		Msg("forward_delivered")
}
