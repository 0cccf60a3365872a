package routing

import "errors"

var (
	// ErrRoutingRequest marks an operation that cannot be routed as submitted.
	ErrRoutingRequest = errors.New("routing: invalid routing request")
	// ErrUnknownGarden marks a target garden that cannot be resolved.
	ErrUnknownGarden = errors.New("routing: unknown garden")

	ErrIncompleteHandlers = errors.New("routing: handler registry incomplete")
	ErrQueueClosed        = errors.New("routing: forward queue closed")
)
