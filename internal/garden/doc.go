// Package garden assembles a running garden: the durable store, routing
// state, the forward gateway and queue, the event bus and the HTTP surface.
//
// Local operation handlers live here too. Most are thin store-backed
// implementations; kinds whose business logic belongs to plugin or job
// runners answer ErrHandlerUnavailable.
package garden
