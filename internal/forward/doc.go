// Package forward delivers operations to other gardens.
//
// The HTTP gateway POSTs the JSON-encoded operation to the target garden's
// forward endpoint, {scheme}://{host}:{port}{url_prefix}api/v1/forward. Targets
// that require SSL are reached over mutual TLS using this garden's client
// certificate and CA bundle.
package forward
