// Package wamp implements a WebRTC signaling system using RPC over WebSockets.
//
// This package contains a WAMP server that relays RPC requests between
// connected clients, and a client which implements the Signal interface, and
// which is used to instantiate a WebRTC transport.
//
// If Fractal finds a cert.pem file in its data directory, it passes this
// certificate to the signal client. Otherwise it relies on platform trusted
// certificates to validate the server's certificate. There is also an option
// to skip certificate verification, but this should only be used for testing.
package wamp

const (
	// ErrProcessingOffer indicates that the client who received the offer ran
	// into an error while processing it.
	ErrProcessingOffer = "io.fractal.processing_offer"
)
