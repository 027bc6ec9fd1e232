package signal

import "github.com/pion/webrtc/v2"

// Signal defines an interface for systems to exchange SDP offers and answers
// to establish WebRTC PeerConnections. It is the rendezvous collaborator that
// relays addressed control messages between not-yet-connected peers.
type Signal interface {
	// Addr returns the public address used to identify this end of a
	// connection within the signaling system.
	Addr() string

	// Listen is called to listen for incoming SDP offers, and forward them
	// to the Consumer channel.
	Listen() error

	// Consumer is the channel through which incoming SDP offers are passed.
	// SDP offers are wrapped around a promise object which offers a response
	// mechanism.
	Consumer() <-chan OfferPromise

	// Offer sends an SDP offer to the target and waits for an answer.
	Offer(target string, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)

	// Close closes the connection to the signaling system.
	Close() error
}
