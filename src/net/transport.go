package net

import "errors"

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrPeerNotConnected is returned when sending to a peer without an
	// established session.
	ErrPeerNotConnected = errors.New("peer not connected")
)

// PeerEventType distinguishes session lifecycle events.
type PeerEventType uint8

const (
	// SessionOpened fires when a session's underlying channel becomes usable.
	SessionOpened PeerEventType = iota
	// SessionClosed fires when a session's underlying channel closes.
	SessionClosed
)

// PeerEvent notifies the node of a session lifecycle change.
type PeerEvent struct {
	Type   PeerEventType
	PeerID string
}

// Inbound wraps a gossip message with the address of the session it arrived
// on.
type Inbound struct {
	From string
	Msg  *Message
}

// Transport provides an interface for network transports to allow a node to
// gossip with other nodes. Sessions are message-framed bidirectional channels
// negotiated out-of-band; the transport guarantees at most one session per
// peer.
type Transport interface {

	// Listen starts the transport listening for negotiation requests and
	// inbound messages.
	Listen()

	// AdvertiseAddr returns the public address other peers use to reach us.
	AdvertiseAddr() string

	// Consumer returns the channel through which inbound messages are
	// delivered.
	Consumer() <-chan Inbound

	// Events returns the channel through which session lifecycle events are
	// delivered.
	Events() <-chan PeerEvent

	// Dial negotiates a session with the target peer. It is a no-op if a
	// session is already open or pending for that peer.
	Dial(target string) error

	// Send delivers one message over the target's established session.
	Send(target string, msg *Message) error

	// Disconnect tears down the session with the target peer, if any.
	Disconnect(target string)

	// Peers returns the addresses of peers with established sessions.
	Peers() []string

	// Close permanently closes the transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
