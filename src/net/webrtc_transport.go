package net

import (
	"net"
	"sync"
	"time"

	"github.com/fractalnet/fractal/src/net/signal"
	webrtc "github.com/pion/webrtc/v2"
	"github.com/sirupsen/logrus"
)

// WebRTCTransport implements the Transport interface on top of a
// WebRTCStreamLayer. Each established session is one framed net.Conn; a read
// loop per session feeds the consumer channel. The signal is the mechanism
// for peers to exchange connection information prior to establishing a direct
// p2p link.
type WebRTCTransport struct {
	sync.Mutex
	stream *WebRTCStreamLayer

	sessions map[string]*session
	pending  map[string]struct{}

	consumerCh  chan Inbound
	eventCh     chan PeerEvent
	dialTimeout time.Duration
	shutdownCh  chan struct{}
	shutdown    bool
	logger      *logrus.Entry
}

// session is one established peer channel. The write lock serialises frames
// from concurrent senders.
type session struct {
	peerID    string
	conn      net.Conn
	writeLock sync.Mutex
}

// NewWebRTCTransport returns a Transport built on top of a WebRTC
// StreamLayer.
func NewWebRTCTransport(
	sig signal.Signal,
	iceServers []webrtc.ICEServer,
	dialTimeout time.Duration,
	logger *logrus.Entry,
) *WebRTCTransport {
	return &WebRTCTransport{
		stream:      newWebRTCStreamLayer(sig, iceServers, logger),
		sessions:    make(map[string]*session),
		pending:     make(map[string]struct{}),
		consumerCh:  make(chan Inbound, 64),
		eventCh:     make(chan PeerEvent, 64),
		dialTimeout: dialTimeout,
		shutdownCh:  make(chan struct{}),
		logger:      logger,
	}
}

// Listen implements the Transport interface.
func (t *WebRTCTransport) Listen() {
	go t.stream.listen()
	go t.acceptLoop()
}

// acceptLoop registers sessions surfacing from the stream layer's responder
// path.
func (t *WebRTCTransport) acceptLoop() {
	for {
		select {
		case ps := <-t.stream.Incoming():
			t.register(ps.peerID, ps.conn)
		case <-t.shutdownCh:
			return
		}
	}
}

// register installs an established connection as the session for a peer. If a
// session already exists the new connection is discarded: at most one session
// per peer.
func (t *WebRTCTransport) register(peerID string, conn net.Conn) {
	t.Lock()

	if t.shutdown {
		t.Unlock()
		conn.Close()
		return
	}

	if _, ok := t.sessions[peerID]; ok {
		t.Unlock()
		t.logger.WithField("peer", peerID).Debug("Duplicate session discarded")
		conn.Close()
		return
	}

	s := &session{peerID: peerID, conn: conn}
	t.sessions[peerID] = s
	t.Unlock()

	t.eventCh <- PeerEvent{Type: SessionOpened, PeerID: peerID}

	go t.readLoop(s)
}

// readLoop decodes inbound frames and feeds the consumer channel. Unparsable
// messages are dropped with a diagnostic trace; a framing error ends the
// session.
func (t *WebRTCTransport) readLoop(s *session) {
	for {
		payload, err := readFrame(s.conn)
		if err != nil {
			t.drop(s)
			return
		}

		msg := new(Message)
		if err := msg.Unmarshal(payload); err != nil {
			t.logger.WithError(err).WithField("peer", s.peerID).
				Debug("Dropping malformed message")
			continue
		}

		if err := msg.Validate(); err != nil {
			t.logger.WithError(err).WithField("peer", s.peerID).
				Debug("Dropping invalid message")
			continue
		}

		select {
		case t.consumerCh <- Inbound{From: s.peerID, Msg: msg}:
		case <-t.shutdownCh:
			return
		}
	}
}

// drop removes a session and notifies the node. It is a safe no-op when the
// session was already replaced or removed.
func (t *WebRTCTransport) drop(s *session) {
	t.Lock()
	current, ok := t.sessions[s.peerID]
	if !ok || current != s {
		t.Unlock()
		return
	}
	delete(t.sessions, s.peerID)
	closed := t.shutdown
	t.Unlock()

	s.conn.Close()
	t.stream.ClosePeer(s.peerID)

	if !closed {
		t.eventCh <- PeerEvent{Type: SessionClosed, PeerID: s.peerID}
	}
}

// AdvertiseAddr implements the Transport interface.
func (t *WebRTCTransport) AdvertiseAddr() string {
	return t.stream.Addr()
}

// Consumer implements the Transport interface.
func (t *WebRTCTransport) Consumer() <-chan Inbound {
	return t.consumerCh
}

// Events implements the Transport interface.
func (t *WebRTCTransport) Events() <-chan PeerEvent {
	return t.eventCh
}

// Dial implements the Transport interface. A dial for a peer with an open or
// pending session is a no-op.
func (t *WebRTCTransport) Dial(target string) error {
	t.Lock()
	if t.shutdown {
		t.Unlock()
		return ErrTransportShutdown
	}

	if _, ok := t.sessions[target]; ok {
		t.Unlock()
		return nil
	}

	if _, ok := t.pending[target]; ok {
		t.Unlock()
		return nil
	}

	t.pending[target] = struct{}{}
	t.Unlock()

	conn, err := t.stream.Dial(target, t.dialTimeout)

	t.Lock()
	delete(t.pending, target)
	t.Unlock()

	if err != nil {
		// half-open negotiation state is cleaned up; the next topology
		// tick may retry
		t.stream.ClosePeer(target)
		return err
	}

	t.register(target, conn)

	return nil
}

// Send implements the Transport interface.
func (t *WebRTCTransport) Send(target string, msg *Message) error {
	t.Lock()
	s, ok := t.sessions[target]
	t.Unlock()

	if !ok {
		return ErrPeerNotConnected
	}

	payload, err := msg.Marshal()
	if err != nil {
		return err
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := writeFrame(s.conn, payload); err != nil {
		t.drop(s)
		return err
	}

	return nil
}

// Disconnect implements the Transport interface.
func (t *WebRTCTransport) Disconnect(target string) {
	t.Lock()
	s, ok := t.sessions[target]
	t.Unlock()

	if ok {
		t.drop(s)
	}
}

// Peers implements the Transport interface.
func (t *WebRTCTransport) Peers() []string {
	t.Lock()
	defer t.Unlock()

	res := make([]string, 0, len(t.sessions))
	for peerID := range t.sessions {
		res = append(res, peerID)
	}

	return res
}

// Close implements the Transport interface.
func (t *WebRTCTransport) Close() error {
	t.Lock()
	if t.shutdown {
		t.Unlock()
		return nil
	}
	t.shutdown = true
	sessions := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.sessions = make(map[string]*session)
	t.Unlock()

	close(t.shutdownCh)

	for _, s := range sessions {
		s.conn.Close()
	}

	return t.stream.Close()
}
