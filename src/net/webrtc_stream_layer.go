package net

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fractalnet/fractal/src/net/signal"
	webrtc "github.com/pion/webrtc/v2"
	"github.com/sirupsen/logrus"
)

// peerStream couples a usable connection with the address of the peer on the
// other end. The accept path needs the address because, unlike Dial, it
// learns it from the signaling envelope.
type peerStream struct {
	peerID string
	conn   net.Conn
}

// WebRTCStreamLayer negotiates WebRTC PeerConnections through a Signal and
// exposes their data channels as net.Conn streams.
type WebRTCStreamLayer struct {
	peerConnLock    sync.Mutex
	peerConnections map[string]*webrtc.PeerConnection

	signal     signal.Signal
	iceServers []webrtc.ICEServer
	incoming   chan peerStream
	shutdownCh chan struct{}
	logger     *logrus.Entry
}

// newWebRTCStreamLayer instantiates a new WebRTCStreamLayer.
func newWebRTCStreamLayer(
	sig signal.Signal,
	iceServers []webrtc.ICEServer,
	logger *logrus.Entry,
) *WebRTCStreamLayer {
	return &WebRTCStreamLayer{
		peerConnections: make(map[string]*webrtc.PeerConnection),
		signal:          sig,
		iceServers:      iceServers,
		incoming:        make(chan peerStream),
		shutdownCh:      make(chan struct{}),
		logger:          logger,
	}
}

// listen receives SDP offers from the Signal, creates corresponding
// PeerConnections, and responds. The PeerConnection's data channel is piped
// into the incoming aggregator once open.
func (w *WebRTCStreamLayer) listen() {
	go w.signal.Listen()

	consumer := w.signal.Consumer()

	for {
		select {
		case offerPromise := <-consumer:
			if err := w.processOffer(offerPromise); err != nil {
				w.logger.WithError(err).WithField("from", offerPromise.From).
					Error("Processing offer")
			}
		case <-w.shutdownCh:
			return
		}
	}
}

func (w *WebRTCStreamLayer) processOffer(promise signal.OfferPromise) error {
	w.logger.WithField("from", promise.From).Debug("Processing offer")

	connCh := make(chan net.Conn, 1)

	peerConnection, err := w.newPeerConnection(promise.From, connCh, false)
	if err != nil {
		promise.Respond(nil, err)
		return err
	}

	// Set the remote SessionDescription
	if err := peerConnection.SetRemoteDescription(promise.Offer); err != nil {
		promise.Respond(nil, err)
		return err
	}

	// Create answer
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		promise.Respond(nil, err)
		return err
	}

	// Sets the LocalDescription, and starts our UDP listeners
	if err := peerConnection.SetLocalDescription(answer); err != nil {
		promise.Respond(nil, err)
		return err
	}

	promise.Respond(&answer, nil)

	w.setPeerConnection(promise.From, peerConnection)

	// Forward the connection to the aggregator when the data channel opens.
	go func() {
		select {
		case conn := <-connCh:
			select {
			case w.incoming <- peerStream{peerID: promise.From, conn: conn}:
			case <-w.shutdownCh:
				conn.Close()
			}
		case <-w.shutdownCh:
		}
	}()

	return nil
}

// newPeerConnection creates a PeerConnection and pipes its data channel into
// connCh once it opens. The createDataChannel parameter determines whether a
// new data channel is created (when we make the offer) or whether we bind to
// the OnDataChannel handler (when we answer).
func (w *WebRTCStreamLayer) newPeerConnection(peerID string, connCh chan net.Conn, createDataChannel bool) (*webrtc.PeerConnection, error) {
	// Create a SettingEngine and enable Detach
	s := webrtc.SettingEngine{}
	s.DetachDataChannels()

	api := webrtc.NewAPI(webrtc.WithSettingEngine(s))

	config := webrtc.Configuration{
		ICEServers: w.iceServers,
	}

	peerConnection, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		w.logger.WithFields(logrus.Fields{
			"peer":  peerID,
			"state": connectionState.String(),
		}).Debug("ICE Connection State has changed")
	})

	if createDataChannel {
		dataChannel, err := peerConnection.CreateDataChannel("posts", nil)
		if err != nil {
			return nil, err
		}

		w.pipeDataChannel(dataChannel, connCh)
	} else {
		peerConnection.OnDataChannel(func(d *webrtc.DataChannel) {
			w.pipeDataChannel(d, connCh)
		})
	}

	return peerConnection, nil
}

func (w *WebRTCStreamLayer) pipeDataChannel(dataChannel *webrtc.DataChannel, connCh chan net.Conn) {
	dataChannel.OnOpen(func() {
		raw, err := dataChannel.Detach()
		if err != nil {
			w.logger.WithError(err).Error("Error detaching DataChannel")
			return
		}

		connCh <- NewWebRTCConn(raw)
	})
}

// Dial negotiates a PeerConnection with the target through the signaling
// system and returns a net.Conn wrapping the detached data channel.
func (w *WebRTCStreamLayer) Dial(target string, timeout time.Duration) (net.Conn, error) {
	// connCh receives the net.Conn asynchronously when the data channel's
	// OnOpen callback fires.
	connCh := make(chan net.Conn, 1)

	pc, err := w.newPeerConnection(target, connCh, true)
	if err != nil {
		return nil, err
	}

	// Create an offer to send to the signaling system
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}

	// Sets the LocalDescription, and starts our UDP listeners
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}

	// Synchronous offer/answer exchange through the signaling system.
	answer, err := w.signal.Offer(target, offer)
	if err != nil {
		return nil, err
	}

	if answer == nil {
		return nil, fmt.Errorf("no answer from %s", target)
	}

	if err := pc.SetRemoteDescription(*answer); err != nil {
		return nil, err
	}

	w.setPeerConnection(target, pc)

	// Wait for the data channel to open
	timer := time.After(timeout)
	select {
	case <-timer:
		return nil, fmt.Errorf("dial timeout for %s", target)
	case <-w.shutdownCh:
		return nil, ErrTransportShutdown
	case conn := <-connCh:
		return conn, nil
	}
}

// Incoming returns the channel through which accepted peer streams surface.
func (w *WebRTCStreamLayer) Incoming() <-chan peerStream {
	return w.incoming
}

func (w *WebRTCStreamLayer) setPeerConnection(peerID string, pc *webrtc.PeerConnection) {
	w.peerConnLock.Lock()
	defer w.peerConnLock.Unlock()

	if prev, ok := w.peerConnections[peerID]; ok {
		prev.Close()
	}

	w.peerConnections[peerID] = pc
}

// ClosePeer tears down the PeerConnection negotiated with the given peer.
func (w *WebRTCStreamLayer) ClosePeer(peerID string) {
	w.peerConnLock.Lock()
	defer w.peerConnLock.Unlock()

	if pc, ok := w.peerConnections[peerID]; ok {
		pc.Close()
		delete(w.peerConnections, peerID)
	}
}

// Close closes the Signal and all the PeerConnections
func (w *WebRTCStreamLayer) Close() error {
	close(w.shutdownCh)

	// Close the connection to the signal server
	err := w.signal.Close()

	w.peerConnLock.Lock()
	defer w.peerConnLock.Unlock()

	for _, pc := range w.peerConnections {
		pc.Close()
	}

	return err
}

// Addr returns the address under which this node is reachable through the
// signaling system.
func (w *WebRTCStreamLayer) Addr() string {
	return w.signal.Addr()
}
