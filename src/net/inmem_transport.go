package net

import (
	"sync"
)

// InmemNetwork links InmemTransports together so nodes can be tested
// in-memory without going over a network.
type InmemNetwork struct {
	sync.Mutex
	transports map[string]*InmemTransport
}

// NewInmemNetwork ...
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		transports: make(map[string]*InmemTransport),
	}
}

// NewTransport creates an InmemTransport registered on this network under the
// given address.
func (n *InmemNetwork) NewTransport(addr string) *InmemTransport {
	trans := &InmemTransport{
		network:    n,
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		consumerCh: make(chan Inbound, 64),
		eventCh:    make(chan PeerEvent, 64),
	}

	n.Lock()
	defer n.Unlock()
	n.transports[addr] = trans

	return trans
}

func (n *InmemNetwork) lookup(addr string) (*InmemTransport, bool) {
	n.Lock()
	defer n.Unlock()
	trans, ok := n.transports[addr]
	return trans, ok
}

// InmemTransport implements the Transport interface in-memory. Messages are
// marshalled and unmarshalled on delivery, so wire semantics (replication by
// value) hold just like on a real network.
type InmemTransport struct {
	sync.RWMutex
	network    *InmemNetwork
	localAddr  string
	peers      map[string]*InmemTransport
	consumerCh chan Inbound
	eventCh    chan PeerEvent
	shutdown   bool
}

// Listen implements the Transport interface.
func (i *InmemTransport) Listen() {}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan Inbound {
	return i.consumerCh
}

// Events implements the Transport interface.
func (i *InmemTransport) Events() <-chan PeerEvent {
	return i.eventCh
}

// Dial implements the Transport interface. Both ends of the session observe a
// SessionOpened event, like a completed negotiation would produce.
func (i *InmemTransport) Dial(target string) error {
	i.Lock()
	if i.shutdown {
		i.Unlock()
		return ErrTransportShutdown
	}

	if _, ok := i.peers[target]; ok {
		i.Unlock()
		return nil
	}
	i.Unlock()

	peer, ok := i.network.lookup(target)
	if !ok {
		return ErrPeerNotConnected
	}

	i.link(peer)
	peer.link(i)

	return nil
}

func (i *InmemTransport) link(peer *InmemTransport) {
	i.Lock()
	defer i.Unlock()

	if _, ok := i.peers[peer.localAddr]; ok {
		return
	}

	i.peers[peer.localAddr] = peer
	i.eventCh <- PeerEvent{Type: SessionOpened, PeerID: peer.localAddr}
}

func (i *InmemTransport) unlink(addr string) {
	i.Lock()
	defer i.Unlock()

	if _, ok := i.peers[addr]; !ok {
		return
	}

	delete(i.peers, addr)

	if !i.shutdown {
		i.eventCh <- PeerEvent{Type: SessionClosed, PeerID: addr}
	}
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(target string, msg *Message) error {
	i.RLock()
	if i.shutdown {
		i.RUnlock()
		return ErrTransportShutdown
	}

	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		return ErrPeerNotConnected
	}

	raw, err := msg.Marshal()
	if err != nil {
		return err
	}

	return peer.deliver(i.localAddr, raw)
}

func (i *InmemTransport) deliver(from string, raw []byte) error {
	i.RLock()
	defer i.RUnlock()

	if i.shutdown {
		return ErrTransportShutdown
	}

	msg := new(Message)
	if err := msg.Unmarshal(raw); err != nil {
		return err
	}

	i.consumerCh <- Inbound{From: from, Msg: msg}

	return nil
}

// Disconnect implements the Transport interface.
func (i *InmemTransport) Disconnect(target string) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		return
	}

	i.unlink(target)
	peer.unlink(i.localAddr)
}

// Peers implements the Transport interface.
func (i *InmemTransport) Peers() []string {
	i.RLock()
	defer i.RUnlock()

	res := make([]string, 0, len(i.peers))
	for addr := range i.peers {
		res = append(res, addr)
	}

	return res
}

// Close implements the Transport interface.
func (i *InmemTransport) Close() error {
	i.Lock()
	if i.shutdown {
		i.Unlock()
		return nil
	}
	i.shutdown = true
	remotes := make([]*InmemTransport, 0, len(i.peers))
	for _, peer := range i.peers {
		remotes = append(remotes, peer)
	}
	i.peers = make(map[string]*InmemTransport)
	i.Unlock()

	for _, peer := range remotes {
		peer.unlink(i.localAddr)
	}

	return nil
}
