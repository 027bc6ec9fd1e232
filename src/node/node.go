package node

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fractalnet/fractal/src/config"
	"github.com/fractalnet/fractal/src/net"
	"github.com/fractalnet/fractal/src/posts"
	"github.com/sirupsen/logrus"
)

//Node defines a fractal node
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	core     *Core
	coreLock sync.Mutex

	trans   net.Transport
	netCh   <-chan net.Inbound
	eventCh <-chan net.PeerEvent

	discovery Discovery
	scorer    Scorer

	controlTimer *ControlTimer

	sigintCh   chan os.Signal
	suspendCh  chan struct{}
	resumeCh   chan struct{}
	shutdownCh chan struct{}

	shutdownOnce sync.Once

	start time.Time
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config,
	core *Core,
	trans net.Transport,
	discovery Discovery,
	scorer Scorer,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:         conf,
		logger:       conf.Logger().WithField("this_id", core.ID()),
		core:         core,
		trans:        trans,
		netCh:        trans.Consumer(),
		eventCh:      trans.Events(),
		discovery:    discovery,
		scorer:       scorer,
		controlTimer: NewTickingControlTimer(),
		sigintCh:     sigintCh,
		suspendCh:    make(chan struct{}, 1),
		resumeCh:     make(chan struct{}, 1),
		shutdownCh:   make(chan struct{}),
	}

	return &node
}

//Init intialises the node: the transport starts listening for negotiation
//requests and inbound messages, and the node enters the Gossiping state.
func (n *Node) Init() error {
	n.trans.Listen()

	n.setState(Gossiping)

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go n.Run()
}

//Run invokes the main loop of the node
func (n *Node) Run() {
	//The ControlTimer paces topology maintenance.
	go n.controlTimer.Run(n.conf.TopologyInterval)

	n.start = time.Now()

	//Execute Node State Machine
	for {
		//Run different routines depending on node state
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Gossiping:
			n.gossiping()
		case Suspended:
			n.suspended()
		case Shutdown:
			return
		}
	}
}

// gossiping is the main event-dispatch loop. Inbound messages, session
// lifecycle events, and topology ticks are dispatched one at a time; core
// state is only ever mutated under coreLock.
func (n *Node) gossiping() {
	n.logger.Debug("GOSSIPING")

	for {
		select {
		case in := <-n.netCh:
			n.goFunc(func() { n.processMessage(in) })
		case ev := <-n.eventCh:
			n.processPeerEvent(ev)
		case <-n.controlTimer.tickCh:
			n.goFunc(func() { n.maintainTopology() })
			n.controlTimer.resetCh <- n.conf.TopologyInterval
		case <-n.suspendCh:
			n.setState(Suspended)
			return
		case <-n.shutdownCh:
			n.setState(Shutdown)
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// suspended keeps draining network traffic without acting on it, so channel
// back-pressure cannot stall the transport while the node is paused.
func (n *Node) suspended() {
	n.logger.Debug("SUSPENDED")

	for {
		select {
		case in := <-n.netCh:
			n.logger.WithField("from", in.From).Debug("Dropping message while suspended")
		case <-n.eventCh:
		case <-n.controlTimer.tickCh:
			n.controlTimer.resetCh <- n.conf.TopologyInterval
		case <-n.resumeCh:
			n.setState(Gossiping)
			return
		case <-n.shutdownCh:
			n.setState(Shutdown)
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// processMessage dispatches one inbound gossip message. Protocol anomalies
// from peers are never fatal; they are dropped with a diagnostic trace.
func (n *Node) processMessage(in net.Inbound) {
	msg := in.Msg

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	switch msg.Type {
	case net.MsgPost, net.MsgSync:
		if _, err := n.core.AddPost(msg.Post); err != nil {
			n.logger.WithError(err).Error("Storing inbound post")
		}
	case net.MsgLike:
		updated, err := n.core.Like(msg.PostID, msg.Sender)
		if err != nil {
			n.logger.WithError(err).Error("Applying like")
			return
		}
		n.rebroadcast(updated)
	case net.MsgDislike:
		updated, err := n.core.Dislike(msg.PostID, msg.Sender)
		if err != nil {
			n.logger.WithError(err).Error("Applying dislike")
			return
		}
		n.rebroadcast(updated)
	default:
		n.logger.WithFields(logrus.Fields{
			"from": in.From,
			"type": msg.Type,
		}).Debug("Dropping message of unknown type")
	}
}

func (n *Node) processPeerEvent(ev net.PeerEvent) {
	switch ev.Type {
	case net.SessionOpened:
		n.logger.WithField("peer", ev.PeerID).Debug("Session opened")
		n.goFunc(func() { n.syncWithPeer(ev.PeerID) })
	case net.SessionClosed:
		n.logger.WithField("peer", ev.PeerID).Debug("Session closed")
	}
}

// rebroadcast pushes an updated post record to every connected peer, so they
// converge on the latest counters for posts they hold. A nil post is a no-op.
func (n *Node) rebroadcast(post *posts.Post) {
	if post == nil {
		return
	}
	n.broadcast(net.NewPostMessage(post))
}

// broadcast fans one message out to every connected peer. Send failures are
// logged and skipped; a session closing mid-broadcast is not a fault.
func (n *Node) broadcast(msg *net.Message) {
	for _, peer := range n.trans.Peers() {
		if err := n.trans.Send(peer, msg); err != nil {
			n.logger.WithError(err).WithField("peer", peer).Debug("broadcast")
		}
	}
}

/*******************************************************************************
Public API
*******************************************************************************/

// CreatePost authors and publishes a post. Non-draft posts are broadcast to
// every connected peer.
func (n *Node) CreatePost(content string, draft bool) (*posts.Post, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	post, err := n.core.CreatePost(content, draft)
	if err != nil {
		return nil, err
	}

	if !post.IsDraft {
		n.broadcast(net.NewPostMessage(post))
	}

	return post, nil
}

// EditPost rewrites one of the local node's own posts and publishes the new
// version. Editing a post the node does not own is a silent no-op.
func (n *Node) EditPost(id string, content string) (*posts.Post, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	post, err := n.core.EditPost(id, content)
	if err != nil {
		return nil, err
	}

	if post != nil {
		n.broadcast(net.NewPostMessage(post))
	}

	return post, nil
}

// Like records a local positive evaluation of a post and propagates it.
func (n *Node) Like(postID string) error {
	return n.evaluate(net.MsgLike, postID)
}

// Dislike records a local negative evaluation of a post and propagates it.
func (n *Node) Dislike(postID string) error {
	return n.evaluate(net.MsgDislike, postID)
}

func (n *Node) evaluate(t net.MsgType, postID string) error {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	var updated *posts.Post
	var err error

	switch t {
	case net.MsgLike:
		updated, err = n.core.Like(postID, n.core.ID())
	case net.MsgDislike:
		updated, err = n.core.Dislike(postID, n.core.ID())
	}

	if err != nil {
		return err
	}

	n.broadcast(net.NewEvaluationMessage(t, postID, n.core.ID()))
	n.rebroadcast(updated)

	return nil
}

// GetPost returns a copy of a post from the active or draft set.
func (n *Node) GetPost(id string) (*posts.Post, bool) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.GetPost(id)
}

// ActivePosts returns copies of the active post set.
func (n *Node) ActivePosts() []*posts.Post {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.ActivePosts()
}

// DraftPosts returns copies of the node's own demoted posts.
func (n *Node) DraftPosts() []*posts.Post {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.DraftPosts()
}

// ID returns the local node's identifier.
func (n *Node) ID() string {
	return n.core.ID()
}

// AdvertiseAddr returns the address peers use to reach this node.
func (n *Node) AdvertiseAddr() string {
	return n.trans.AdvertiseAddr()
}

// Peers returns the addresses of peers with established sessions.
func (n *Node) Peers() []string {
	return n.trans.Peers()
}

// GetStats returns operational statistics.
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	res := map[string]string{
		"id":         n.core.ID(),
		"moniker":    n.conf.Moniker,
		"state":      n.getState().String(),
		"num_peers":  strconv.Itoa(len(n.trans.Peers())),
		"num_posts":  strconv.Itoa(len(n.core.posts)),
		"num_drafts": strconv.Itoa(len(n.core.drafts)),
		"post_count": strconv.Itoa(n.core.postCount),
		"trust":      strconv.FormatFloat(n.core.trust, 'f', 2, 64),
	}

	if !n.start.IsZero() {
		res["uptime"] = time.Since(n.start).String()
	}

	if banUntil := n.core.BanUntil(); !banUntil.IsZero() {
		res["ban_until"] = banUntil.Format(time.RFC3339)
	}

	return res
}

// Suspend pauses event processing without tearing sessions down.
func (n *Node) Suspend() {
	select {
	case n.suspendCh <- struct{}{}:
	default:
	}
}

// Resume restarts event processing after a Suspend.
func (n *Node) Resume() {
	select {
	case n.resumeCh <- struct{}{}:
	default:
	}
}

//Shutdown stops the node and closes the transport
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("SHUTDOWN")

		n.setState(Shutdown)

		close(n.shutdownCh)

		n.controlTimer.Shutdown()

		//wait for goroutines
		n.waitRoutines()

		if err := n.trans.Close(); err != nil {
			n.logger.WithError(err).Error("Closing transport")
		}

		//close db
		if err := n.core.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	})
}
