package node

import (
	"sort"

	"github.com/fractalnet/fractal/src/net"
	"github.com/sirupsen/logrus"
)

// Connect negotiates a session with the target peer. Connecting to self or to
// a peer with an open or pending session is a no-op. A negotiation failure
// leaves no half-open session and is not retried here; the next topology tick
// may try again.
func (n *Node) Connect(addr string) error {
	if addr == "" || addr == n.trans.AdvertiseAddr() {
		return nil
	}

	if err := n.trans.Dial(addr); err != nil {
		n.logger.WithError(err).WithField("peer", addr).Debug("Connect")
		return err
	}

	return nil
}

// syncWithPeer pushes every locally held non-draft post to a newly connected
// peer, one sync message per post. The receiver applies the same
// verify-then-accept rule as for post messages, so replays are harmless. A
// session closing mid-push just ends the push.
func (n *Node) syncWithPeer(peer string) {
	n.coreLock.Lock()
	active := n.core.ActivePosts()
	n.coreLock.Unlock()

	for _, post := range active {
		if err := n.trans.Send(peer, net.NewSyncMessage(post)); err != nil {
			n.logger.WithError(err).WithField("peer", peer).Debug("sync push")
			return
		}
	}

	n.logger.WithFields(logrus.Fields{
		"peer":  peer,
		"posts": len(active),
	}).Debug("Synced")
}

// maintainTopology tops the mesh up to the connection floor and prunes it
// down to the fan-out ceiling, preferring higher-scored peers.
func (n *Node) maintainTopology() {
	connected := n.trans.Peers()

	if len(connected) < n.conf.MinPeers && n.discovery != nil {
		if candidate, ok := n.discovery.Sample(connected); ok {
			n.logger.WithField("peer", candidate).Debug("Topology top-up")
			n.Connect(candidate)
			connected = n.trans.Peers()
		}
	}

	if len(connected) <= n.conf.MaxPeers {
		return
	}

	// rank by score, best first; ties broken by address for determinism
	sort.Slice(connected, func(i, j int) bool {
		si, sj := n.score(connected[i]), n.score(connected[j])
		if si != sj {
			return si > sj
		}
		return connected[i] < connected[j]
	})

	for _, peer := range connected[n.conf.MaxPeers:] {
		n.logger.WithField("peer", peer).Debug("Topology prune")
		n.trans.Disconnect(peer)
	}
}

func (n *Node) score(addr string) float64 {
	if n.scorer == nil {
		return defaultScore
	}
	return n.scorer.Score(addr)
}
