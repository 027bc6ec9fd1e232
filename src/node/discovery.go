package node

import (
	"math/rand"

	"github.com/fractalnet/fractal/src/peers"
)

// Discovery supplies candidate peers for topology maintenance to connect to.
// The mechanism is pluggable; the stock implementation samples a known peer
// set at random.
type Discovery interface {
	// Sample returns the address of one candidate peer not present in
	// exclude. It returns false when no candidate is available.
	Sample(exclude []string) (string, bool)
}

// PeerSetDiscovery samples candidates from a static peer set, typically the
// one read from peers.json.
type PeerSetDiscovery struct {
	peers  *peers.PeerSet
	selfID string
}

// NewPeerSetDiscovery is a factory method that returns a PeerSetDiscovery
// which never samples the local node's own address.
func NewPeerSetDiscovery(peerSet *peers.PeerSet, selfAddr string) *PeerSetDiscovery {
	return &PeerSetDiscovery{
		peers:  peerSet,
		selfID: selfAddr,
	}
}

// Sample returns a random known peer outside the exclusion list.
func (d *PeerSetDiscovery) Sample(exclude []string) (string, bool) {
	excluded := map[string]bool{d.selfID: true}
	for _, addr := range exclude {
		excluded[addr] = true
	}

	candidates := []string{}
	for _, p := range d.peers.Peers {
		if !excluded[p.PubKeyHex] {
			candidates = append(candidates, p.PubKeyHex)
		}
	}

	if len(candidates) == 0 {
		return "", false
	}

	return candidates[rand.Intn(len(candidates))], true
}
