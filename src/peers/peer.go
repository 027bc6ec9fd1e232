package peers

import (
	"github.com/fractalnet/fractal/src/common"
)

// Peer is a known participant in the mesh, identified by its public key.
// Trust is the local quality score used to rank peers during topology
// maintenance; it is not replicated.
type Peer struct {
	PubKeyHex string
	Moniker   string
	Trust     float64

	id uint32
}

// NewPeer ...
func NewPeer(pubKeyHex, moniker string) *Peer {
	peer := &Peer{
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}

	return peer
}

// ID returns a compact numeric identifier derived from the public key. It is
// computed lazily and cached.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		p.computeID()
	}

	return p.id
}

// PubKeyBytes returns the raw public key bytes.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(p.PubKeyHex)
}

func (p *Peer) computeID() error {
	pubKey, err := p.PubKeyBytes()

	if err != nil {
		return err
	}

	p.id = common.Hash32(pubKey)

	return nil
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.PubKeyHex != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
