package node

import (
	"github.com/fractalnet/fractal/src/peers"
)

//Scorer ranks connected peers during topology pruning; higher is better.
type Scorer interface {
	Score(addr string) float64
}

//+++++++++++++++++++++++++++++++++++++++
//TRUST

// defaultScore is assumed for peers absent from the trust table.
const defaultScore = 0

//TrustScorer scores peers by the trust field of a known peer set, falling
//back to a default for strangers.
type TrustScorer struct {
	peers *peers.PeerSet
}

//NewTrustScorer is a factory method that returns a new instance of TrustScorer
func NewTrustScorer(peerSet *peers.PeerSet) *TrustScorer {
	return &TrustScorer{
		peers: peerSet,
	}
}

//Score returns the trust score of a peer
func (ts *TrustScorer) Score(addr string) float64 {
	peer, ok := ts.peers.ByPubKey[addr]
	if !ok {
		return defaultScore
	}

	return peer.Trust
}
