package identity

import (
	"crypto/ecdsa"
	"encoding/hex"

	cm "github.com/fractalnet/fractal/src/common"
	"github.com/fractalnet/fractal/src/crypto"
	"github.com/fractalnet/fractal/src/crypto/keys"
	"github.com/fractalnet/fractal/src/store"
)

// Identity is the stable identity of the local node, derived from a memorized
// secret. The private key is exclusively owned by the local node and never
// transmitted.
type Identity struct {
	// ID is the stable node identifier, the hex-encoded SHA256 of the
	// public key bytes.
	ID string

	// PubKeyHex is the public key in the 0X-prefixed uncompressed hex form
	// carried in post author fields.
	PubKeyHex string

	// Key is the node's signing key.
	Key *ecdsa.PrivateKey
}

// New builds an Identity around an existing private key.
func New(key *ecdsa.PrivateKey) *Identity {
	pubBytes := keys.FromPublicKey(&key.PublicKey)

	return &Identity{
		ID:        hex.EncodeToString(crypto.SHA256(pubBytes)),
		PubKeyHex: keys.PublicKeyHex(&key.PublicKey),
		Key:       key,
	}
}

// Load recovers, or derives and persists, the identity for a login secret.
// The keypair material is stored keyed by the hash of the secret, so repeated
// logins with the same secret recover the same keypair.
func Load(s store.Store, secret string) (*Identity, error) {
	secretHash := hex.EncodeToString(crypto.SHA256([]byte(secret)))

	metaKey := store.KeypairKey(secretHash)

	raw, err := s.GetMeta(metaKey)
	if err == nil {
		key, err := keys.ParsePrivateKey(raw)
		if err != nil {
			return nil, err
		}
		return New(key), nil
	}

	if !cm.IsStore(err, cm.KeyNotFound) {
		return nil, err
	}

	key, err := keys.DeriveECDSAKey(secret)
	if err != nil {
		return nil, err
	}

	if err := s.PutMeta(metaKey, keys.DumpPrivateKey(key)); err != nil {
		return nil, err
	}

	return New(key), nil
}
