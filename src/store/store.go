package store

import (
	"fmt"

	"github.com/fractalnet/fractal/src/posts"
)

// Store is the local persistence collaborator. It exposes two logical tables:
// posts, keyed by post id, and node metadata, keyed by a fixed set of named
// entries. Each Put is atomic with respect to the record it touches.
type Store interface {
	// GetPost retrieves a post by id. Returns a StoreErr with KeyNotFound
	// when the id is unknown.
	GetPost(id string) (*posts.Post, error)

	// AllPosts returns every stored post, in no particular order.
	AllPosts() ([]*posts.Post, error)

	// PutPost inserts or replaces a post record.
	PutPost(post *posts.Post) error

	// GetMeta retrieves a named metadata entry.
	GetMeta(key string) ([]byte, error)

	// PutMeta inserts or replaces a named metadata entry.
	PutMeta(key string, value []byte) error

	// Close releases underlying resources.
	Close() error
}

// Metadata key constructors. The meta table holds the per-identity post count
// and keypair material keyed by the hash of the login secret.

// PostCountKey returns the meta key holding the post count of a node.
func PostCountKey(nodeID string) string {
	return fmt.Sprintf("postcount_%s", nodeID)
}

// KeypairKey returns the meta key holding keypair material for the identity
// derived from the secret with the given hash.
func KeypairKey(secretHash string) string {
	return fmt.Sprintf("keypair_%s", secretHash)
}
