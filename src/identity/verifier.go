package identity

import (
	"crypto/ecdsa"

	cm "github.com/fractalnet/fractal/src/common"
	"github.com/fractalnet/fractal/src/crypto/keys"
	"github.com/fractalnet/fractal/src/posts"
	lru "github.com/hashicorp/golang-lru/v2"
)

// verifierCacheSize bounds the number of parsed author keys kept in memory.
const verifierCacheSize = 1000

// Verifier authenticates post authorship. Parsed public keys are cached by
// their hex form, so verifying many posts from the same author only pays the
// point-decoding cost once.
type Verifier struct {
	cache *lru.Cache[string, *ecdsa.PublicKey]
}

// NewVerifier ...
func NewVerifier() *Verifier {
	cache, _ := lru.New[string, *ecdsa.PublicKey](verifierCacheSize)
	return &Verifier{
		cache: cache,
	}
}

// VerifyPost checks the post's signature against its author field.
func (v *Verifier) VerifyPost(post *posts.Post) bool {
	pub := v.authorKey(post.Author)
	if pub == nil {
		return false
	}

	return post.Verify(pub)
}

func (v *Verifier) authorKey(author string) *ecdsa.PublicKey {
	if pub, ok := v.cache.Get(author); ok {
		return pub
	}

	raw, err := cm.DecodeFromString(author)
	if err != nil {
		return nil
	}

	pub := keys.ToPublicKey(raw)
	if pub == nil {
		return nil
	}

	v.cache.Add(author, pub)

	return pub
}
