package posts

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/fractalnet/fractal/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

// Post is a signed, replicated content record. It is replicated by value to
// every peer; the counters are absolute snapshots of the last writer's view.
type Post struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	Signature      string `json:"signature"`
	Author         string `json:"author"`
	Likes          int    `json:"likes"`
	Dislikes       int    `json:"dislikes"`
	ViolationCount int    `json:"violationCount"`
	IsDraft        bool   `json:"isDraft"`
	Level          int    `json:"level"`
}

// Sign signs the post's content and sets the Author and Signature fields.
func (p *Post) Sign(key *ecdsa.PrivateKey) error {
	r, s, err := keys.Sign(key, []byte(p.Content))
	if err != nil {
		return err
	}

	p.Signature = keys.EncodeSignature(r, s)
	p.Author = keys.PublicKeyHex(&key.PublicKey)

	return nil
}

// Verify checks the post's signature over its content against the provided
// public key.
func (p *Post) Verify(pub *ecdsa.PublicKey) bool {
	if pub == nil {
		return false
	}

	r, s, err := keys.DecodeSignature(p.Signature)
	if err != nil {
		return false
	}

	return keys.Verify(pub, []byte(p.Content), r, s)
}

// Clone returns a copy of the post. Posts are replicated by value; handing a
// copy to the transport keeps in-flight messages insulated from local
// mutation.
func (p *Post) Clone() *Post {
	cp := *p
	return &cp
}

// Marshal ...
func (p *Post) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(p); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (p *Post) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(p)
}
