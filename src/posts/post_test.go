package posts

import (
	"testing"

	"github.com/fractalnet/fractal/src/crypto/keys"
)

func TestPostSignVerify(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	post := &Post{
		ID:      "p1",
		Content: "hello",
	}

	if err := post.Sign(key); err != nil {
		t.Fatal(err)
	}

	if post.Author != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatal("Sign should set the author to the signing public key")
	}

	if !post.Verify(&key.PublicKey) {
		t.Fatal("signed post should verify")
	}

	post.Content = "tampered"
	if post.Verify(&key.PublicKey) {
		t.Fatal("tampered post should not verify")
	}
}

func TestPostVerifyWrongKey(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	other, _ := keys.GenerateECDSAKey()

	post := &Post{ID: "p1", Content: "hello"}
	if err := post.Sign(key); err != nil {
		t.Fatal(err)
	}

	if post.Verify(&other.PublicKey) {
		t.Fatal("post should not verify against another key")
	}
}

func TestPostMarshalRoundTrip(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()

	post := &Post{
		ID:       "p1",
		Content:  "hello",
		Likes:    2,
		Dislikes: 1,
		Level:    2,
	}
	post.Sign(key)

	raw, err := post.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	decoded := new(Post)
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	if *decoded != *post {
		t.Fatalf("round trip mismatch: %#v != %#v", decoded, post)
	}
}
