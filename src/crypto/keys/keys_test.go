package keys

import (
	"bytes"
	"math/big"
	"testing"
)

func TestDeriveECDSAKeyDeterministic(t *testing.T) {
	key1, err := DeriveECDSAKey("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	key2, err := DeriveECDSAKey("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	if key1.D.Cmp(key2.D) != 0 {
		t.Fatal("same secret should derive the same private key")
	}

	if !bytes.Equal(FromPublicKey(&key1.PublicKey), FromPublicKey(&key2.PublicKey)) {
		t.Fatal("same secret should derive the same public key")
	}

	key3, err := DeriveECDSAKey("other secret")
	if err != nil {
		t.Fatal(err)
	}

	if key1.D.Cmp(key3.D) == 0 {
		t.Fatal("different secrets should derive different keys")
	}
}

func TestDeriveECDSAKeyEmptySecret(t *testing.T) {
	if _, err := DeriveECDSAKey(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSignVerify(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("hello fractal")

	r, s, err := Sign(key, content)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(&key.PublicKey, content, r, s) {
		t.Fatal("signature should verify")
	}

	// single-bit mutation of the content must fail verification
	mutated := append([]byte{}, content...)
	mutated[0] ^= 0x01
	if Verify(&key.PublicKey, mutated, r, s) {
		t.Fatal("mutated content should not verify")
	}

	// mutated signature must fail verification
	rBad := new(big.Int).Add(r, big.NewInt(1))
	if Verify(&key.PublicKey, content, rBad, s) {
		t.Fatal("mutated signature should not verify")
	}
}

func TestEncodeDecodeSignature(t *testing.T) {
	key, _ := GenerateECDSAKey()

	r, s, err := Sign(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	encoded := EncodeSignature(r, s)

	dr, ds, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 || s.Cmp(ds) != 0 {
		t.Fatalf("decoded signature mismatch: %s", encoded)
	}
}

func TestDecodeSignatureMalformed(t *testing.T) {
	for _, sig := range []string{"", "abc", "a|b|c", "!!|??"} {
		if _, _, err := DecodeSignature(sig); err == nil {
			t.Fatalf("expected error decoding %q", sig)
		}
	}
}

func TestDumpParseRoundTrip(t *testing.T) {
	key, _ := GenerateECDSAKey()

	dump := DumpPrivateKey(key)

	parsed, err := ParsePrivateKey(dump)
	if err != nil {
		t.Fatal(err)
	}

	if key.D.Cmp(parsed.D) != 0 {
		t.Fatal("parsed key differs from original")
	}
}

func TestToFromPublicKey(t *testing.T) {
	key, _ := GenerateECDSAKey()

	raw := FromPublicKey(&key.PublicKey)

	pub := ToPublicKey(raw)
	if pub == nil {
		t.Fatal("failed to parse public key")
	}

	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatal("public key round trip mismatch")
	}

	if ToPublicKey([]byte{0x01, 0x02}) != nil {
		t.Fatal("garbage bytes should not parse as a public key")
	}
}
