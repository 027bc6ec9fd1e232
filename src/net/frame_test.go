package net

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)

	payloads := [][]byte{
		[]byte(`{"type":"post"}`),
		{},
		[]byte("x"),
	}

	for _, p := range payloads {
		if err := writeFrame(buf, p); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range payloads {
		got, err := readFrame(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame mismatch: %q != %q", got, want)
		}
	}
}

func TestFrameTooLarge(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxFrameSize+1)

	if _, err := readFrame(bytes.NewReader(header[:])); err == nil {
		t.Fatal("oversized frame should be rejected")
	}
}
