package net

import (
	"encoding/json"
	"testing"

	"github.com/fractalnet/fractal/src/posts"
)

func TestMessageWireShapes(t *testing.T) {
	post := &posts.Post{
		ID:        "p1",
		Content:   "hello",
		Signature: "1|2",
		Author:    "0XABCD",
	}

	tests := []struct {
		msg    *Message
		fields []string
	}{
		{NewPostMessage(post), []string{"type", "post"}},
		{NewSyncMessage(post), []string{"type", "post"}},
		{NewEvaluationMessage(MsgLike, "p1", "sender1"), []string{"type", "postId", "sender"}},
		{NewEvaluationMessage(MsgDislike, "p1", "sender1"), []string{"type", "postId", "sender"}},
	}

	for _, tt := range tests {
		raw, err := tt.msg.Marshal()
		if err != nil {
			t.Fatal(err)
		}

		// the wire shape is plain JSON with exactly the expected fields
		shape := map[string]interface{}{}
		if err := json.Unmarshal(raw, &shape); err != nil {
			t.Fatalf("%s message is not valid JSON: %v", tt.msg.Type, err)
		}

		if len(shape) != len(tt.fields) {
			t.Fatalf("%s message has fields %v, want %v", tt.msg.Type, shape, tt.fields)
		}
		for _, f := range tt.fields {
			if _, ok := shape[f]; !ok {
				t.Fatalf("%s message missing field %q", tt.msg.Type, f)
			}
		}

		decoded := new(Message)
		if err := decoded.Unmarshal(raw); err != nil {
			t.Fatal(err)
		}

		if decoded.Type != tt.msg.Type ||
			decoded.PostID != tt.msg.PostID ||
			decoded.Sender != tt.msg.Sender {
			t.Fatalf("round trip mismatch for %s", tt.msg.Type)
		}

		if tt.msg.Post != nil && *decoded.Post != *tt.msg.Post {
			t.Fatalf("post round trip mismatch for %s", tt.msg.Type)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	valid := []*Message{
		NewPostMessage(&posts.Post{ID: "p1"}),
		NewSyncMessage(&posts.Post{ID: "p1"}),
		NewEvaluationMessage(MsgLike, "p1", "s"),
	}
	for _, msg := range valid {
		if err := msg.Validate(); err != nil {
			t.Fatalf("%s should validate: %v", msg.Type, err)
		}
	}

	invalid := []*Message{
		{Type: MsgPost},
		{Type: MsgSync},
		{Type: MsgLike, Sender: "s"},
		{Type: "bogus"},
		{},
	}
	for _, msg := range invalid {
		if err := msg.Validate(); err == nil {
			t.Fatalf("message %+v should not validate", msg)
		}
	}
}
