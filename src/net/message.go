package net

import (
	"bytes"
	"fmt"

	"github.com/fractalnet/fractal/src/posts"
	"github.com/ugorji/go/codec"
)

// MsgType tags the gossip messages exchanged over established peer sessions.
type MsgType string

const (
	// MsgPost carries one post, broadcast on publish and on counter updates.
	MsgPost MsgType = "post"

	// MsgLike carries a positive evaluation of a post.
	MsgLike MsgType = "like"

	// MsgDislike carries a negative evaluation of a post.
	MsgDislike MsgType = "dislike"

	// MsgSync carries one post during anti-entropy catch-up after a session
	// opens.
	MsgSync MsgType = "sync"
)

// Message is the tagged union sent over peer sessions. The wire shapes are
// fixed:
//
//	{"type":"post", "post":{...}}
//	{"type":"like"|"dislike", "postId":"...", "sender":"..."}
//	{"type":"sync", "post":{...}}
type Message struct {
	Type   MsgType     `json:"type"`
	Post   *posts.Post `json:"post,omitempty"`
	PostID string      `json:"postId,omitempty"`
	Sender string      `json:"sender,omitempty"`
}

// NewPostMessage ...
func NewPostMessage(post *posts.Post) *Message {
	return &Message{Type: MsgPost, Post: post}
}

// NewSyncMessage ...
func NewSyncMessage(post *posts.Post) *Message {
	return &Message{Type: MsgSync, Post: post}
}

// NewEvaluationMessage builds a like or dislike message.
func NewEvaluationMessage(t MsgType, postID, sender string) *Message {
	return &Message{Type: t, PostID: postID, Sender: sender}
}

// Validate checks that the message carries the fields its type requires.
func (m *Message) Validate() error {
	switch m.Type {
	case MsgPost, MsgSync:
		if m.Post == nil {
			return fmt.Errorf("%s message without post", m.Type)
		}
	case MsgLike, MsgDislike:
		if m.PostID == "" {
			return fmt.Errorf("%s message without postId", m.Type)
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Marshal ...
func (m *Message) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (m *Message) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(m)
}
