package net

import (
	"testing"
	"time"

	"github.com/fractalnet/fractal/src/posts"
)

func expectEvent(t *testing.T, trans *InmemTransport, eventType PeerEventType, peerID string) {
	t.Helper()
	select {
	case ev := <-trans.Events():
		if ev.Type != eventType || ev.PeerID != peerID {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event from %s", peerID)
	}
}

func TestInmemTransportDialAndSend(t *testing.T) {
	network := NewInmemNetwork()

	a := network.NewTransport("a")
	b := network.NewTransport("b")

	if err := a.Dial("b"); err != nil {
		t.Fatal(err)
	}

	expectEvent(t, a, SessionOpened, "b")
	expectEvent(t, b, SessionOpened, "a")

	// duplicate dial is a no-op, no second event
	if err := a.Dial("b"); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-a.Events():
		t.Fatalf("duplicate dial should not emit events, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	msg := NewPostMessage(&posts.Post{ID: "p1", Content: "hello"})
	if err := a.Send("b", msg); err != nil {
		t.Fatal(err)
	}

	select {
	case in := <-b.Consumer():
		if in.From != "a" {
			t.Fatalf("expected message from a, got %s", in.From)
		}
		if in.Msg.Type != MsgPost || in.Msg.Post.ID != "p1" {
			t.Fatalf("unexpected message %+v", in.Msg)
		}
		// replication by value: mutating the received post must not leak
		// back to the sender's copy
		in.Msg.Post.Likes = 42
		if msg.Post.Likes != 0 {
			t.Fatal("received post should be a copy")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInmemTransportSendUnconnected(t *testing.T) {
	network := NewInmemNetwork()
	a := network.NewTransport("a")

	if err := a.Send("ghost", NewPostMessage(&posts.Post{ID: "p"})); err != ErrPeerNotConnected {
		t.Fatalf("expected ErrPeerNotConnected, got %v", err)
	}

	if err := a.Dial("ghost"); err != ErrPeerNotConnected {
		t.Fatalf("expected ErrPeerNotConnected, got %v", err)
	}
}

func TestInmemTransportDisconnect(t *testing.T) {
	network := NewInmemNetwork()

	a := network.NewTransport("a")
	b := network.NewTransport("b")

	a.Dial("b")
	expectEvent(t, a, SessionOpened, "b")
	expectEvent(t, b, SessionOpened, "a")

	a.Disconnect("b")
	expectEvent(t, a, SessionClosed, "b")
	expectEvent(t, b, SessionClosed, "a")

	if len(a.Peers()) != 0 || len(b.Peers()) != 0 {
		t.Fatal("sessions should be gone after disconnect")
	}

	// sending into the closed session is an error, not a fault
	if err := a.Send("b", NewPostMessage(&posts.Post{ID: "p"})); err != ErrPeerNotConnected {
		t.Fatalf("expected ErrPeerNotConnected, got %v", err)
	}
}

func TestInmemTransportClose(t *testing.T) {
	network := NewInmemNetwork()

	a := network.NewTransport("a")
	b := network.NewTransport("b")

	a.Dial("b")
	expectEvent(t, b, SessionOpened, "a")

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	expectEvent(t, b, SessionClosed, "a")

	if err := a.Dial("b"); err != ErrTransportShutdown {
		t.Fatalf("expected ErrTransportShutdown, got %v", err)
	}
}
