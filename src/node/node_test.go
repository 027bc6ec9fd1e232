package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/fractalnet/fractal/src/config"
	"github.com/fractalnet/fractal/src/net"
)

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

func startTestNode(t *testing.T, network *net.InmemNetwork, secret string) *Node {
	node := newTestNode(t, network, secret)

	if err := node.Init(); err != nil {
		t.Fatal(err)
	}

	node.RunAsync()

	return node
}

func TestSyncOnConnect(t *testing.T) {
	network := net.NewInmemNetwork()

	alice := startTestNode(t, network, "alice secret")
	defer alice.Shutdown()
	bob := startTestNode(t, network, "bob secret")
	defer bob.Shutdown()

	p1, err := alice.CreatePost("hello", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.Connect(bob.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to receive p1", func() bool {
		_, ok := bob.GetPost(p1.ID)
		return ok
	})

	received, _ := bob.GetPost(p1.ID)
	if received.Content != "hello" {
		t.Fatalf("content should be hello, not %s", received.Content)
	}
	if received.Likes != 0 || received.Dislikes != 0 {
		t.Fatalf("counters should be 0/0, got %d/%d", received.Likes, received.Dislikes)
	}
}

func TestEditPropagatesAcrossTheWire(t *testing.T) {
	network := net.NewInmemNetwork()

	alice := startTestNode(t, network, "alice secret")
	defer alice.Shutdown()
	bob := startTestNode(t, network, "bob secret")
	defer bob.Shutdown()

	p1, err := alice.CreatePost("hello", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.Connect(bob.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to receive p1", func() bool {
		_, ok := bob.GetPost(p1.ID)
		return ok
	})

	if _, err := alice.EditPost(p1.ID, "hello, edited"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to apply the edit", func() bool {
		p, ok := bob.GetPost(p1.ID)
		return ok && p.Content == "hello, edited"
	})

	received, _ := bob.GetPost(p1.ID)
	bob.coreLock.Lock()
	verified := bob.core.verifier.VerifyPost(received)
	bob.coreLock.Unlock()

	if !verified {
		t.Fatal("the edited post should carry alice's fresh signature")
	}
}

func TestDislikesDemoteAcrossTheWire(t *testing.T) {
	network := net.NewInmemNetwork()

	alice := startTestNode(t, network, "alice secret")
	defer alice.Shutdown()
	bob := startTestNode(t, network, "bob secret")
	defer bob.Shutdown()

	p1, err := alice.CreatePost("hello", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.Connect(bob.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to receive p1", func() bool {
		_, ok := bob.GetPost(p1.ID)
		return ok
	})

	// five distinct evaluators, one at a time
	for i := 0; i < DislikeThreshold; i++ {
		msg := net.NewEvaluationMessage(net.MsgDislike, p1.ID, fmt.Sprintf("evaluator-%d", i))
		if err := bob.trans.Send(alice.AdvertiseAddr(), msg); err != nil {
			t.Fatal(err)
		}

		expected := i + 1
		waitFor(t, fmt.Sprintf("alice to count %d dislikes", expected), func() bool {
			alice.coreLock.Lock()
			defer alice.coreLock.Unlock()

			if p, ok := alice.core.posts[p1.ID]; ok {
				return p.Dislikes >= expected
			}
			// demoted on the final dislike
			_, demoted := alice.core.drafts[p1.ID]
			return demoted
		})
	}

	waitFor(t, "alice to demote p1", func() bool {
		return len(alice.ActivePosts()) == 0 && len(alice.DraftPosts()) == 1
	})

	// the demoted post must not be offered to new sessions
	carol := startTestNode(t, network, "carol secret")
	defer carol.Shutdown()

	if err := alice.Connect(carol.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "carol's session to settle", func() bool {
		return len(carol.Peers()) == 1
	})
	time.Sleep(100 * time.Millisecond)

	if _, ok := carol.GetPost(p1.ID); ok {
		t.Fatal("a demoted post should not be broadcast")
	}
}

func TestLikePropagation(t *testing.T) {
	network := net.NewInmemNetwork()

	alice := startTestNode(t, network, "alice secret")
	defer alice.Shutdown()
	bob := startTestNode(t, network, "bob secret")
	defer bob.Shutdown()

	p1, err := alice.CreatePost("hello", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.Connect(bob.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to receive p1", func() bool {
		_, ok := bob.GetPost(p1.ID)
		return ok
	})

	if err := bob.Like(p1.ID); err != nil {
		t.Fatal(err)
	}

	// the like lands on alice's copy and feeds her trust score
	waitFor(t, "alice to count the like", func() bool {
		p, ok := alice.GetPost(p1.ID)
		return ok && p.Likes == 1
	})

	alice.coreLock.Lock()
	trust := alice.core.Trust()
	alice.coreLock.Unlock()

	if trust != TrustIncrement {
		t.Fatalf("alice's trust should be %f, not %f", TrustIncrement, trust)
	}
}

func TestSuspendResume(t *testing.T) {
	network := net.NewInmemNetwork()

	alice := startTestNode(t, network, "alice secret")
	defer alice.Shutdown()
	bob := startTestNode(t, network, "bob secret")
	defer bob.Shutdown()

	if err := alice.Connect(bob.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session to open", func() bool {
		return len(alice.Peers()) == 1
	})

	alice.Suspend()
	waitFor(t, "alice to suspend", func() bool {
		return alice.getState() == Suspended
	})

	// traffic arriving while suspended is dropped
	p1, err := bob.CreatePost("posted while alice sleeps", false)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok := alice.GetPost(p1.ID); ok {
		t.Fatal("a suspended node should not apply inbound posts")
	}

	alice.Resume()
	waitFor(t, "alice to resume", func() bool {
		return alice.getState() == Gossiping
	})
}

func TestUnauthenticatedNode(t *testing.T) {
	network := net.NewInmemNetwork()

	core, _, _ := newTestCore(t, "")

	trans := network.NewTransport("anonymous")
	anon := NewNode(config.NewTestConfig(t), core, trans, nil, nil)

	if _, err := anon.CreatePost("x", false); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
