package node

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func TestLike(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	post := remotePost(t, "bob secret", "p1", "hello from bob")
	if _, err := core.AddPost(post); err != nil {
		t.Fatal(err)
	}

	updated, err := core.Like("p1", "some-evaluator")
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil {
		t.Fatal("liking a held post should return the updated record")
	}
	if updated.Likes != 1 {
		t.Fatalf("likes should be 1, not %d", updated.Likes)
	}
	if core.Trust() != 0 {
		t.Fatal("liking someone else's post should not move local trust")
	}
}

func TestLikeOwnPostGrowsTrust(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	post, err := core.CreatePost("my post", false)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := core.Like(post.ID, fmt.Sprintf("evaluator-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if math.Abs(core.Trust()-3*TrustIncrement) > 1e-9 {
		t.Fatalf("trust should be %f, not %f", 3*TrustIncrement, core.Trust())
	}
}

func TestEvaluationForUnknownPostDropped(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	updated, err := core.Like("no-such-post", "someone")
	if err != nil {
		t.Fatal(err)
	}
	if updated != nil {
		t.Fatal("evaluating an unknown post should be dropped")
	}

	updated, err = core.Dislike("no-such-post", "someone")
	if err != nil {
		t.Fatal(err)
	}
	if updated != nil {
		t.Fatal("evaluating an unknown post should be dropped")
	}
}

func TestDislikeThresholdDemotesOwnPost(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	post, err := core.CreatePost("controversial", false)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < DislikeThreshold-1; i++ {
		updated, err := core.Dislike(post.ID, fmt.Sprintf("evaluator-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if updated == nil {
			t.Fatalf("post should still be active after %d dislikes", i+1)
		}
	}

	// the fifth dislike crosses the threshold
	updated, err := core.Dislike(post.ID, "last-evaluator")
	if err != nil {
		t.Fatal(err)
	}
	if updated != nil {
		t.Fatal("a flagged post should not be re-broadcast")
	}

	if len(core.ActivePosts()) != 0 {
		t.Fatal("flagged post should leave the active set")
	}

	drafts := core.DraftPosts()
	if len(drafts) != 1 {
		t.Fatal("own flagged post should be recoverable as a draft")
	}
	if drafts[0].ViolationCount != 1 {
		t.Fatalf("violation count should be 1, not %d", drafts[0].ViolationCount)
	}
	if !drafts[0].IsDraft {
		t.Fatal("flagged post should carry the draft flag")
	}
}

func TestDislikeThresholdSuppressesRemotePost(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	post := remotePost(t, "bob secret", "p1", "spam")
	if _, err := core.AddPost(post); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < DislikeThreshold; i++ {
		if _, err := core.Dislike("p1", fmt.Sprintf("evaluator-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if len(core.ActivePosts()) != 0 {
		t.Fatal("suppressed post should leave the active set")
	}
	if len(core.DraftPosts()) != 0 {
		t.Fatal("a remote post should not land in the draft set")
	}

	// a stale sync must not re-create the suppressed post
	changed, err := core.AddPost(post.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("stale sync should not resurrect a suppressed post")
	}
	if len(core.ActivePosts()) != 0 {
		t.Fatal("suppressed post should stay out of the active set")
	}
}

func TestSuppressionSurvivesRestart(t *testing.T) {
	core, _, s := newTestCore(t, "alice secret")

	post := remotePost(t, "bob secret", "p1", "spam")
	if _, err := core.AddPost(post); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < DislikeThreshold; i++ {
		if _, err := core.Dislike("p1", fmt.Sprintf("evaluator-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	core2, err := NewCore(core.id, s, core.clock, core.logger)
	if err != nil {
		t.Fatal(err)
	}

	changed, err := core2.AddPost(post.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("suppression should survive a restart")
	}
}

func TestViolationsTriggerBan(t *testing.T) {
	core, clk, _ := newTestCore(t, "alice secret")

	// accumulate violations on the node's own posts
	for v := 0; v < ViolationThreshold; v++ {
		post, err := core.CreatePost(fmt.Sprintf("post %d", v), false)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < DislikeThreshold; i++ {
			if _, err := core.Dislike(post.ID, fmt.Sprintf("evaluator-%d", i)); err != nil {
				t.Fatal(err)
			}
		}
	}

	if _, err := core.CreatePost("while banned", false); err != ErrBanned {
		t.Fatalf("expected ErrBanned, got %v", err)
	}

	// posting is re-enabled once the ban elapses
	clk.Add(BanDuration + time.Second)

	if _, err := core.CreatePost("after the ban", false); err != nil {
		t.Fatalf("create should succeed after the ban elapses, got %v", err)
	}
}

func TestRepublishRetakesQuotaSlot(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	first, err := core.CreatePost("post 0", false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < PostQuota; i++ {
		if _, err := core.CreatePost(fmt.Sprintf("post %d", i), false); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < DislikeThreshold; i++ {
		if _, err := core.Dislike(first.ID, fmt.Sprintf("evaluator-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if core.PostCount() != PostQuota-1 {
		t.Fatalf("demotion should free the quota slot, count is %d", core.PostCount())
	}

	// republishing the demoted draft takes the slot again
	edited, err := core.EditPost(first.ID, "post 0, toned down")
	if err != nil {
		t.Fatal(err)
	}
	if edited == nil || edited.IsDraft {
		t.Fatal("republish should succeed while a slot is free")
	}
	if core.PostCount() != PostQuota {
		t.Fatalf("republish should retake the quota slot, count is %d", core.PostCount())
	}

	if _, err := core.CreatePost("one too many", false); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(core.ActivePosts()) != PostQuota {
		t.Fatalf("active set should hold %d posts, not %d", PostQuota, len(core.ActivePosts()))
	}
}

func TestRepublishBlockedByQuota(t *testing.T) {
	core, _, _ := newTestCore(t, "alice secret")

	first, err := core.CreatePost("post 0", false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < PostQuota; i++ {
		if _, err := core.CreatePost(fmt.Sprintf("post %d", i), false); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < DislikeThreshold; i++ {
		if _, err := core.Dislike(first.ID, fmt.Sprintf("evaluator-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	// the freed slot goes to a new post
	if _, err := core.CreatePost("replacement", false); err != nil {
		t.Fatal(err)
	}

	if _, err := core.EditPost(first.ID, "second chance"); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(core.DraftPosts()) != 1 {
		t.Fatal("the draft should stay demoted when the quota is full")
	}
}

func TestRepublishBlockedDuringBan(t *testing.T) {
	core, clk, _ := newTestCore(t, "alice secret")

	var firstID string
	for v := 0; v < ViolationThreshold; v++ {
		post, err := core.CreatePost(fmt.Sprintf("post %d", v), false)
		if err != nil {
			t.Fatal(err)
		}
		if v == 0 {
			firstID = post.ID
		}

		for i := 0; i < DislikeThreshold; i++ {
			if _, err := core.Dislike(post.ID, fmt.Sprintf("evaluator-%d", i)); err != nil {
				t.Fatal(err)
			}
		}
	}

	if _, err := core.EditPost(firstID, "appeal"); err != ErrBanned {
		t.Fatalf("expected ErrBanned, got %v", err)
	}

	clk.Add(BanDuration + time.Second)

	edited, err := core.EditPost(firstID, "appeal")
	if err != nil {
		t.Fatal(err)
	}
	if edited == nil {
		t.Fatal("republish should succeed once the ban elapses")
	}
}

func TestBanRespectsQuota(t *testing.T) {
	core, clk, _ := newTestCore(t, "alice secret")

	for i := 0; i < ViolationThreshold; i++ {
		post, err := core.CreatePost(fmt.Sprintf("post %d", i), false)
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j < DislikeThreshold; j++ {
			if _, err := core.Dislike(post.ID, fmt.Sprintf("evaluator-%d", j)); err != nil {
				t.Fatal(err)
			}
		}
	}

	clk.Add(BanDuration + time.Second)

	// the ban elapsed; publishing is allowed again subject to the quota
	for i := 0; i < PostQuota; i++ {
		if _, err := core.CreatePost(fmt.Sprintf("comeback %d", i), false); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := core.CreatePost("one too many", false); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}
