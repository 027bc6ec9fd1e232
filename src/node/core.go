package node

import (
	"sort"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	cm "github.com/fractalnet/fractal/src/common"
	"github.com/fractalnet/fractal/src/identity"
	"github.com/fractalnet/fractal/src/posts"
	"github.com/fractalnet/fractal/src/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// PostQuota is the maximum number of published posts per identity.
	PostQuota = 3

	// DislikeThreshold is the dislike count at which a post is flagged and
	// removed from the active set.
	DislikeThreshold = 5

	// ViolationThreshold is the number of accumulated violations on a
	// node's own posts that triggers a temporary posting ban.
	ViolationThreshold = 3

	// BanDuration is how long a posting ban lasts.
	BanDuration = 60 * time.Second

	// TrustIncrement is added to the local trust score for every like
	// received on one of the node's own posts.
	TrustIncrement = 0.1
)

// Core implements the post lifecycle, gossip-acceptance, and moderation rules
// of a node. It is not thread safe; the caller serializes access.
type Core struct {
	id       *identity.Identity
	verifier *identity.Verifier
	store    store.Store
	clock    clock.Clock

	// active posts, keyed by post id
	posts map[string]*posts.Post

	// the node's own posts demoted by moderation, recoverable for editing
	drafts map[string]*posts.Post

	// ids of remote posts removed by moderation. Kept so a stale sync
	// cannot re-create them.
	suppressed map[string]bool

	trust      float64
	postCount  int
	violations int
	banUntil   time.Time

	logger *logrus.Entry
}

// NewCore instantiates a Core with an identity and a store, and loads the
// post set and metadata left over from a previous run. A nil identity is
// allowed; the node can then receive and evaluate posts but not author them.
func NewCore(
	id *identity.Identity,
	s store.Store,
	clk clock.Clock,
	logger *logrus.Entry,
) (*Core, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	core := &Core{
		id:         id,
		verifier:   identity.NewVerifier(),
		store:      s,
		clock:      clk,
		posts:      make(map[string]*posts.Post),
		drafts:     make(map[string]*posts.Post),
		suppressed: make(map[string]bool),
		logger:     logger,
	}

	if err := core.bootstrap(); err != nil {
		return nil, err
	}

	return core, nil
}

// bootstrap reloads posts and the post count from the store.
func (c *Core) bootstrap() error {
	all, err := c.store.AllPosts()
	if err != nil {
		return err
	}

	for _, p := range all {
		switch {
		case !p.IsDraft:
			c.posts[p.ID] = p
		case c.isOwn(p):
			c.drafts[p.ID] = p
		default:
			c.suppressed[p.ID] = true
		}
	}

	if c.id != nil {
		raw, err := c.store.GetMeta(store.PostCountKey(c.id.ID))
		if err != nil {
			if !cm.IsStore(err, cm.KeyNotFound) {
				return err
			}
		} else if count, err := strconv.Atoi(string(raw)); err == nil {
			c.postCount = count
		}
	}

	c.logger.WithFields(logrus.Fields{
		"posts":      len(c.posts),
		"drafts":     len(c.drafts),
		"suppressed": len(c.suppressed),
		"post_count": c.postCount,
	}).Debug("Core bootstrap")

	return nil
}

// ID returns the local node's identifier, or an empty string when no identity
// is active.
func (c *Core) ID() string {
	if c.id == nil {
		return ""
	}
	return c.id.ID
}

func (c *Core) isOwn(p *posts.Post) bool {
	return c.id != nil && p.Author == c.id.PubKeyHex
}

// CreatePost authors a new post. It fails with ErrUnauthenticated when no
// identity is active, ErrQuotaExceeded when the posting quota is reached, and
// ErrBanned while a posting ban is in force. Draft posts are stored but not
// counted against the quota, and are never handed to the transport.
func (c *Core) CreatePost(content string, draft bool) (*posts.Post, error) {
	if c.id == nil {
		return nil, ErrUnauthenticated
	}

	if c.postCount >= PostQuota {
		return nil, ErrQuotaExceeded
	}

	if c.clock.Now().Before(c.banUntil) {
		return nil, ErrBanned
	}

	post := &posts.Post{
		ID:      uuid.New().String(),
		Content: content,
		IsDraft: draft,
	}

	if err := post.Sign(c.id.Key); err != nil {
		return nil, err
	}

	if err := c.store.PutPost(post); err != nil {
		return nil, err
	}

	if draft {
		c.drafts[post.ID] = post
		return post.Clone(), nil
	}

	c.posts[post.ID] = post
	c.postCount++

	if err := c.writePostCount(); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"id":         post.ID,
		"post_count": c.postCount,
	}).Debug("CreatePost")

	return post.Clone(), nil
}

// EditPost replaces the content of one of the node's own posts, re-signs it,
// and promotes it out of the draft set. Editing a post the node does not own,
// or an unknown id, is a silent no-op; a nil post is returned. Promoting a
// draft publishes it, so it is subject to the quota and to any posting ban.
func (c *Core) EditPost(id string, content string) (*posts.Post, error) {
	if c.id == nil {
		return nil, nil
	}

	post, wasDraft := c.drafts[id]
	if !wasDraft {
		post = c.posts[id]
	}

	if post == nil || !c.isOwn(post) {
		return nil, nil
	}

	if wasDraft {
		if c.postCount >= PostQuota {
			return nil, ErrQuotaExceeded
		}

		if c.clock.Now().Before(c.banUntil) {
			return nil, ErrBanned
		}
	}

	post.Content = content
	post.IsDraft = false

	if err := post.Sign(c.id.Key); err != nil {
		return nil, err
	}

	if err := c.store.PutPost(post); err != nil {
		return nil, err
	}

	if wasDraft {
		delete(c.drafts, id)
		c.postCount++

		if err := c.writePostCount(); err != nil {
			return nil, err
		}
	}

	c.posts[id] = post

	c.logger.WithFields(logrus.Fields{
		"id":         id,
		"post_count": c.postCount,
	}).Debug("EditPost")

	return post.Clone(), nil
}

// AddPost applies an inbound post or sync record. Unknown posts are
// authenticated and accepted into the active set; for known ids a re-signed
// edit from the original author replaces the content, and the counters are
// refreshed, only upward, so replayed or reordered sync traffic cannot roll
// state back. It reports whether local state changed.
func (c *Core) AddPost(p *posts.Post) (bool, error) {
	if p == nil || p.ID == "" || p.IsDraft {
		return false, nil
	}

	// moderation outcomes are local and final
	if c.suppressed[p.ID] {
		return false, nil
	}
	if _, ok := c.drafts[p.ID]; ok {
		return false, nil
	}

	if existing, ok := c.posts[p.ID]; ok {
		return c.mergePost(existing, p)
	}

	if !c.verifier.VerifyPost(p) {
		c.logger.WithFields(logrus.Fields{
			"id":     p.ID,
			"author": p.Author,
		}).Debug("Dropping post with invalid signature")
		return false, nil
	}

	accepted := p.Clone()
	if err := c.store.PutPost(accepted); err != nil {
		return false, err
	}

	c.posts[accepted.ID] = accepted

	c.logger.WithFields(logrus.Fields{
		"id":     accepted.ID,
		"author": accepted.Author,
	}).Debug("Accepted post")

	return true, nil
}

// mergePost folds an inbound record for an already-known post. Content only
// changes when the record carries a new signature from the original author;
// anything else claiming new content is dropped. A fold that leaves the
// dislike count at the threshold flags the post the same way a direct dislike
// would.
func (c *Core) mergePost(existing *posts.Post, incoming *posts.Post) (bool, error) {
	changed := false

	if incoming.Content != existing.Content {
		if incoming.Author == existing.Author && c.verifier.VerifyPost(incoming) {
			existing.Content = incoming.Content
			existing.Signature = incoming.Signature
			changed = true
		} else {
			c.logger.WithFields(logrus.Fields{
				"id":     incoming.ID,
				"author": incoming.Author,
			}).Debug("Dropping edit with invalid signature")
		}
	}

	if incoming.Likes > existing.Likes {
		existing.Likes = incoming.Likes
		changed = true
	}
	if incoming.Dislikes > existing.Dislikes {
		existing.Dislikes = incoming.Dislikes
		changed = true
	}
	if incoming.ViolationCount > existing.ViolationCount {
		existing.ViolationCount = incoming.ViolationCount
		changed = true
	}

	if !changed {
		return false, nil
	}

	if existing.Dislikes >= DislikeThreshold {
		return true, c.flag(existing)
	}

	if err := c.store.PutPost(existing); err != nil {
		return false, err
	}

	return true, nil
}

// GetPost returns a copy of a post from the active or draft set.
func (c *Core) GetPost(id string) (*posts.Post, bool) {
	if p, ok := c.posts[id]; ok {
		return p.Clone(), true
	}
	if p, ok := c.drafts[id]; ok {
		return p.Clone(), true
	}
	return nil, false
}

// ActivePosts returns copies of the active post set, ordered by id.
func (c *Core) ActivePosts() []*posts.Post {
	res := make([]*posts.Post, 0, len(c.posts))
	for _, p := range c.posts {
		res = append(res, p.Clone())
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res
}

// DraftPosts returns copies of the node's own demoted posts, ordered by id.
func (c *Core) DraftPosts() []*posts.Post {
	res := make([]*posts.Post, 0, len(c.drafts))
	for _, p := range c.drafts {
		res = append(res, p.Clone())
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res
}

// Trust returns the local trust score.
func (c *Core) Trust() float64 {
	return c.trust
}

// PostCount returns the number of published posts counted against the quota.
func (c *Core) PostCount() int {
	return c.postCount
}

// BanUntil returns the time at which the current posting ban elapses. The
// zero time means no ban was ever imposed.
func (c *Core) BanUntil() time.Time {
	return c.banUntil
}

func (c *Core) writePostCount() error {
	return c.store.PutMeta(
		store.PostCountKey(c.id.ID),
		[]byte(strconv.Itoa(c.postCount)),
	)
}
