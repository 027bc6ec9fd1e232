package node

import (
	"github.com/fractalnet/fractal/src/posts"
	"github.com/sirupsen/logrus"
)

// Moderation applies like/dislike evaluations to the post set. Evaluations
// for posts the node does not hold are dropped; evaluators are not
// authenticated, only post authorship is.

// Like applies a like evaluation to a held post. If the post is one of the
// node's own, the local trust score grows. The updated post is returned for
// re-broadcast; a nil post means the evaluation was dropped.
func (c *Core) Like(postID string, sender string) (*posts.Post, error) {
	post, ok := c.posts[postID]
	if !ok {
		c.logger.WithField("id", postID).Debug("Like for unknown post")
		return nil, nil
	}

	post.Likes++

	if c.isOwn(post) {
		c.trust += TrustIncrement
	}

	if err := c.store.PutPost(post); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"id":     postID,
		"sender": sender,
		"likes":  post.Likes,
	}).Debug("Like")

	return post.Clone(), nil
}

// Dislike applies a dislike evaluation to a held post. Crossing the dislike
// threshold flags the post: the node's own posts are demoted to drafts,
// remote posts are removed from the active set outright. Accumulating enough
// violations on the node's own posts imposes a temporary posting ban. The
// updated post is returned for re-broadcast while it remains active; a nil
// post means the evaluation was dropped or the post left the active set.
func (c *Core) Dislike(postID string, sender string) (*posts.Post, error) {
	post, ok := c.posts[postID]
	if !ok {
		c.logger.WithField("id", postID).Debug("Dislike for unknown post")
		return nil, nil
	}

	post.Dislikes++

	if post.Dislikes < DislikeThreshold {
		if err := c.store.PutPost(post); err != nil {
			return nil, err
		}

		c.logger.WithFields(logrus.Fields{
			"id":       postID,
			"sender":   sender,
			"dislikes": post.Dislikes,
		}).Debug("Dislike")

		return post.Clone(), nil
	}

	// threshold crossed
	if err := c.flag(post); err != nil {
		return nil, err
	}

	return nil, nil
}

// flag removes a post that reached the dislike threshold from the active set.
// The node's own posts are demoted to drafts and count as a violation; remote
// posts are suppressed outright.
func (c *Core) flag(post *posts.Post) error {
	post.ViolationCount++
	post.IsDraft = true

	delete(c.posts, post.ID)

	if c.isOwn(post) {
		c.drafts[post.ID] = post
		c.violations++

		// demotion unpublishes, freeing the quota slot
		if c.postCount > 0 {
			c.postCount--
			if err := c.writePostCount(); err != nil {
				return err
			}
		}

		if c.violations >= ViolationThreshold {
			c.banUntil = c.clock.Now().Add(BanDuration)
			c.logger.WithField("ban_until", c.banUntil).Warn("Posting ban imposed")
		}
	} else {
		c.suppressed[post.ID] = true
	}

	if err := c.store.PutPost(post); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"id":         post.ID,
		"violations": post.ViolationCount,
		"own":        c.isOwn(post),
	}).Debug("Post flagged and removed from active set")

	return nil
}
