package node

import "errors"

var (
	// ErrUnauthenticated is returned by lifecycle operations when no
	// identity is active on the node.
	ErrUnauthenticated = errors.New("no active identity")

	// ErrQuotaExceeded is returned by CreatePost when the identity has
	// reached its posting quota.
	ErrQuotaExceeded = errors.New("post quota exceeded")

	// ErrBanned is returned by CreatePost while a temporary posting ban is
	// active.
	ErrBanned = errors.New("posting temporarily banned")
)
