// Package node implements the reactive component of a Fractal node.
//
// This is the part of Fractal that dispatches network events and applies the
// post lifecycle and moderation rules. Node implements a state machine where
// the states are Gossiping, Suspended, and Shutdown.
//
// Gossip
//
// Fractal nodes communicate over per-peer sessions established by the net
// package. The protocol is push-only: a node broadcasts a post message to
// every connected peer when it publishes or updates a post, and pushes its
// entire active post set, one sync message per post, to every peer whose
// session opens. Receivers authenticate posts against their author field,
// de-duplicate them by id, and fold counter snapshots in monotonically, so
// the protocol is correct under arbitrary reordering and duplication.
//
// Moderation
//
// Like and dislike messages evaluate posts by id. Likes feed the local trust
// score when they land on the node's own content. Dislikes accumulate until a
// post crosses the dislike threshold, at which point it is flagged and leaves
// the active set: the node's own posts are demoted to recoverable drafts,
// remote posts are suppressed outright. A node whose own posts accumulate
// enough violations is temporarily banned from publishing.
//
// Topology
//
// A periodic maintenance tick keeps the mesh degree within bounds. Below the
// connection floor, the node asks a pluggable Discovery for one candidate and
// dials it. Above the fan-out ceiling, sessions are ranked by a pluggable
// Scorer and the worst are pruned.
package node
