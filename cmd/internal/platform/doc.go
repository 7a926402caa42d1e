// Package platform implements the blogging domain: blogs, their posts,
// comments on posts and Like/Dislike reactions on posts and comments.
//
// Deletes are soft. Reaction counters and a post's newest likes are
// denormalized onto the target and recomputed after every reaction change.
package platform
