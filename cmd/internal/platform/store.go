package platform

import (
	"context"
	"time"

	"bloggers/cmd/internal/paging"
)

// Store persists the platform aggregates. Reads and updates only see live
// (not soft-deleted) records; a missing record yields an error wrapping
// ErrNotFound.
type Store interface {
	InsertBlog(ctx context.Context, b Blog) error
	Blog(ctx context.Context, id string) (Blog, error)
	UpdateBlog(ctx context.Context, id string, in BlogInput) error
	DeleteBlog(ctx context.Context, id string, now time.Time) error
	ListBlogs(ctx context.Context, searchName string, q paging.Query) ([]Blog, int64, error)

	InsertPost(ctx context.Context, p Post) error
	Post(ctx context.Context, id string) (Post, error)
	UpdatePost(ctx context.Context, id string, in PostInput, blogName string) error
	DeletePost(ctx context.Context, id string, now time.Time) error
	// ListPosts lists every post when blogID is empty.
	ListPosts(ctx context.Context, blogID string, q paging.Query) ([]Post, int64, error)
	SetPostReactions(ctx context.Context, id string, r Reactions) error

	InsertComment(ctx context.Context, c Comment) error
	Comment(ctx context.Context, id string) (Comment, error)
	UpdateComment(ctx context.Context, id, content string) error
	DeleteComment(ctx context.Context, id string, now time.Time) error
	ListComments(ctx context.Context, postID string, q paging.Query) ([]Comment, int64, error)
	SetCommentReactions(ctx context.Context, id string, r Reactions) error

	// PutLike stores l, replacing the user's previous reaction to the target.
	PutLike(ctx context.Context, l Like) error
	Like(ctx context.Context, kind TargetKind, targetID, userID string) (Like, error)
	DeleteLike(ctx context.Context, kind TargetKind, targetID, userID string) error
	// Reactions counts likes and dislikes and returns up to newest latest likes.
	Reactions(ctx context.Context, kind TargetKind, targetID string, newest int) (Reactions, error)
	// Statuses returns the user's reactions to the given targets.
	Statuses(ctx context.Context, kind TargetKind, userID string, targetIDs []string) (map[string]LikeStatus, error)

	DeleteAll(ctx context.Context) error
}
