package platform

import "time"

// LikeStatus is a user's reaction to a post or comment.
type LikeStatus string

const (
	StatusNone    LikeStatus = "None"
	StatusLike    LikeStatus = "Like"
	StatusDislike LikeStatus = "Dislike"
)

// Valid reports whether s is one of the three statuses.
func (s LikeStatus) Valid() bool {
	return s == StatusNone || s == StatusLike || s == StatusDislike
}

// TargetKind tells which collection a like points into.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// NewestLikesLimit is how many recent likes a post carries.
const NewestLikesLimit = 3

type Blog struct {
	ID           string
	Name         string
	Description  string
	WebsiteURL   string
	CreatedAt    time.Time
	IsMembership bool
}

type BlogInput struct {
	Name        string
	Description string
	WebsiteURL  string
}

// NewestLike is one entry of a post's newest likes.
type NewestLike struct {
	AddedAt time.Time
	UserID  string
	Login   string
}

// Reactions are the denormalized counters of a post or comment.
type Reactions struct {
	Likes    int64
	Dislikes int64
	Newest   []NewestLike
}

type Post struct {
	ID               string
	Title            string
	ShortDescription string
	Content          string
	BlogID           string
	BlogName         string
	CreatedAt        time.Time
	Reactions        Reactions

	// MyStatus is the viewer's reaction. Not persisted.
	MyStatus LikeStatus
}

type PostInput struct {
	Title            string
	ShortDescription string
	Content          string
	BlogID           string
}

// Author identifies the user behind a comment or a like.
type Author struct {
	UserID string
	Login  string
}

type Comment struct {
	ID        string
	PostID    string
	Content   string
	Author    Author
	CreatedAt time.Time
	Reactions Reactions

	// MyStatus is the viewer's reaction. Not persisted.
	MyStatus LikeStatus
}

// Like is one user's reaction to one target. StatusNone is never stored.
type Like struct {
	Kind      TargetKind
	TargetID  string
	Author    Author
	Status    LikeStatus
	CreatedAt time.Time
}

// Sort whitelists per list endpoint.
var (
	BlogSortFields    = []string{"createdAt", "name", "description", "websiteUrl"}
	PostSortFields    = []string{"createdAt", "title", "shortDescription", "content", "blogId", "blogName"}
	CommentSortFields = []string{"createdAt", "content"}
)
