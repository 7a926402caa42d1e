package platform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloggers/cmd/identity/ids"
	"bloggers/cmd/internal/paging"
)

// Service implements the blog, post, comment and like operations.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ---- blogs ----

func (s *Service) CreateBlog(ctx context.Context, in BlogInput) (Blog, error) {
	b := Blog{
		ID:          ids.NewObjectID(),
		Name:        in.Name,
		Description: in.Description,
		WebsiteURL:  in.WebsiteURL,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertBlog(ctx, b); err != nil {
		return Blog{}, err
	}
	return b, nil
}

func (s *Service) UpdateBlog(ctx context.Context, id string, in BlogInput) error {
	return s.store.UpdateBlog(ctx, id, in)
}

func (s *Service) DeleteBlog(ctx context.Context, id string) error {
	return s.store.DeleteBlog(ctx, id, s.now().UTC())
}

func (s *Service) Blog(ctx context.Context, id string) (Blog, error) {
	return s.store.Blog(ctx, id)
}

func (s *Service) ListBlogs(ctx context.Context, searchName string, q paging.Query) (paging.Page[Blog], error) {
	items, total, err := s.store.ListBlogs(ctx, searchName, q)
	if err != nil {
		return paging.Page[Blog]{}, err
	}
	return paging.NewPage(q, total, items), nil
}

// ---- posts ----

// CreatePost creates a post in in.BlogID. A missing blog is a FieldError
// on blogId.
func (s *Service) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	b, err := s.store.Blog(ctx, in.BlogID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, FieldError{Field: "blogId", Msg: "blog not found"}
		}
		return Post{}, err
	}
	return s.insertPost(ctx, b, in)
}

// CreatePostForBlog creates a post in blogID. A missing blog is ErrNotFound.
func (s *Service) CreatePostForBlog(ctx context.Context, blogID string, in PostInput) (Post, error) {
	b, err := s.store.Blog(ctx, blogID)
	if err != nil {
		return Post{}, err
	}
	in.BlogID = b.ID
	return s.insertPost(ctx, b, in)
}

func (s *Service) insertPost(ctx context.Context, b Blog, in PostInput) (Post, error) {
	p := Post{
		ID:               ids.NewObjectID(),
		Title:            in.Title,
		ShortDescription: in.ShortDescription,
		Content:          in.Content,
		BlogID:           b.ID,
		BlogName:         b.Name,
		CreatedAt:        s.now().UTC(),
		Reactions:        Reactions{Newest: []NewestLike{}},
		MyStatus:         StatusNone,
	}
	if err := s.store.InsertPost(ctx, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *Service) UpdatePost(ctx context.Context, id string, in PostInput) error {
	b, err := s.store.Blog(ctx, in.BlogID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FieldError{Field: "blogId", Msg: "blog not found"}
		}
		return err
	}
	return s.store.UpdatePost(ctx, id, in, b.Name)
}

func (s *Service) DeletePost(ctx context.Context, id string) error {
	return s.store.DeletePost(ctx, id, s.now().UTC())
}

// Post returns a post with viewerID's reaction. viewerID may be empty.
func (s *Service) Post(ctx context.Context, id, viewerID string) (Post, error) {
	p, err := s.store.Post(ctx, id)
	if err != nil {
		return Post{}, err
	}
	posts := []Post{p}
	if err := s.withPostStatuses(ctx, posts, viewerID); err != nil {
		return Post{}, err
	}
	return posts[0], nil
}

// ListPosts lists all posts, or the posts of blogID when it is not empty.
func (s *Service) ListPosts(ctx context.Context, blogID string, q paging.Query, viewerID string) (paging.Page[Post], error) {
	if blogID != "" {
		if _, err := s.store.Blog(ctx, blogID); err != nil {
			return paging.Page[Post]{}, err
		}
	}
	items, total, err := s.store.ListPosts(ctx, blogID, q)
	if err != nil {
		return paging.Page[Post]{}, err
	}
	if err := s.withPostStatuses(ctx, items, viewerID); err != nil {
		return paging.Page[Post]{}, err
	}
	return paging.NewPage(q, total, items), nil
}

func (s *Service) withPostStatuses(ctx context.Context, posts []Post, viewerID string) error {
	targets := make([]string, len(posts))
	for i, p := range posts {
		targets[i] = p.ID
	}
	st, err := s.statuses(ctx, TargetPost, viewerID, targets)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].MyStatus = statusOf(st, posts[i].ID)
	}
	return nil
}

// ---- comments ----

func (s *Service) CreateComment(ctx context.Context, postID string, author Author, content string) (Comment, error) {
	if _, err := s.store.Post(ctx, postID); err != nil {
		return Comment{}, err
	}
	c := Comment{
		ID:        ids.NewObjectID(),
		PostID:    postID,
		Content:   content,
		Author:    author,
		CreatedAt: s.now().UTC(),
		MyStatus:  StatusNone,
	}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *Service) Comment(ctx context.Context, id, viewerID string) (Comment, error) {
	c, err := s.store.Comment(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	comments := []Comment{c}
	if err := s.withCommentStatuses(ctx, comments, viewerID); err != nil {
		return Comment{}, err
	}
	return comments[0], nil
}

func (s *Service) ListComments(ctx context.Context, postID string, q paging.Query, viewerID string) (paging.Page[Comment], error) {
	if _, err := s.store.Post(ctx, postID); err != nil {
		return paging.Page[Comment]{}, err
	}
	items, total, err := s.store.ListComments(ctx, postID, q)
	if err != nil {
		return paging.Page[Comment]{}, err
	}
	if err := s.withCommentStatuses(ctx, items, viewerID); err != nil {
		return paging.Page[Comment]{}, err
	}
	return paging.NewPage(q, total, items), nil
}

// UpdateComment replaces the content of userID's own comment.
func (s *Service) UpdateComment(ctx context.Context, id, userID, content string) error {
	if err := s.ownComment(ctx, id, userID); err != nil {
		return err
	}
	return s.store.UpdateComment(ctx, id, content)
}

// DeleteComment soft-deletes userID's own comment.
func (s *Service) DeleteComment(ctx context.Context, id, userID string) error {
	if err := s.ownComment(ctx, id, userID); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, id, s.now().UTC())
}

func (s *Service) ownComment(ctx context.Context, id, userID string) error {
	c, err := s.store.Comment(ctx, id)
	if err != nil {
		return err
	}
	if c.Author.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) withCommentStatuses(ctx context.Context, comments []Comment, viewerID string) error {
	targets := make([]string, len(comments))
	for i, c := range comments {
		targets[i] = c.ID
	}
	st, err := s.statuses(ctx, TargetComment, viewerID, targets)
	if err != nil {
		return err
	}
	for i := range comments {
		comments[i].MyStatus = statusOf(st, comments[i].ID)
	}
	return nil
}

// Wipe deletes every blog, post, comment and like.
func (s *Service) Wipe(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}
