package platform

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"bloggers/cmd/internal/paging"
)

// table keeps rows in insertion order so equal sort keys list stably.
type table[T any] struct {
	order []string
	rows  map[string]*row[T]
}

type row[T any] struct {
	v       T
	deleted bool
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]*row[T])}
}

func (t *table[T]) insert(id string, v T) {
	t.order = append(t.order, id)
	t.rows[id] = &row[T]{v: v}
}

// live returns the row of a record that exists and is not deleted.
func (t *table[T]) live(id string) (*row[T], bool) {
	r, ok := t.rows[id]
	if !ok || r.deleted {
		return nil, false
	}
	return r, true
}

func (t *table[T]) filter(keep func(T) bool) []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		r := t.rows[id]
		if !r.deleted && keep(r.v) {
			out = append(out, r.v)
		}
	}
	return out
}

type likeKey struct {
	kind   TargetKind
	target string
	user   string
}

// MemoryStore keeps the platform in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	blogs    table[Blog]
	posts    table[Post]
	comments table[Comment]
	likes    map[likeKey]Like
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.blogs = newTable[Blog]()
	s.posts = newTable[Post]()
	s.comments = newTable[Comment]()
	s.likes = make(map[likeKey]Like)
}

var (
	blogComparators = paging.Comparators[Blog]{
		"createdAt":   func(a, b Blog) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"name":        paging.Compare(func(b Blog) string { return b.Name }),
		"description": paging.Compare(func(b Blog) string { return b.Description }),
		"websiteUrl":  paging.Compare(func(b Blog) string { return b.WebsiteURL }),
	}
	postComparators = paging.Comparators[Post]{
		"createdAt":        func(a, b Post) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"title":            paging.Compare(func(p Post) string { return p.Title }),
		"shortDescription": paging.Compare(func(p Post) string { return p.ShortDescription }),
		"content":          paging.Compare(func(p Post) string { return p.Content }),
		"blogId":           paging.Compare(func(p Post) string { return p.BlogID }),
		"blogName":         paging.Compare(func(p Post) string { return p.BlogName }),
	}
	commentComparators = paging.Comparators[Comment]{
		"createdAt": func(a, b Comment) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"content":   paging.Compare(func(c Comment) string { return c.Content }),
	}
)

// ---- blogs ----

func (s *MemoryStore) InsertBlog(ctx context.Context, b Blog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blogs.insert(b.ID, b)
	return nil
}

func (s *MemoryStore) Blog(ctx context.Context, id string) (Blog, error) {
	if err := ctx.Err(); err != nil {
		return Blog{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.blogs.live(id)
	if !ok {
		return Blog{}, notFound("platform.MemoryStore.Blog", "blog", id)
	}
	return r.v, nil
}

func (s *MemoryStore) UpdateBlog(ctx context.Context, id string, in BlogInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.blogs.live(id)
	if !ok {
		return notFound("platform.MemoryStore.UpdateBlog", "blog", id)
	}
	r.v.Name, r.v.Description, r.v.WebsiteURL = in.Name, in.Description, in.WebsiteURL
	return nil
}

func (s *MemoryStore) DeleteBlog(ctx context.Context, id string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.blogs.live(id)
	if !ok {
		return notFound("platform.MemoryStore.DeleteBlog", "blog", id)
	}
	r.deleted = true
	return nil
}

func (s *MemoryStore) ListBlogs(ctx context.Context, searchName string, q paging.Query) ([]Blog, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	term := strings.ToLower(strings.TrimSpace(searchName))

	s.mu.RLock()
	matched := s.blogs.filter(func(b Blog) bool {
		return term == "" || strings.Contains(strings.ToLower(b.Name), term)
	})
	s.mu.RUnlock()

	items, total := paging.Slice(matched, q, blogComparators)
	return items, total, nil
}

// ---- posts ----

func (s *MemoryStore) InsertPost(ctx context.Context, p Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.MyStatus = ""
	s.posts.insert(p.ID, p)
	return nil
}

func (s *MemoryStore) Post(ctx context.Context, id string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.posts.live(id)
	if !ok {
		return Post{}, notFound("platform.MemoryStore.Post", "post", id)
	}
	return clonePost(r.v), nil
}

func (s *MemoryStore) UpdatePost(ctx context.Context, id string, in PostInput, blogName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts.live(id)
	if !ok {
		return notFound("platform.MemoryStore.UpdatePost", "post", id)
	}
	r.v.Title, r.v.ShortDescription, r.v.Content = in.Title, in.ShortDescription, in.Content
	r.v.BlogID, r.v.BlogName = in.BlogID, blogName
	return nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts.live(id)
	if !ok {
		return notFound("platform.MemoryStore.DeletePost", "post", id)
	}
	r.deleted = true
	return nil
}

func (s *MemoryStore) ListPosts(ctx context.Context, blogID string, q paging.Query) ([]Post, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matched := s.posts.filter(func(p Post) bool { return blogID == "" || p.BlogID == blogID })
	for i := range matched {
		matched[i] = clonePost(matched[i])
	}
	s.mu.RUnlock()

	items, total := paging.Slice(matched, q, postComparators)
	return items, total, nil
}

func (s *MemoryStore) SetPostReactions(ctx context.Context, id string, re Reactions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts.live(id)
	if !ok {
		return notFound("platform.MemoryStore.SetPostReactions", "post", id)
	}
	re.Newest = slices.Clone(re.Newest)
	r.v.Reactions = re
	return nil
}

func clonePost(p Post) Post {
	p.Reactions.Newest = slices.Clone(p.Reactions.Newest)
	if p.Reactions.Newest == nil {
		p.Reactions.Newest = []NewestLike{}
	}
	return p
}

// ---- comments ----

func (s *MemoryStore) InsertComment(ctx context.Context, c Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.MyStatus = ""
	s.comments.insert(c.ID, c)
	return nil
}

func (s *MemoryStore) Comment(ctx context.Context, id string) (Comment, error) {
	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.comments.live(id)
	if !ok {
		return Comment{}, notFound("platform.MemoryStore.Comment", "comment", id)
	}
	return r.v, nil
}

func (s *MemoryStore) UpdateComment(ctx context.Context, id, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments.live(id)
	if !ok {
		return notFound("platform.MemoryStore.UpdateComment", "comment", id)
	}
	r.v.Content = content
	return nil
}

func (s *MemoryStore) DeleteComment(ctx context.Context, id string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments.live(id)
	if !ok {
		return notFound("platform.MemoryStore.DeleteComment", "comment", id)
	}
	r.deleted = true
	return nil
}

func (s *MemoryStore) ListComments(ctx context.Context, postID string, q paging.Query) ([]Comment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matched := s.comments.filter(func(c Comment) bool { return c.PostID == postID })
	s.mu.RUnlock()

	items, total := paging.Slice(matched, q, commentComparators)
	return items, total, nil
}

func (s *MemoryStore) SetCommentReactions(ctx context.Context, id string, re Reactions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments.live(id)
	if !ok {
		return notFound("platform.MemoryStore.SetCommentReactions", "comment", id)
	}
	r.v.Reactions = Reactions{Likes: re.Likes, Dislikes: re.Dislikes}
	return nil
}

// ---- likes ----

func (s *MemoryStore) PutLike(ctx context.Context, l Like) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likes[likeKey{l.Kind, l.TargetID, l.Author.UserID}] = l
	return nil
}

func (s *MemoryStore) Like(ctx context.Context, kind TargetKind, targetID, userID string) (Like, error) {
	if err := ctx.Err(); err != nil {
		return Like{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.likes[likeKey{kind, targetID, userID}]
	if !ok {
		return Like{}, notFound("platform.MemoryStore.Like", "like", targetID)
	}
	return l, nil
}

func (s *MemoryStore) DeleteLike(ctx context.Context, kind TargetKind, targetID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := likeKey{kind, targetID, userID}
	if _, ok := s.likes[k]; !ok {
		return notFound("platform.MemoryStore.DeleteLike", "like", targetID)
	}
	delete(s.likes, k)
	return nil
}

func (s *MemoryStore) Reactions(ctx context.Context, kind TargetKind, targetID string, newest int) (Reactions, error) {
	if err := ctx.Err(); err != nil {
		return Reactions{}, err
	}
	s.mu.RLock()
	var (
		out   Reactions
		liked []Like
	)
	for k, l := range s.likes {
		if k.kind != kind || k.target != targetID {
			continue
		}
		switch l.Status {
		case StatusLike:
			out.Likes++
			liked = append(liked, l)
		case StatusDislike:
			out.Dislikes++
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(liked, func(a, b Like) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Author.UserID, b.Author.UserID)
	})
	out.Newest = make([]NewestLike, 0, min(newest, len(liked)))
	for _, l := range liked[:min(newest, len(liked))] {
		out.Newest = append(out.Newest, NewestLike{AddedAt: l.CreatedAt, UserID: l.Author.UserID, Login: l.Author.Login})
	}
	return out, nil
}

func (s *MemoryStore) Statuses(ctx context.Context, kind TargetKind, userID string, targetIDs []string) (map[string]LikeStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]LikeStatus, len(targetIDs))
	for _, id := range targetIDs {
		if l, ok := s.likes[likeKey{kind, id, userID}]; ok {
			out[id] = l.Status
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

var _ Store = (*MemoryStore)(nil)
