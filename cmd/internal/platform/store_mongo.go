package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"bloggers/cmd/internal/paging"
)

const (
	blogsCollection    = "blogs"
	postsCollection    = "posts"
	commentsCollection = "comments"
	likesCollection    = "likes"
)

// MongoStore persists the platform in four collections. The database
// handle is owned by the caller.
type MongoStore struct {
	blogs    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
	likes    *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		blogs:    db.Collection(blogsCollection),
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
		likes:    db.Collection(likesCollection),
	}
}

// EnsureIndexes creates the lookup indexes and the one-reaction-per-user
// constraint on likes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	plan := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.blogs, []mongo.IndexModel{{Keys: bson.D{{Key: "createdAt", Value: -1}}}}},
		{s.posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "blogId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.comments, []mongo.IndexModel{{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}}}},
		{s.likes, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "targetId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().SetName("likes_target_user_unique").SetUnique(true),
			},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "targetId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
	}
	for _, p := range plan {
		if _, err := p.coll.Indexes().CreateMany(ctx, p.models); err != nil {
			return fmt.Errorf("platform: ensure indexes on %s: %w", p.coll.Name(), err)
		}
	}
	return nil
}

type blogDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	Name         string        `bson:"name"`
	Description  string        `bson:"description"`
	WebsiteURL   string        `bson:"websiteUrl"`
	CreatedAt    time.Time     `bson:"createdAt"`
	IsMembership bool          `bson:"isMembership"`
	DeletedAt    *time.Time    `bson:"deletedAt,omitempty"`
}

type newestLikeDoc struct {
	AddedAt time.Time `bson:"addedAt"`
	UserID  string    `bson:"userId"`
	Login   string    `bson:"login"`
}

type postDoc struct {
	ID               bson.ObjectID   `bson:"_id"`
	Title            string          `bson:"title"`
	ShortDescription string          `bson:"shortDescription"`
	Content          string          `bson:"content"`
	BlogID           string          `bson:"blogId"`
	BlogName         string          `bson:"blogName"`
	CreatedAt        time.Time       `bson:"createdAt"`
	LikesCount       int64           `bson:"likesCount"`
	DislikesCount    int64           `bson:"dislikesCount"`
	NewestLikes      []newestLikeDoc `bson:"newestLikes"`
	DeletedAt        *time.Time      `bson:"deletedAt,omitempty"`
}

type commentatorDoc struct {
	UserID    string `bson:"userId"`
	UserLogin string `bson:"userLogin"`
}

type commentDoc struct {
	ID              bson.ObjectID  `bson:"_id"`
	PostID          string         `bson:"postId"`
	Content         string         `bson:"content"`
	CommentatorInfo commentatorDoc `bson:"commentatorInfo"`
	CreatedAt       time.Time      `bson:"createdAt"`
	LikesCount      int64          `bson:"likesCount"`
	DislikesCount   int64          `bson:"dislikesCount"`
	DeletedAt       *time.Time     `bson:"deletedAt,omitempty"`
}

type likeDoc struct {
	Kind      TargetKind `bson:"kind"`
	TargetID  string     `bson:"targetId"`
	UserID    string     `bson:"userId"`
	UserLogin string     `bson:"userLogin"`
	Status    LikeStatus `bson:"status"`
	CreatedAt time.Time  `bson:"createdAt"`
}

func (d blogDoc) blog() Blog {
	return Blog{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Description:  d.Description,
		WebsiteURL:   d.WebsiteURL,
		CreatedAt:    d.CreatedAt.UTC(),
		IsMembership: d.IsMembership,
	}
}

func (d postDoc) post() Post {
	newest := make([]NewestLike, 0, len(d.NewestLikes))
	for _, n := range d.NewestLikes {
		newest = append(newest, NewestLike{AddedAt: n.AddedAt.UTC(), UserID: n.UserID, Login: n.Login})
	}
	return Post{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		ShortDescription: d.ShortDescription,
		Content:          d.Content,
		BlogID:           d.BlogID,
		BlogName:         d.BlogName,
		CreatedAt:        d.CreatedAt.UTC(),
		Reactions:        Reactions{Likes: d.LikesCount, Dislikes: d.DislikesCount, Newest: newest},
	}
}

func (d commentDoc) comment() Comment {
	return Comment{
		ID:        d.ID.Hex(),
		PostID:    d.PostID,
		Content:   d.Content,
		Author:    Author{UserID: d.CommentatorInfo.UserID, Login: d.CommentatorInfo.UserLogin},
		CreatedAt: d.CreatedAt.UTC(),
		Reactions: Reactions{Likes: d.LikesCount, Dislikes: d.DislikesCount},
	}
}

func newestDocs(n []NewestLike) []newestLikeDoc {
	out := make([]newestLikeDoc, 0, len(n))
	for _, x := range n {
		out = append(out, newestLikeDoc{AddedAt: x.AddedAt.UTC(), UserID: x.UserID, Login: x.Login})
	}
	return out
}

func live(f bson.M) bson.M {
	f["deletedAt"] = nil
	return f
}

func objectID(op, kind, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, notFound(op, kind, id)
	}
	return oid, nil
}

// findOne decodes the live document with _id into dst.
func findOne(ctx context.Context, coll *mongo.Collection, op, kind, id string, dst any) error {
	oid, err := objectID(op, kind, id)
	if err != nil {
		return err
	}
	err = coll.FindOne(ctx, live(bson.M{"_id": oid})).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound(op, kind, id)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// updateLive applies update to the live document with _id.
func updateLive(ctx context.Context, coll *mongo.Collection, op, kind, id string, update bson.M) error {
	oid, err := objectID(op, kind, id)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, live(bson.M{"_id": oid}), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return notFound(op, kind, id)
	}
	return nil
}

// page runs a sorted, windowed find and its count concurrently.
func page[D any](ctx context.Context, coll *mongo.Collection, filter bson.M, q paging.Query) ([]D, int64, error) {
	find := options.Find().
		SetSort(bson.D{{Key: q.SortBy, Value: q.SortSign()}, {Key: "_id", Value: q.SortSign()}}).
		SetSkip(q.Skip()).
		SetLimit(q.Limit())

	return paging.Fetch(ctx,
		func(ctx context.Context) ([]D, error) {
			cur, err := coll.Find(ctx, filter, find)
			if err != nil {
				return nil, err
			}
			var out []D
			if err := cur.All(ctx, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		func(ctx context.Context) (int64, error) {
			return coll.CountDocuments(ctx, filter)
		},
	)
}

// ---- blogs ----

func (s *MongoStore) InsertBlog(ctx context.Context, b Blog) error {
	const op = "platform.MongoStore.InsertBlog"
	oid, err := bson.ObjectIDFromHex(b.ID)
	if err != nil {
		return fmt.Errorf("%s: blog id %q: %w", op, b.ID, err)
	}
	_, err = s.blogs.InsertOne(ctx, blogDoc{
		ID:           oid,
		Name:         b.Name,
		Description:  b.Description,
		WebsiteURL:   b.WebsiteURL,
		CreatedAt:    b.CreatedAt.UTC(),
		IsMembership: b.IsMembership,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MongoStore) Blog(ctx context.Context, id string) (Blog, error) {
	var d blogDoc
	if err := findOne(ctx, s.blogs, "platform.MongoStore.Blog", "blog", id, &d); err != nil {
		return Blog{}, err
	}
	return d.blog(), nil
}

func (s *MongoStore) UpdateBlog(ctx context.Context, id string, in BlogInput) error {
	return updateLive(ctx, s.blogs, "platform.MongoStore.UpdateBlog", "blog", id, bson.M{"$set": bson.M{
		"name":        in.Name,
		"description": in.Description,
		"websiteUrl":  in.WebsiteURL,
	}})
}

func (s *MongoStore) DeleteBlog(ctx context.Context, id string, now time.Time) error {
	return updateLive(ctx, s.blogs, "platform.MongoStore.DeleteBlog", "blog", id, bson.M{"$set": bson.M{"deletedAt": now.UTC()}})
}

func (s *MongoStore) ListBlogs(ctx context.Context, searchName string, q paging.Query) ([]Blog, int64, error) {
	filter := bson.M{}
	if t := strings.TrimSpace(searchName); t != "" {
		filter["name"] = bson.Regex{Pattern: regexp.QuoteMeta(t), Options: "i"}
	}
	docs, total, err := page[blogDoc](ctx, s.blogs, live(filter), q)
	if err != nil {
		return nil, 0, fmt.Errorf("platform.MongoStore.ListBlogs: %w", err)
	}
	out := make([]Blog, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.blog())
	}
	return out, total, nil
}

// ---- posts ----

func (s *MongoStore) InsertPost(ctx context.Context, p Post) error {
	const op = "platform.MongoStore.InsertPost"
	oid, err := bson.ObjectIDFromHex(p.ID)
	if err != nil {
		return fmt.Errorf("%s: post id %q: %w", op, p.ID, err)
	}
	_, err = s.posts.InsertOne(ctx, postDoc{
		ID:               oid,
		Title:            p.Title,
		ShortDescription: p.ShortDescription,
		Content:          p.Content,
		BlogID:           p.BlogID,
		BlogName:         p.BlogName,
		CreatedAt:        p.CreatedAt.UTC(),
		LikesCount:       p.Reactions.Likes,
		DislikesCount:    p.Reactions.Dislikes,
		NewestLikes:      newestDocs(p.Reactions.Newest),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MongoStore) Post(ctx context.Context, id string) (Post, error) {
	var d postDoc
	if err := findOne(ctx, s.posts, "platform.MongoStore.Post", "post", id, &d); err != nil {
		return Post{}, err
	}
	return d.post(), nil
}

func (s *MongoStore) UpdatePost(ctx context.Context, id string, in PostInput, blogName string) error {
	return updateLive(ctx, s.posts, "platform.MongoStore.UpdatePost", "post", id, bson.M{"$set": bson.M{
		"title":            in.Title,
		"shortDescription": in.ShortDescription,
		"content":          in.Content,
		"blogId":           in.BlogID,
		"blogName":         blogName,
	}})
}

func (s *MongoStore) DeletePost(ctx context.Context, id string, now time.Time) error {
	return updateLive(ctx, s.posts, "platform.MongoStore.DeletePost", "post", id, bson.M{"$set": bson.M{"deletedAt": now.UTC()}})
}

func (s *MongoStore) ListPosts(ctx context.Context, blogID string, q paging.Query) ([]Post, int64, error) {
	filter := bson.M{}
	if blogID != "" {
		filter["blogId"] = blogID
	}
	docs, total, err := page[postDoc](ctx, s.posts, live(filter), q)
	if err != nil {
		return nil, 0, fmt.Errorf("platform.MongoStore.ListPosts: %w", err)
	}
	out := make([]Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.post())
	}
	return out, total, nil
}

func (s *MongoStore) SetPostReactions(ctx context.Context, id string, r Reactions) error {
	return updateLive(ctx, s.posts, "platform.MongoStore.SetPostReactions", "post", id, bson.M{"$set": bson.M{
		"likesCount":    r.Likes,
		"dislikesCount": r.Dislikes,
		"newestLikes":   newestDocs(r.Newest),
	}})
}

// ---- comments ----

func (s *MongoStore) InsertComment(ctx context.Context, c Comment) error {
	const op = "platform.MongoStore.InsertComment"
	oid, err := bson.ObjectIDFromHex(c.ID)
	if err != nil {
		return fmt.Errorf("%s: comment id %q: %w", op, c.ID, err)
	}
	_, err = s.comments.InsertOne(ctx, commentDoc{
		ID:              oid,
		PostID:          c.PostID,
		Content:         c.Content,
		CommentatorInfo: commentatorDoc{UserID: c.Author.UserID, UserLogin: c.Author.Login},
		CreatedAt:       c.CreatedAt.UTC(),
		LikesCount:      c.Reactions.Likes,
		DislikesCount:   c.Reactions.Dislikes,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MongoStore) Comment(ctx context.Context, id string) (Comment, error) {
	var d commentDoc
	if err := findOne(ctx, s.comments, "platform.MongoStore.Comment", "comment", id, &d); err != nil {
		return Comment{}, err
	}
	return d.comment(), nil
}

func (s *MongoStore) UpdateComment(ctx context.Context, id, content string) error {
	return updateLive(ctx, s.comments, "platform.MongoStore.UpdateComment", "comment", id, bson.M{"$set": bson.M{"content": content}})
}

func (s *MongoStore) DeleteComment(ctx context.Context, id string, now time.Time) error {
	return updateLive(ctx, s.comments, "platform.MongoStore.DeleteComment", "comment", id, bson.M{"$set": bson.M{"deletedAt": now.UTC()}})
}

func (s *MongoStore) ListComments(ctx context.Context, postID string, q paging.Query) ([]Comment, int64, error) {
	docs, total, err := page[commentDoc](ctx, s.comments, live(bson.M{"postId": postID}), q)
	if err != nil {
		return nil, 0, fmt.Errorf("platform.MongoStore.ListComments: %w", err)
	}
	out := make([]Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.comment())
	}
	return out, total, nil
}

func (s *MongoStore) SetCommentReactions(ctx context.Context, id string, r Reactions) error {
	return updateLive(ctx, s.comments, "platform.MongoStore.SetCommentReactions", "comment", id, bson.M{"$set": bson.M{
		"likesCount":    r.Likes,
		"dislikesCount": r.Dislikes,
	}})
}

// ---- likes ----

func likeFilter(kind TargetKind, targetID, userID string) bson.M {
	return bson.M{"kind": kind, "targetId": targetID, "userId": userID}
}

func (s *MongoStore) PutLike(ctx context.Context, l Like) error {
	_, err := s.likes.UpdateOne(ctx,
		likeFilter(l.Kind, l.TargetID, l.Author.UserID),
		bson.M{"$set": bson.M{
			"userLogin": l.Author.Login,
			"status":    l.Status,
			"createdAt": l.CreatedAt.UTC(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("platform.MongoStore.PutLike: %w", err)
	}
	return nil
}

func (s *MongoStore) Like(ctx context.Context, kind TargetKind, targetID, userID string) (Like, error) {
	const op = "platform.MongoStore.Like"
	var d likeDoc
	err := s.likes.FindOne(ctx, likeFilter(kind, targetID, userID)).Decode(&d)
	switch {
	case err == nil:
		return Like{
			Kind:      d.Kind,
			TargetID:  d.TargetID,
			Author:    Author{UserID: d.UserID, Login: d.UserLogin},
			Status:    d.Status,
			CreatedAt: d.CreatedAt.UTC(),
		}, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return Like{}, notFound(op, "like", targetID)
	default:
		return Like{}, fmt.Errorf("%s: %w", op, err)
	}
}

func (s *MongoStore) DeleteLike(ctx context.Context, kind TargetKind, targetID, userID string) error {
	const op = "platform.MongoStore.DeleteLike"
	res, err := s.likes.DeleteOne(ctx, likeFilter(kind, targetID, userID))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return notFound(op, "like", targetID)
	}
	return nil
}

func (s *MongoStore) Reactions(ctx context.Context, kind TargetKind, targetID string, newest int) (Reactions, error) {
	var out Reactions
	g, gctx := errgroup.WithContext(ctx)
	count := func(status LikeStatus, dst *int64) func() error {
		return func() error {
			n, err := s.likes.CountDocuments(gctx, bson.M{"kind": kind, "targetId": targetID, "status": status})
			*dst = n
			return err
		}
	}

	g.Go(count(StatusLike, &out.Likes))
	g.Go(count(StatusDislike, &out.Dislikes))
	out.Newest = []NewestLike{}
	if newest > 0 {
		g.Go(func() error {
			cur, err := s.likes.Find(gctx,
				bson.M{"kind": kind, "targetId": targetID, "status": StatusLike},
				options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "userId", Value: 1}}).SetLimit(int64(newest)),
			)
			if err != nil {
				return err
			}
			var docs []likeDoc
			if err := cur.All(gctx, &docs); err != nil {
				return err
			}
			for _, d := range docs {
				out.Newest = append(out.Newest, NewestLike{AddedAt: d.CreatedAt.UTC(), UserID: d.UserID, Login: d.UserLogin})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Reactions{}, fmt.Errorf("platform.MongoStore.Reactions: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Statuses(ctx context.Context, kind TargetKind, userID string, targetIDs []string) (map[string]LikeStatus, error) {
	const op = "platform.MongoStore.Statuses"
	cur, err := s.likes.Find(ctx, bson.M{"kind": kind, "userId": userID, "targetId": bson.M{"$in": targetIDs}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []likeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make(map[string]LikeStatus, len(docs))
	for _, d := range docs {
		out[d.TargetID] = d.Status
	}
	return out, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.blogs, s.posts, s.comments, s.likes} {
		if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("platform.MongoStore.DeleteAll %s: %w", c.Name(), err)
		}
	}
	return nil
}

var _ Store = (*MongoStore)(nil)
