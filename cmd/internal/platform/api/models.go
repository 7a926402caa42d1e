package platformapi

import (
	"time"

	"bloggers/cmd/internal/platform"
)

type blogRequest struct {
	Name        string `json:"name" validate:"required,max=15"`
	Description string `json:"description" validate:"required,max=500"`
	WebsiteURL  string `json:"websiteUrl" validate:"required,max=100,website"`
}

// blogPostRequest is a post created under /blogs/{id}/posts.
type blogPostRequest struct {
	Title            string `json:"title" validate:"required,max=30"`
	ShortDescription string `json:"shortDescription" validate:"required,max=100"`
	Content          string `json:"content" validate:"required,max=1000"`
}

type postRequest struct {
	Title            string `json:"title" validate:"required,max=30"`
	ShortDescription string `json:"shortDescription" validate:"required,max=100"`
	Content          string `json:"content" validate:"required,max=1000"`
	BlogID           string `json:"blogId" validate:"required"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required,min=20,max=300"`
}

type likeRequest struct {
	LikeStatus string `json:"likeStatus" validate:"required,likestatus"`
}

type blogView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	WebsiteURL   string    `json:"websiteUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	IsMembership bool      `json:"isMembership"`
}

type newestLikeView struct {
	AddedAt time.Time `json:"addedAt"`
	UserID  string    `json:"userId"`
	Login   string    `json:"login"`
}

type extendedLikesView struct {
	LikesCount    int64               `json:"likesCount"`
	DislikesCount int64               `json:"dislikesCount"`
	MyStatus      platform.LikeStatus `json:"myStatus"`
	NewestLikes   []newestLikeView    `json:"newestLikes"`
}

type postView struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	ShortDescription string            `json:"shortDescription"`
	Content          string            `json:"content"`
	BlogID           string            `json:"blogId"`
	BlogName         string            `json:"blogName"`
	CreatedAt        time.Time         `json:"createdAt"`
	ExtendedLikes    extendedLikesView `json:"extendedLikesInfo"`
}

type commentatorView struct {
	UserID    string `json:"userId"`
	UserLogin string `json:"userLogin"`
}

type likesView struct {
	LikesCount    int64               `json:"likesCount"`
	DislikesCount int64               `json:"dislikesCount"`
	MyStatus      platform.LikeStatus `json:"myStatus"`
}

type commentView struct {
	ID          string          `json:"id"`
	Content     string          `json:"content"`
	Commentator commentatorView `json:"commentatorInfo"`
	CreatedAt   time.Time       `json:"createdAt"`
	Likes       likesView       `json:"likesInfo"`
}

func toBlogView(b platform.Blog) blogView {
	return blogView{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		WebsiteURL:   b.WebsiteURL,
		CreatedAt:    b.CreatedAt.UTC(),
		IsMembership: b.IsMembership,
	}
}

func toPostView(p platform.Post) postView {
	newest := make([]newestLikeView, 0, len(p.Reactions.Newest))
	for _, n := range p.Reactions.Newest {
		newest = append(newest, newestLikeView{AddedAt: n.AddedAt.UTC(), UserID: n.UserID, Login: n.Login})
	}
	return postView{
		ID:               p.ID,
		Title:            p.Title,
		ShortDescription: p.ShortDescription,
		Content:          p.Content,
		BlogID:           p.BlogID,
		BlogName:         p.BlogName,
		CreatedAt:        p.CreatedAt.UTC(),
		ExtendedLikes: extendedLikesView{
			LikesCount:    p.Reactions.Likes,
			DislikesCount: p.Reactions.Dislikes,
			MyStatus:      myStatus(p.MyStatus),
			NewestLikes:   newest,
		},
	}
}

func toCommentView(c platform.Comment) commentView {
	return commentView{
		ID:          c.ID,
		Content:     c.Content,
		Commentator: commentatorView{UserID: c.Author.UserID, UserLogin: c.Author.Login},
		CreatedAt:   c.CreatedAt.UTC(),
		Likes: likesView{
			LikesCount:    c.Reactions.Likes,
			DislikesCount: c.Reactions.Dislikes,
			MyStatus:      myStatus(c.MyStatus),
		},
	}
}

func myStatus(s platform.LikeStatus) platform.LikeStatus {
	if s == "" {
		return platform.StatusNone
	}
	return s
}
