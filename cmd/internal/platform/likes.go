package platform

import (
	"context"
	"errors"
	"fmt"
)

// SetPostLikeStatus records the user's reaction to a post and refreshes the
// post's counters and newest likes.
func (s *Service) SetPostLikeStatus(ctx context.Context, postID string, who Author, status LikeStatus) error {
	if _, err := s.store.Post(ctx, postID); err != nil {
		return err
	}
	changed, err := s.react(ctx, TargetPost, postID, who, status)
	if err != nil || !changed {
		return err
	}
	r, err := s.store.Reactions(ctx, TargetPost, postID, NewestLikesLimit)
	if err != nil {
		return err
	}
	return s.store.SetPostReactions(ctx, postID, r)
}

// SetCommentLikeStatus records the user's reaction to a comment and
// refreshes the comment's counters.
func (s *Service) SetCommentLikeStatus(ctx context.Context, commentID string, who Author, status LikeStatus) error {
	if _, err := s.store.Comment(ctx, commentID); err != nil {
		return err
	}
	changed, err := s.react(ctx, TargetComment, commentID, who, status)
	if err != nil || !changed {
		return err
	}
	r, err := s.store.Reactions(ctx, TargetComment, commentID, 0)
	if err != nil {
		return err
	}
	return s.store.SetCommentReactions(ctx, commentID, r)
}

// react applies status and reports whether the stored reaction changed.
// Repeating the current status is a no-op.
func (s *Service) react(ctx context.Context, kind TargetKind, targetID string, who Author, status LikeStatus) (bool, error) {
	if !status.Valid() {
		return false, FieldError{Field: "likeStatus", Msg: fmt.Sprintf("unknown like status %q", status)}
	}

	cur := StatusNone
	prev, err := s.store.Like(ctx, kind, targetID, who.UserID)
	switch {
	case err == nil:
		cur = prev.Status
	case errors.Is(err, ErrNotFound):
	default:
		return false, err
	}
	if cur == status {
		return false, nil
	}

	if status == StatusNone {
		if err := s.store.DeleteLike(ctx, kind, targetID, who.UserID); err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		return true, nil
	}
	err = s.store.PutLike(ctx, Like{
		Kind:      kind,
		TargetID:  targetID,
		Author:    who,
		Status:    status,
		CreatedAt: s.now().UTC(),
	})
	return err == nil, err
}

func (s *Service) statuses(ctx context.Context, kind TargetKind, viewerID string, targets []string) (map[string]LikeStatus, error) {
	if viewerID == "" || len(targets) == 0 {
		return nil, nil
	}
	return s.store.Statuses(ctx, kind, viewerID, targets)
}

func statusOf(m map[string]LikeStatus, id string) LikeStatus {
	if st, ok := m[id]; ok {
		return st
	}
	return StatusNone
}
