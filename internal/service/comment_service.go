package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"socialnet/internal/cache"
	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/validation"
)

// CommentRef addresses a comment through the post it belongs to.
type CommentRef struct {
	PostID    uint
	CommentID uint
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

// NewCommentService wires the service. isAdmin may be nil, in which case
// only authors can delete.
func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{comments: comments, posts: posts, isAdmin: isAdmin}
}

func commentBody(raw string) (string, error) {
	body := validation.SanitizeText(raw)
	switch n := utf8.RuneCountInString(body); {
	case n == 0:
		return "", models.NewValidationError("Content is required")
	case n > models.MaxCommentLength:
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", models.MaxCommentLength))
	}
	return body, nil
}

func (s *CommentService) CreateComment(ctx context.Context, actorID, postID uint, content string) (*models.Comment, error) {
	body, err := commentBody(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}

	comment := &models.Comment{Content: body, UserID: actorID, PostID: postID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)
	return s.comments.GetByID(ctx, comment.ID)
}

// ListComments returns a post's comments, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID)
}

// load fetches the comment and checks it sits under ref.PostID, so a
// comment cannot be edited through another post's URL.
func (s *CommentService) load(ctx context.Context, ref CommentRef) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, ref.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != ref.PostID {
		return nil, models.NewNotFoundError("Comment", ref.CommentID)
	}
	return comment, nil
}

// UpdateComment lets the author rewrite a comment.
func (s *CommentService) UpdateComment(ctx context.Context, actorID uint, ref CommentRef, content string) (*models.Comment, error) {
	comment, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if comment.UserID != actorID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}
	body, err := commentBody(content)
	if err != nil {
		return nil, err
	}

	if err := s.comments.UpdateContent(ctx, comment.ID, body); err != nil {
		return nil, err
	}
	return s.comments.GetByID(ctx, comment.ID)
}

// DeleteComment removes a comment. Admins may delete anyone's.
func (s *CommentService) DeleteComment(ctx context.Context, actorID uint, ref CommentRef) error {
	comment, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if comment.UserID != actorID {
		admin := false
		if s.isAdmin != nil {
			if admin, err = s.isAdmin(ctx, actorID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}
