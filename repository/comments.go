package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/cppla/yatube/models"
)

// CommentsForPost returns the comments of a post in creation order, each with its author.
func (s *Store) CommentsForPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at").Order("id").
		Find(&comments).Error
	return comments, wrap(err, "list comments")
}

func (s *Store) CommentByID(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, id).Error
	return comment, wrap(err, "find comment")
}

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.CreatedAt = s.db.NowFunc()
	return wrap(s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error, "create comment")
}

func (s *Store) DeleteComment(ctx context.Context, id uint) error {
	return wrap(s.db.WithContext(ctx).Delete(&models.Comment{}, id).Error, "delete comment")
}
