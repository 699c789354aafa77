package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/yatube/models"
)

func (s *Store) GroupBySlug(ctx context.Context, slug string) (models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error
	return group, wrap(err, "find group by slug")
}

func (s *Store) GroupByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).First(&group, id).Error
	return group, wrap(err, "find group by id")
}

// ListGroups returns every group ordered by title, for the post form's select box.
func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).Order("title").Order("id").Find(&groups).Error
	return groups, wrap(err, "list groups")
}

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	return wrap(s.db.WithContext(ctx).Create(group).Error, "create group")
}

// DeleteGroup removes the group and detaches its posts (group_id becomes NULL); the posts survive.
func (s *Store) DeleteGroup(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("group_id = ?", id).
			Update("group_id", gorm.Expr("NULL")).Error; err != nil {
			return errors.Wrap(err, "detach posts")
		}
		return tx.Delete(&group).Error
	})
	return wrap(err, "delete group")
}
