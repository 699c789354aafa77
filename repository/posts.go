package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/utils"
)

// PostFilter narrows a feed. Zero fields do not filter.
type PostFilter struct {
	GroupID  uint
	AuthorID uint
	// FollowerID keeps posts written by authors this user follows.
	FollowerID uint
}

func (f PostFilter) apply(db *gorm.DB) *gorm.DB {
	if f.GroupID != 0 {
		db = db.Where("posts.group_id = ?", f.GroupID)
	}
	if f.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.FollowerID != 0 {
		followed := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Follow{}).Select("author_id").Where("user_id = ?", f.FollowerID)
		db = db.Where("posts.author_id IN (?)", followed)
	}
	return db
}

// PostPage is one page of a feed, newest first.
type PostPage struct {
	Posts []models.Post
	Page  utils.Page
}

// ListPosts returns the requested page of posts matching filter, with author and group loaded.
// Out-of-range page numbers are clamped to the first or last page.
func (s *Store) ListPosts(ctx context.Context, filter PostFilter, number, perPage int) (PostPage, error) {
	total, err := s.CountPosts(ctx, filter)
	if err != nil {
		return PostPage{}, err
	}

	page := utils.Paginate(total, number, perPage)
	posts := []models.Post{}
	if total > 0 {
		err = filter.apply(s.db.WithContext(ctx).Model(&models.Post{})).
			Preload("Author").
			Preload("Group").
			Order("posts.created_at DESC").
			Order("posts.id DESC").
			Offset(page.Offset()).
			Limit(page.PerPage).
			Find(&posts).Error
		if err != nil {
			return PostPage{}, errors.Wrap(err, "list posts")
		}
	}
	return PostPage{Posts: posts, Page: page}, nil
}

func (s *Store) CountPosts(ctx context.Context, filter PostFilter) (int64, error) {
	var total int64
	err := filter.apply(s.db.WithContext(ctx).Model(&models.Post{})).Count(&total).Error
	if err != nil {
		return 0, errors.Wrap(err, "count posts")
	}
	return total, nil
}

// PostByID loads a post with its author and group.
func (s *Store) PostByID(ctx context.Context, id uint) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").Preload("Group").First(&post, id).Error
	return post, wrap(err, "find post")
}

// CreatePost inserts a post; CreatedAt is set by the database layer.
func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	post.CreatedAt = s.db.NowFunc()
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	return wrap(err, "create post")
}

// UpdatePost saves text, group and image. CreatedAt and the author never change.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	err := s.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).
		Updates(map[string]interface{}{
			"text":     post.Text,
			"group_id": post.GroupID,
			"image":    post.Image,
		}).Error
	return wrap(err, "update post")
}

// DeletePost removes a post together with its comments.
func (s *Store) DeletePost(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return wrap(err, "delete post")
}
