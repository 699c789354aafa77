package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/yatube/models"
)

func (s *Store) UserByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	return user, wrap(err, "find user by id")
}

func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return user, wrap(err, "find user by username")
}

// UserByEmail returns the oldest account registered with email.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Order("id").First(&user).Error
	return user, wrap(err, "find user by email")
}

func (s *Store) UserByProvider(ctx context.Context, provider, providerID string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&user).Error
	return user, wrap(err, "find user by provider")
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count users by username")
	}
	return count > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return wrap(s.db.WithContext(ctx).Create(user).Error, "create user")
}

func (s *Store) UpdatePassword(ctx context.Context, userID uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update password")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the account with its follow edges in both directions, its comments,
// its posts and every comment on those posts. It returns the image keys of the removed
// posts so the caller can drop the files.
func (s *Store) DeleteUser(ctx context.Context, userID uint) ([]string, error) {
	var images []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("author_id = ? AND image <> ''", userID).
			Pluck("image", &images).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? OR author_id = ?", userID, userID).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		ownPosts := tx.Model(&models.Post{}).Select("id").Where("author_id = ?", userID)
		if err := tx.Where("author_id = ? OR post_id IN (?)", userID, ownPosts).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return nil, wrap(err, "delete user")
	}
	return images, nil
}

// SiteCounts are the totals shown on the tech page.
type SiteCounts struct {
	Users    int64
	Posts    int64
	Comments int64
	Groups   int64
}

func (s *Store) SiteCounts(ctx context.Context) (SiteCounts, error) {
	var counts SiteCounts
	db := s.db.WithContext(ctx)
	for _, c := range []struct {
		model interface{}
		dst   *int64
	}{
		{&models.User{}, &counts.Users},
		{&models.Post{}, &counts.Posts},
		{&models.Comment{}, &counts.Comments},
		{&models.Group{}, &counts.Groups},
	} {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return counts, errors.Wrapf(err, "count %T", c.model)
		}
	}
	return counts, nil
}
