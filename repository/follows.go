package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/cppla/yatube/models"
)

// Follow creates the edge follower -> author. Following yourself or an author you
// already follow is a silent no-op; the unique pair index absorbs concurrent duplicates.
func (s *Store) Follow(ctx context.Context, followerID, authorID uint) (bool, error) {
	if followerID == authorID {
		return false, nil
	}
	edge := models.Follow{UserID: followerID, AuthorID: authorID, CreatedAt: s.db.NowFunc()}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&edge)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "create follow")
	}
	return res.RowsAffected > 0, nil
}

// Unfollow deletes the edge from follower to the author named authorUsername.
// It returns ErrNotFound when no such edge exists.
func (s *Store) Unfollow(ctx context.Context, followerID uint, authorUsername string) error {
	db := s.db.WithContext(ctx)
	author := db.Model(&models.User{}).Select("id").Where("username = ?", authorUsername)

	var edge models.Follow
	err := db.Where("user_id = ? AND author_id IN (?)", followerID, author).First(&edge).Error
	if err != nil {
		return wrap(err, "find follow")
	}
	return wrap(db.Delete(&edge).Error, "delete follow")
}

func (s *Store) IsFollowing(ctx context.Context, followerID, authorID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", followerID, authorID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check follow")
	}
	return count > 0, nil
}

// AuthorStats are the counters shown on a profile.
type AuthorStats struct {
	Posts     int64
	Followers int64
	Following int64
}

func (s *Store) AuthorStats(ctx context.Context, authorID uint) (AuthorStats, error) {
	var stats AuthorStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Where("author_id = ?", authorID).Count(&stats.Posts).Error; err != nil {
		return stats, errors.Wrap(err, "count author posts")
	}
	if err := db.Model(&models.Follow{}).Where("author_id = ?", authorID).Count(&stats.Followers).Error; err != nil {
		return stats, errors.Wrap(err, "count followers")
	}
	if err := db.Model(&models.Follow{}).Where("user_id = ?", authorID).Count(&stats.Following).Error; err != nil {
		return stats, errors.Wrap(err, "count following")
	}
	return stats, nil
}
