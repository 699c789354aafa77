package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := config.InitDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: filepath.Join(t.TempDir(), "yatube.db"),
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.New(db)
}

func getTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

var userSeq int

func makeUser(ctx context.Context, t *testing.T, store *repository.Store) models.User {
	t.Helper()
	userSeq++
	user := models.User{
		Username: fmt.Sprintf("%s%d", gofakeit.Username(), userSeq),
		Email:    gofakeit.Email(),
	}
	require.NoError(t, store.CreateUser(ctx, &user))
	return user
}

func makeGroup(ctx context.Context, t *testing.T, store *repository.Store, slug string) models.Group {
	t.Helper()
	group := models.Group{Title: "Group " + slug, Slug: slug, Description: gofakeit.Sentence(6)}
	require.NoError(t, store.CreateGroup(ctx, &group))
	return group
}

func makePost(ctx context.Context, t *testing.T, store *repository.Store, author models.User, group *models.Group) models.Post {
	t.Helper()
	post := models.Post{Text: gofakeit.Sentence(8), AuthorID: author.ID}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, store.CreatePost(ctx, &post))
	return post
}
