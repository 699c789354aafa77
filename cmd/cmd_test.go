package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
)

func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URI", filepath.Join(dir, "yatube.db"))
	t.Setenv("MEDIA_ROOT", filepath.Join(dir, "media"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CACHE_BACKEND", "memory")
	return filepath.Join(dir, "missing.json")
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func openTestStore(t *testing.T, cfgPath string) *repository.Store {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	db, err := config.InitDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.New(db)
}

func TestGroupCommands(t *testing.T) {
	cfgPath := setTestEnv(t)
	assert.Contains(t, run(t, cfgPath, "migrate"), "migrations applied")
	assert.Contains(t, run(t, cfgPath, "group", "create", "--title", "Cats", "--slug", "cats", "--description", "<b>purr</b>"), `group "cats" created`)
	assert.Contains(t, run(t, cfgPath, "group", "list"), "cats")

	ctx := context.Background()
	store := openTestStore(t, cfgPath)
	group, err := store.GroupBySlug(ctx, "cats")
	require.NoError(t, err)
	author := models.User{Username: "leo"}
	require.NoError(t, store.CreateUser(ctx, &author))
	post := models.Post{Text: "meow", AuthorID: author.ID, GroupID: &group.ID}
	require.NoError(t, store.CreatePost(ctx, &post))

	assert.Contains(t, run(t, cfgPath, "group", "delete", "cats"), `group "cats" deleted`)
	kept, err := store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.GroupID)
}

func TestUserDeleteCommand(t *testing.T) {
	cfgPath := setTestEnv(t)
	run(t, cfgPath, "migrate")

	ctx := context.Background()
	store := openTestStore(t, cfgPath)
	author := models.User{Username: "leo"}
	require.NoError(t, store.CreateUser(ctx, &author))
	post := models.Post{Text: "war and peace", AuthorID: author.ID}
	require.NoError(t, store.CreatePost(ctx, &post))

	assert.Contains(t, run(t, cfgPath, "user", "delete", "leo"), `user "leo" deleted`)
	_, err := store.UserByUsername(ctx, "leo")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.PostByID(ctx, post.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCacheClearCommand(t *testing.T) {
	cfgPath := setTestEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_PREFIX", "yatube:")
	t.Setenv("REDIS_HOST", mr.Host())
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	t.Setenv("REDIS_PORT", strconv.Itoa(port))

	require.NoError(t, mr.Set("yatube:index_page:page=1", "<article>"))
	require.NoError(t, mr.Set("other:key", "kept"))

	assert.Contains(t, run(t, cfgPath, "cache", "clear"), "cache cleared")
	assert.False(t, mr.Exists("yatube:index_page:page=1"))
	assert.True(t, mr.Exists("other:key"))
}
