package routes_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/controllers"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/routes"
	"github.com/cppla/yatube/storage"
	"github.com/cppla/yatube/templates"
	"github.com/cppla/yatube/utils"
)

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	svc    controllers.Services
	mailer *fakeMailer
	ctx    context.Context
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	cfg := config.AppConfig{
		JWTSecret:          "test-secret",
		SessionCookieName:  "yatube_session",
		SessionTTLHours:    1,
		PostsPerPage:       10,
		IndexCacheSeconds:  20,
		RateLimitPerMinute: 1000,
		DBDriver:           "sqlite",
		DatabaseURI:        filepath.Join(dir, "yatube.db"),
		CacheBackend:       "memory",
		MediaBackend:       "local",
		MediaRoot:          filepath.Join(dir, "media"),
		MediaURL:           "/media/",
		GinMode:            "test",
		LogLevel:           "silent",
	}

	db, err := config.InitDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	images, err := storage.NewLocalStore(cfg.MediaRoot, cfg.MediaURL)
	require.NoError(t, err)
	pages, err := templates.New(images.URL)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	svc := controllers.Services{
		Config: cfg,
		Store:  repository.New(db),
		Cache:  cache.NewMemoryStore(utils.NewRealClock()),
		Images: images,
		Pages:  pages,
		Mailer: mailer,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return &testApp{t: t, router: routes.SetupRouter(svc), svc: svc, mailer: mailer, ctx: ctx}
}

var userSeq int

func (a *testApp) makeUser(password string) models.User {
	a.t.Helper()
	userSeq++
	user := models.User{
		Username:  fmt.Sprintf("%s%d", gofakeit.LetterN(8), userSeq),
		Email:     fmt.Sprintf("user%d@example.com", userSeq),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
	}
	if password != "" {
		hash, err := utils.HashPassword(password)
		require.NoError(a.t, err)
		user.PasswordHash = hash
	}
	require.NoError(a.t, a.svc.Store.CreateUser(a.ctx, &user))
	return user
}

func (a *testApp) makeGroup(slug string) models.Group {
	a.t.Helper()
	group := models.Group{Title: "Group " + slug, Slug: slug, Description: "About " + slug}
	require.NoError(a.t, a.svc.Store.CreateGroup(a.ctx, &group))
	return group
}

func (a *testApp) makePost(author models.User, text string, group *models.Group) models.Post {
	a.t.Helper()
	post := models.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(a.t, a.svc.Store.CreatePost(a.ctx, &post))
	return post
}

func (a *testApp) cookie(user *models.User) *http.Cookie {
	token, err := utils.GenerateToken(a.svc.Config.JWTSecret, user.ID, user.Username, time.Hour)
	require.NoError(a.t, err)
	return &http.Cookie{Name: a.svc.Config.SessionCookieName, Value: token}
}

func (a *testApp) do(req *http.Request, user *models.User) *httptest.ResponseRecorder {
	if user != nil {
		req.AddCookie(a.cookie(user))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(path string, user *models.User) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), user)
}

func (a *testApp) postForm(path string, form url.Values, user *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, user)
}

func (a *testApp) countPosts() int64 {
	n, err := a.svc.Store.CountPosts(a.ctx, repository.PostFilter{})
	require.NoError(a.t, err)
	return n
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	post := app.makePost(author, "text", nil)
	comment := models.Comment{PostID: post.ID, AuthorID: author.ID, Text: "first"}
	require.NoError(t, app.svc.Store.CreateComment(app.ctx, &comment))

	for _, path := range []string{
		"/create/",
		"/follow/",
		fmt.Sprintf("/posts/%d/edit/", post.ID),
		fmt.Sprintf("/posts/%d/comment/", post.ID),
		fmt.Sprintf("/posts/%d/delete/", post.ID),
		fmt.Sprintf("/posts/%d/delete-comment/", comment.ID),
		fmt.Sprintf("/profile/%s/follow/", author.Username),
		fmt.Sprintf("/profile/%s/unfollow/", author.Username),
	} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/auth/login/?next="+path, w.Header().Get("Location"), path)
	}
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	group := app.makeGroup("cats")
	post := app.makePost(author, "Visible everywhere", &group)

	for _, path := range []string{
		"/",
		"/group/cats/",
		"/profile/" + author.Username + "/",
		fmt.Sprintf("/posts/%d/", post.ID),
		"/about/author/",
		"/about/tech/",
		"/auth/login/",
		"/auth/signup/",
	} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	assert.Contains(t, app.get("/group/cats/", nil).Body.String(), "Visible everywhere")
	assert.Contains(t, app.get(fmt.Sprintf("/posts/%d/", post.ID), nil).Body.String(), "Visible everywhere")
}

func TestNotFoundPages(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{
		"/unexisting_page/",
		"/group/nope/",
		"/profile/nobody/",
		"/posts/999/",
		"/posts/abc/",
	} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Custom 404", path)
	}
}

func TestIndexIsCachedUntilCleared(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	post := app.makePost(author, "Cached post text", nil)

	require.Contains(t, app.get("/", nil).Body.String(), "Cached post text")

	require.NoError(t, app.svc.Store.DeletePost(app.ctx, post.ID))
	assert.Contains(t, app.get("/", nil).Body.String(), "Cached post text")

	require.NoError(t, app.svc.Cache.Clear(app.ctx))
	assert.NotContains(t, app.get("/", nil).Body.String(), "Cached post text")
}

func TestIndexCachesOnlyExistingPages(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	app.makePost(author, "Only post", nil)

	for n := 2; n <= 200; n++ {
		w := app.get(fmt.Sprintf("/?page=%d", n), nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "Only post")
	}
	for _, raw := range []string{"0", "-7", "abc"} {
		require.Equal(t, http.StatusOK, app.get("/?page="+raw, nil).Code)
	}

	memory, ok := app.svc.Cache.(*cache.MemoryStore)
	require.True(t, ok)
	assert.Equal(t, 1, memory.Len())
	_, ok, err := app.svc.Cache.Get(app.ctx, controllers.IndexCachePrefix+"page=1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndexPagination(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	for i := 0; i < 15; i++ {
		app.makePost(author, fmt.Sprintf("post number %d", i), nil)
	}

	assert.Equal(t, 10, strings.Count(app.get("/", nil).Body.String(), `<article class="post">`))
	assert.Equal(t, 5, strings.Count(app.get("/?page=2", nil).Body.String(), `<article class="post">`))
}

func TestCreatePost(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("")
	group := app.makeGroup("dogs")
	before := app.countPosts()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("text", "A brand new post"))
	require.NoError(t, mw.WriteField("group", fmt.Sprint(group.ID)))
	part, err := mw.CreateFormFile("image", "small.gif")
	require.NoError(t, err)
	_, err = part.Write(smallGIF)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := app.do(req, &user)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/"+user.Username+"/", w.Header().Get("Location"))
	assert.Equal(t, before+1, app.countPosts())

	page, err := app.svc.Store.ListPosts(app.ctx, repository.PostFilter{AuthorID: user.ID}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	created := page.Posts[0]
	assert.Equal(t, "A brand new post", created.Text)
	assert.Equal(t, user.ID, created.AuthorID)
	require.NotNil(t, created.GroupID)
	assert.Equal(t, group.ID, *created.GroupID)
	assert.Equal(t, "posts/small.gif", created.Image)

	_, err = os.Stat(filepath.Join(app.svc.Config.MediaRoot, "posts", "small.gif"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, app.get("/media/posts/small.gif", nil).Code)
}

func TestCreatePostInvalidForm(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("")
	before := app.countPosts()

	w := app.postForm("/create/", url.Values{"text": {"   "}, "group": {"12345"}}, &user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
	assert.Contains(t, w.Body.String(), "Select a valid choice.")
	assert.Equal(t, before, app.countPosts())
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("text", "with a fake image"))
	part, err := mw.CreateFormFile("image", "notes.gif")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := app.do(req, &user)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Upload a valid image.")
	assert.Zero(t, app.countPosts())
}

func TestEditPost(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	other := app.makeUser("")
	post := app.makePost(author, "original", nil)
	editURL := fmt.Sprintf("/posts/%d/edit/", post.ID)
	detailURL := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.get(editURL, &other)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = app.postForm(editURL, url.Values{"text": {"hacked"}}, &other)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	unchanged, err := app.svc.Store.PostByID(app.ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", unchanged.Text)

	w = app.get(editURL, &author)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "original")

	w = app.postForm(editURL, url.Values{"text": {"edited"}}, &author)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	edited, err := app.svc.Store.PostByID(app.ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Text)
	assert.True(t, edited.CreatedAt.Equal(unchanged.CreatedAt))

	assert.Equal(t, http.StatusNotFound, app.get("/posts/999/edit/", &author).Code)
}

func TestDeletePost(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	other := app.makeUser("")
	post := app.makePost(author, "to delete", nil)
	deleteURL := fmt.Sprintf("/posts/%d/delete/", post.ID)

	w := app.postForm(deleteURL, url.Values{}, &other)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/"+other.Username+"/", w.Header().Get("Location"))
	assert.EqualValues(t, 1, app.countPosts())

	w = app.postForm(deleteURL, url.Values{}, &author)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/"+author.Username+"/", w.Header().Get("Location"))
	assert.Zero(t, app.countPosts())
}

func TestComments(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	commenter := app.makeUser("")
	post := app.makePost(author, "discuss me", nil)
	detailURL := fmt.Sprintf("/posts/%d/", post.ID)

	w := app.postForm(fmt.Sprintf("/posts/%d/comment/", post.ID), url.Values{"text": {"first!"}}, &commenter)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = app.postForm(fmt.Sprintf("/posts/%d/comment/", post.ID), url.Values{"text": {""}}, &commenter)
	assert.Equal(t, http.StatusFound, w.Code)

	comments, err := app.svc.Store.CommentsForPost(app.ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "first!", comments[0].Text)
	assert.Equal(t, commenter.ID, comments[0].AuthorID)
	assert.Contains(t, app.get(detailURL, nil).Body.String(), "first!")

	assert.Equal(t, http.StatusNotFound, app.postForm("/posts/999/comment/", url.Values{"text": {"x"}}, &commenter).Code)

	deleteURL := fmt.Sprintf("/posts/%d/delete-comment/", comments[0].ID)
	w = app.get(deleteURL, &author)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	_, err = app.svc.Store.CommentByID(app.ctx, comments[0].ID)
	assert.NoError(t, err)

	w = app.get(deleteURL, &commenter)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	_, err = app.svc.Store.CommentByID(app.ctx, comments[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFollowAndUnfollow(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	follower := app.makeUser("")
	profile := "/profile/" + author.Username + "/"

	for i := 0; i < 2; i++ {
		w := app.get(profile+"follow/", &follower)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, profile, w.Header().Get("Location"))
	}
	stats, err := app.svc.Store.AuthorStats(app.ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Followers)
	assert.Contains(t, app.get(profile, &follower).Body.String(), "Unfollow")

	w := app.get(profile+"unfollow/", &follower)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, profile, w.Header().Get("Location"))
	following, err := app.svc.Store.IsFollowing(app.ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, following)

	assert.Equal(t, http.StatusNotFound, app.get(profile+"unfollow/", &follower).Code)
	assert.Equal(t, http.StatusNotFound, app.get("/profile/nobody/follow/", &follower).Code)
}

func TestSelfFollowIsIgnored(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("")
	profile := "/profile/" + user.Username + "/"

	w := app.get(profile+"follow/", &user)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, profile, w.Header().Get("Location"))
	stats, err := app.svc.Store.AuthorStats(app.ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Followers)
}

func TestFollowFeed(t *testing.T) {
	app := newTestApp(t)
	author := app.makeUser("")
	follower := app.makeUser("")
	stranger := app.makeUser("")
	app.makePost(author, "for my followers", nil)

	_, err := app.svc.Store.Follow(app.ctx, follower.ID, author.ID)
	require.NoError(t, err)

	w := app.get("/follow/", &follower)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "for my followers")

	w = app.get("/follow/", &stranger)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "for my followers")
	assert.Contains(t, w.Body.String(), "No posts yet.")
}

func TestLoginAndLogout(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("correct-horse")

	w := app.postForm("/auth/login/", url.Values{"username": {user.Username}, "password": {"wrong-pass"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")

	w = app.postForm("/auth/login/", url.Values{
		"username": {user.Username},
		"password": {"correct-horse"},
		"next":     {"/follow/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/follow/", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	session := cookies[0]
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/follow/", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusOK, app.do(req, nil).Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/logout/", nil)
	req.AddCookie(session)
	w = app.do(req, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You have logged out")

	req = httptest.NewRequest(http.MethodGet, "/follow/", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusFound, app.do(req, nil).Code)
}

func TestLoginIgnoresForeignNext(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("correct-horse")
	w := app.postForm("/auth/login/", url.Values{
		"username": {user.Username},
		"password": {"correct-horse"},
		"next":     {"//evil.example.com/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = app.postForm("/auth/login/", url.Values{
		"username": {user.Username},
		"password": {"correct-horse"},
		"next":     {"/\t/evil.example.com/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestSignup(t *testing.T) {
	app := newTestApp(t)
	existing := app.makeUser("")

	w := app.postForm("/auth/signup/", url.Values{
		"username":  {existing.Username},
		"password1": {"s3cret-pass"},
		"password2": {"other-pass"},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "A user with that username already exists.")
	assert.Contains(t, w.Body.String(), "password fields")

	w = app.postForm("/auth/signup/", url.Values{
		"first_name": {"Leo"},
		"last_name":  {"Tolstoy"},
		"username":   {"leo"},
		"email":      {"leo@example.com"},
		"password1":  {"s3cret-pass"},
		"password2":  {"s3cret-pass"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.NotEmpty(t, w.Result().Cookies())

	user, err := app.svc.Store.UserByUsername(app.ctx, "leo")
	require.NoError(t, err)
	assert.Equal(t, "Leo Tolstoy", user.FullName())
	assert.True(t, utils.CheckPassword(user.PasswordHash, "s3cret-pass"))
}

func TestPasswordChange(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("old-password")

	w := app.postForm("/auth/password_change/", url.Values{
		"old_password":  {"nope-nope"},
		"new_password1": {"new-password"},
		"new_password2": {"new-password"},
	}, &user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your old password was entered incorrectly.")

	w = app.postForm("/auth/password_change/", url.Values{
		"old_password":  {"old-password"},
		"new_password1": {"new-password"},
		"new_password2": {"new-password"},
	}, &user)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/password_change/done/", w.Header().Get("Location"))

	reloaded, err := app.svc.Store.UserByID(app.ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(reloaded.PasswordHash, "new-password"))
}

func TestPasswordReset(t *testing.T) {
	app := newTestApp(t)
	user := app.makeUser("old-password")

	w := app.postForm("/auth/password_reset/", url.Values{"email": {"nobody@example.com"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/password_reset/done/", w.Header().Get("Location"))
	assert.Empty(t, app.mailer.sent)

	requestCode := func() string {
		t.Helper()
		w := app.postForm("/auth/password_reset/", url.Values{"email": {user.Email}}, nil)
		require.Equal(t, http.StatusFound, w.Code)
		last := app.mailer.sent[len(app.mailer.sent)-1]
		assert.Equal(t, user.Email, last.to)
		code := regexp.MustCompile(`\b\d{6}\b`).FindString(last.body)
		require.NotEmpty(t, code)
		return code
	}

	// A wrong code burns the one attempt the mailed code had.
	code := requestCode()
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	confirm := url.Values{
		"email":         {user.Email},
		"code":          {wrong},
		"new_password1": {"brand-new-pass"},
		"new_password2": {"brand-new-pass"},
	}
	w = app.postForm("/auth/password_reset/confirm/", confirm, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The code is invalid or has expired.")

	confirm.Set("code", code)
	w = app.postForm("/auth/password_reset/confirm/", confirm, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	confirm.Set("code", requestCode())
	w = app.postForm("/auth/password_reset/confirm/", confirm, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/password_reset/complete/", w.Header().Get("Location"))
	assert.Len(t, app.mailer.sent, 2)

	reloaded, err := app.svc.Store.UserByID(app.ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(reloaded.PasswordHash, "brand-new-pass"))
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Equal(t, http.StatusOK, app.get("/static/style.css", nil).Code)
}
