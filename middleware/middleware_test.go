package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/utils"
)

type fakeUsers map[uint]models.User

func (f fakeUsers) UserByID(_ context.Context, id uint) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(ctx *gin.Context) {
	if u, ok := CurrentUser(ctx); ok {
		ctx.String(http.StatusOK, u.Username)
		return
	}
	ctx.String(http.StatusOK, "anonymous")
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, "/auth/login/?next=/create/", LoginRedirect("/create/"))
	assert.Equal(t, "/auth/login/?next=/follow/%3Fpage%3D2", LoginRedirect("/follow/?page=2"))
}

func TestLoginRequired(t *testing.T) {
	r := gin.New()
	r.GET("/create/", LoginRequired(), whoAmI)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/create/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=/create/", w.Header().Get("Location"))
}

func TestAuthenticate(t *testing.T) {
	const secret = "test-secret"
	users := fakeUsers{7: {ID: 7, Username: "leo"}}
	blacklist := cache.NewTokenBlacklist(cache.NewMemoryStore(utils.NewRealClock()))

	r := gin.New()
	r.Use(Authenticate(secret, "session", users, blacklist))
	r.GET("/", whoAmI)

	call := func(token string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: "session", Value: token})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	good, err := utils.GenerateToken(secret, 7, "leo", time.Hour)
	require.NoError(t, err)
	ghost, err := utils.GenerateToken(secret, 8, "ghost", time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateToken("other", 7, "leo", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "anonymous", call(""))
	assert.Equal(t, "leo", call(good))
	assert.Equal(t, "anonymous", call(ghost))
	assert.Equal(t, "anonymous", call(forged))

	require.NoError(t, blacklist.Revoke(context.Background(), good, time.Now().Add(time.Hour)))
	assert.Equal(t, "anonymous", call(good))
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(2))
	r.GET("/", whoAmI)

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
