package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/utils"
)

const (
	// ContextUserKey stores the signed-in *models.User inside Gin context.
	ContextUserKey = "user"
	// ContextTokenKey stores the raw session token.
	ContextTokenKey = "session_token"

	// LoginURL is where anonymous visitors of protected pages are sent.
	LoginURL = "/auth/login/"
)

// UserLoader resolves the user a session token belongs to.
type UserLoader interface {
	UserByID(ctx context.Context, id uint) (models.User, error)
}

// Authenticate reads the session cookie and, when it carries a valid unrevoked
// token for an existing user, puts that user in the context. It never aborts.
func Authenticate(secret, cookieName string, users UserLoader, revoked *cache.TokenBlacklist) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(cookieName)
		if err != nil || strings.TrimSpace(token) == "" {
			ctx.Next()
			return
		}

		claims, err := utils.ParseToken(secret, token)
		if err != nil || revoked.IsRevoked(ctx.Request.Context(), token) {
			ctx.Next()
			return
		}

		user, err := users.UserByID(ctx.Request.Context(), claims.UserID)
		if err != nil {
			ctx.Next()
			return
		}

		ctx.Set(ContextUserKey, &user)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// LoginRequired redirects anonymous visitors to the login page, passing the
// requested path as "next".
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := CurrentUser(ctx); ok {
			ctx.Next()
			return
		}
		ctx.Redirect(http.StatusFound, LoginRedirect(ctx.Request.URL.RequestURI()))
		ctx.Abort()
	}
}

// LoginRedirect builds the login URL for next, keeping slashes readable.
func LoginRedirect(next string) string {
	return LoginURL + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SessionToken returns the raw token of the current session, if any.
func SessionToken(ctx *gin.Context) string {
	return ctx.GetString(ContextTokenKey)
}
