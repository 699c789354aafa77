// Package controllers holds the page handlers. Every handler renders a page
// through the templates renderer or answers with a redirect.
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/middleware"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/storage"
	"github.com/cppla/yatube/templates"
	"github.com/cppla/yatube/utils"
)

// Mailer delivers plain text mail.
type Mailer interface {
	Send(to, subject, body string) error
}

// Services bundles the dependencies every controller needs.
type Services struct {
	Config config.AppConfig
	Store  *repository.Store
	Cache  cache.Store
	Images storage.ImageStore
	Pages  *templates.Renderer
	Mailer Mailer
}

// PageBase is embedded in every page's data; the layout reads Viewer.
type PageBase struct {
	Viewer *models.User
}

func pageBase(ctx *gin.Context) PageBase {
	user, _ := middleware.CurrentUser(ctx)
	return PageBase{Viewer: user}
}

type notFoundPage struct {
	PageBase
	Path string
}

// NotFound renders the custom 404 page.
func NotFound(ctx *gin.Context) {
	ctx.HTML(http.StatusNotFound, "core/404.html", notFoundPage{
		PageBase: pageBase(ctx),
		Path:     ctx.Request.URL.Path,
	})
	ctx.Abort()
}

func serverError(ctx *gin.Context, err error, msg string) {
	utils.Logger.Error(msg,
		zap.Error(err),
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
	)
	ctx.HTML(http.StatusInternalServerError, "core/500.html", pageBase(ctx))
	ctx.Abort()
}

// fail renders 404 for missing rows and 500 for everything else.
func fail(ctx *gin.Context, err error, msg string) {
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(ctx)
		return
	}
	serverError(ctx, err, msg)
}

// pathID parses a numeric path parameter; a malformed id is reported as false.
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// viewer returns the signed-in user. Routes using it sit behind LoginRequired.
func viewer(ctx *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(ctx)
	return user
}

func profileURL(username string) string {
	return "/profile/" + username + "/"
}

func postURL(id uint) string {
	return fmt.Sprintf("/posts/%d/", id)
}

func redirect(ctx *gin.Context, location string) {
	ctx.Redirect(http.StatusFound, location)
}
