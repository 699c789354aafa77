package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/utils"
)

// AboutController serves the static about pages.
type AboutController struct {
	svc Services
}

func NewAboutController(svc Services) *AboutController {
	return &AboutController{svc: svc}
}

type techPage struct {
	PageBase
	Counts repository.SiteCounts
}

func (a *AboutController) Author(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "about/author.html", pageBase(ctx))
}

// Tech lists the stack and the site counters. Counter failures show zeros.
func (a *AboutController) Tech(ctx *gin.Context) {
	counts, err := a.svc.Store.SiteCounts(ctx.Request.Context())
	if err != nil {
		utils.Logger.Warn("site counts failed", zap.Error(err))
	}
	ctx.HTML(http.StatusOK, "about/tech.html", techPage{PageBase: pageBase(ctx), Counts: counts})
}
