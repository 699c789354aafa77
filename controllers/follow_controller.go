package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/yatube/utils"
)

// FollowController creates and removes follow edges.
type FollowController struct {
	svc Services
}

func NewFollowController(svc Services) *FollowController {
	return &FollowController{svc: svc}
}

// Follow subscribes the viewer to the author. Following yourself or following
// twice changes nothing; the viewer always lands on the profile.
func (f *FollowController) Follow(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	author, err := f.svc.Store.UserByUsername(rctx, ctx.Param("username"))
	if err != nil {
		fail(ctx, err, "load author failed")
		return
	}
	user := viewer(ctx)
	created, err := f.svc.Store.Follow(rctx, user.ID, author.ID)
	if err != nil {
		serverError(ctx, err, "follow failed")
		return
	}
	if created {
		utils.Logger.Info("follow created", zap.Uint("user_id", user.ID), zap.Uint("author_id", author.ID))
	}
	redirect(ctx, profileURL(author.Username))
}

// Unfollow removes the edge, or renders 404 when there is none.
func (f *FollowController) Unfollow(ctx *gin.Context) {
	username := ctx.Param("username")
	if err := f.svc.Store.Unfollow(ctx.Request.Context(), viewer(ctx).ID, username); err != nil {
		fail(ctx, err, "unfollow failed")
		return
	}
	redirect(ctx, profileURL(username))
}
