package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/yatube/models"
)

// CommentController adds and removes comments under posts.
type CommentController struct {
	svc Services
}

func NewCommentController(svc Services) *CommentController {
	return &CommentController{svc: svc}
}

type commentForm struct {
	Text string `form:"text" validate:"required"`
}

// Add stores a comment from the viewer and returns to the post. An invalid
// form is dropped without a message.
func (c *CommentController) Add(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		NotFound(ctx)
		return
	}
	rctx := ctx.Request.Context()
	post, err := c.svc.Store.PostByID(rctx, id)
	if err != nil {
		fail(ctx, err, "load post failed")
		return
	}

	var form commentForm
	_ = ctx.ShouldBind(&form)
	form.Text = strings.TrimSpace(form.Text)
	if !validateForm(form).Any() {
		comment := models.Comment{PostID: post.ID, AuthorID: viewer(ctx).ID, Text: form.Text}
		if err := c.svc.Store.CreateComment(rctx, &comment); err != nil {
			serverError(ctx, err, "create comment failed")
			return
		}
	}
	redirect(ctx, postURL(post.ID))
}

// Delete removes the viewer's own comment and returns to its post.
func (c *CommentController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		NotFound(ctx)
		return
	}
	rctx := ctx.Request.Context()
	comment, err := c.svc.Store.CommentByID(rctx, id)
	if err != nil {
		fail(ctx, err, "load comment failed")
		return
	}
	if comment.AuthorID == viewer(ctx).ID {
		if err := c.svc.Store.DeleteComment(rctx, comment.ID); err != nil {
			fail(ctx, err, "delete comment failed")
			return
		}
	}
	redirect(ctx, postURL(comment.PostID))
}
