package controllers

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/templates"
	"github.com/cppla/yatube/utils"
)

// IndexCachePrefix prefixes the cached post list of every index page.
const IndexCachePrefix = "index_page:"

const (
	msgBadGroup = "Select a valid choice. That choice is not one of the available choices."
	msgBadImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// PostController serves the feeds and the post create/edit/delete pages.
type PostController struct {
	svc Services
}

func NewPostController(svc Services) *PostController {
	return &PostController{svc: svc}
}

type indexPage struct {
	PageBase
	PostList template.HTML
}

type groupPage struct {
	PageBase
	Group models.Group
	List  templates.PostList
}

type profilePage struct {
	PageBase
	Author    models.User
	Stats     repository.AuthorStats
	Following bool
	IsSelf    bool
	List      templates.PostList
}

type followPage struct {
	PageBase
	List templates.PostList
}

// CommentView is a comment plus whether the viewer may delete it.
type CommentView struct {
	Comment   models.Comment
	CanDelete bool
}

type detailPage struct {
	PageBase
	Post        models.Post
	AuthorPosts int64
	Comments    []CommentView
	CanEdit     bool
	Errors      FieldErrors
}

// GroupOption is one entry of the group select box.
type GroupOption struct {
	Value    string
	Label    string
	Selected bool
}

type postFormPage struct {
	PageBase
	IsEdit bool
	Action string
	Text   string
	Image  string
	Groups []GroupOption
	Errors FieldErrors
}

type postForm struct {
	Text  string `form:"text" validate:"required"`
	Group string `form:"group" validate:"omitempty,numeric"`
}

func (p *PostController) list(ctx *gin.Context, filter repository.PostFilter, showAuthor, showGroup bool) (templates.PostList, error) {
	return p.listPage(ctx, filter, utils.ParsePageNumber(ctx.Query("page")), showAuthor, showGroup)
}

func (p *PostController) listPage(ctx *gin.Context, filter repository.PostFilter, number int, showAuthor, showGroup bool) (templates.PostList, error) {
	page, err := p.svc.Store.ListPosts(ctx.Request.Context(), filter, number, p.svc.Config.PostsPerPage)
	if err != nil {
		return templates.PostList{}, err
	}
	return templates.PostList{
		Posts:      page.Posts,
		Page:       page.Page,
		ShowAuthor: showAuthor,
		ShowGroup:  showGroup,
	}, nil
}

// Index shows every post, newest first. The rendered list is cached per clamped
// page number and is not invalidated by writes, only by expiry or a cache clear.
func (p *PostController) Index(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	total, err := p.svc.Store.CountPosts(rctx, repository.PostFilter{})
	if err != nil {
		serverError(ctx, err, "count posts failed")
		return
	}
	page := utils.Paginate(total, utils.ParsePageNumber(ctx.Query("page")), p.svc.Config.PostsPerPage)
	key := fmt.Sprintf("%spage=%d", IndexCachePrefix, page.Number)

	fragment, ok, err := p.svc.Cache.Get(rctx, key)
	if err != nil {
		utils.Logger.Warn("index cache read failed", zap.String("key", key), zap.Error(err))
	}
	if !ok {
		list, err := p.listPage(ctx, repository.PostFilter{}, page.Number, true, true)
		if err != nil {
			serverError(ctx, err, "list posts failed")
			return
		}
		html, err := p.svc.Pages.RenderPostList(list)
		if err != nil {
			serverError(ctx, err, "render post list failed")
			return
		}
		fragment = []byte(html)
		ttl := time.Duration(p.svc.Config.IndexCacheSeconds) * time.Second
		if err := p.svc.Cache.Set(rctx, key, fragment, ttl); err != nil {
			utils.Logger.Warn("index cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	ctx.HTML(http.StatusOK, "posts/index.html", indexPage{
		PageBase: pageBase(ctx),
		PostList: template.HTML(fragment),
	})
}

// Group shows the posts of one group.
func (p *PostController) Group(ctx *gin.Context) {
	group, err := p.svc.Store.GroupBySlug(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		fail(ctx, err, "load group failed")
		return
	}
	list, err := p.list(ctx, repository.PostFilter{GroupID: group.ID}, true, false)
	if err != nil {
		serverError(ctx, err, "list group posts failed")
		return
	}
	ctx.HTML(http.StatusOK, "posts/group_list.html", groupPage{
		PageBase: pageBase(ctx),
		Group:    group,
		List:     list,
	})
}

// Profile shows an author's posts, counters and the follow button.
func (p *PostController) Profile(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	author, err := p.svc.Store.UserByUsername(rctx, ctx.Param("username"))
	if err != nil {
		fail(ctx, err, "load author failed")
		return
	}
	list, err := p.list(ctx, repository.PostFilter{AuthorID: author.ID}, false, true)
	if err != nil {
		serverError(ctx, err, "list author posts failed")
		return
	}
	stats, err := p.svc.Store.AuthorStats(rctx, author.ID)
	if err != nil {
		serverError(ctx, err, "author stats failed")
		return
	}

	page := profilePage{
		PageBase: pageBase(ctx),
		Author:   author,
		Stats:    stats,
		List:     list,
	}
	if page.Viewer != nil {
		page.IsSelf = page.Viewer.ID == author.ID
		if !page.IsSelf {
			page.Following, err = p.svc.Store.IsFollowing(rctx, page.Viewer.ID, author.ID)
			if err != nil {
				serverError(ctx, err, "follow lookup failed")
				return
			}
		}
	}
	ctx.HTML(http.StatusOK, "posts/profile.html", page)
}

// FollowIndex shows posts of the authors the viewer follows.
func (p *PostController) FollowIndex(ctx *gin.Context) {
	list, err := p.list(ctx, repository.PostFilter{FollowerID: viewer(ctx).ID}, true, true)
	if err != nil {
		serverError(ctx, err, "list followed posts failed")
		return
	}
	ctx.HTML(http.StatusOK, "posts/follow.html", followPage{PageBase: pageBase(ctx), List: list})
}

// Detail shows one post with its comments and the comment form.
func (p *PostController) Detail(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		NotFound(ctx)
		return
	}
	rctx := ctx.Request.Context()
	post, err := p.svc.Store.PostByID(rctx, id)
	if err != nil {
		fail(ctx, err, "load post failed")
		return
	}
	authorPosts, err := p.svc.Store.CountPosts(rctx, repository.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		serverError(ctx, err, "count author posts failed")
		return
	}
	comments, err := p.svc.Store.CommentsForPost(rctx, post.ID)
	if err != nil {
		serverError(ctx, err, "list comments failed")
		return
	}

	page := detailPage{
		PageBase:    pageBase(ctx),
		Post:        post,
		AuthorPosts: authorPosts,
	}
	for _, c := range comments {
		page.Comments = append(page.Comments, CommentView{
			Comment:   c,
			CanDelete: page.Viewer != nil && page.Viewer.ID == c.AuthorID,
		})
	}
	page.CanEdit = page.Viewer != nil && page.Viewer.ID == post.AuthorID
	ctx.HTML(http.StatusOK, "posts/post_detail.html", page)
}

// Create shows and handles the new post form.
func (p *PostController) Create(ctx *gin.Context) {
	user := viewer(ctx)
	page := postFormPage{PageBase: pageBase(ctx), Action: "/create/"}

	if ctx.Request.Method != http.MethodPost {
		if !p.fillGroups(ctx, &page, nil) {
			return
		}
		ctx.HTML(http.StatusOK, "posts/create_post.html", page)
		return
	}

	post := models.Post{AuthorID: user.ID}
	if !p.bindPost(ctx, &page, &post) {
		return
	}
	if err := p.svc.Store.CreatePost(ctx.Request.Context(), &post); err != nil {
		serverError(ctx, err, "create post failed")
		return
	}
	utils.Logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("author_id", user.ID))
	redirect(ctx, profileURL(user.Username))
}

// Edit lets the author change a post. Anyone else is sent back to the post.
func (p *PostController) Edit(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		NotFound(ctx)
		return
	}
	rctx := ctx.Request.Context()
	post, err := p.svc.Store.PostByID(rctx, id)
	if err != nil {
		fail(ctx, err, "load post failed")
		return
	}
	if post.AuthorID != viewer(ctx).ID {
		redirect(ctx, postURL(post.ID))
		return
	}

	page := postFormPage{
		PageBase: pageBase(ctx),
		IsEdit:   true,
		Action:   fmt.Sprintf("/posts/%d/edit/", post.ID),
		Text:     post.Text,
		Image:    post.Image,
	}
	if ctx.Request.Method != http.MethodPost {
		if !p.fillGroups(ctx, &page, post.GroupID) {
			return
		}
		ctx.HTML(http.StatusOK, "posts/create_post.html", page)
		return
	}

	oldImage := post.Image
	if !p.bindPost(ctx, &page, &post) {
		return
	}
	if err := p.svc.Store.UpdatePost(rctx, &post); err != nil {
		serverError(ctx, err, "update post failed")
		return
	}
	if oldImage != "" && oldImage != post.Image {
		p.removeImage(ctx, oldImage)
	}
	redirect(ctx, postURL(post.ID))
}

// Delete removes the viewer's own post. Everyone lands on their profile.
func (p *PostController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		NotFound(ctx)
		return
	}
	user := viewer(ctx)
	rctx := ctx.Request.Context()
	post, err := p.svc.Store.PostByID(rctx, id)
	if err != nil {
		fail(ctx, err, "load post failed")
		return
	}
	if post.AuthorID == user.ID {
		if err := p.svc.Store.DeletePost(rctx, post.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			serverError(ctx, err, "delete post failed")
			return
		}
		if post.Image != "" {
			p.removeImage(ctx, post.Image)
		}
		utils.Logger.Info("post deleted", zap.Uint("post_id", post.ID), zap.Uint("author_id", user.ID))
	}
	redirect(ctx, profileURL(user.Username))
}

// bindPost validates the submitted form into post. On failure it re-renders
// the form and returns false.
func (p *PostController) bindPost(ctx *gin.Context, page *postFormPage, post *models.Post) bool {
	var form postForm
	_ = ctx.ShouldBind(&form)
	form.Text = strings.TrimSpace(form.Text)
	errs := validateForm(form)

	var groupID *uint
	if form.Group != "" && len(errs["group"]) == 0 {
		id, err := strconv.ParseUint(form.Group, 10, 64)
		if err == nil {
			_, err = p.svc.Store.GroupByID(ctx.Request.Context(), uint(id))
		}
		switch {
		case err == nil:
			gid := uint(id)
			groupID = &gid
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, strconv.ErrRange), errors.Is(err, strconv.ErrSyntax):
			errs.Add("group", msgBadGroup)
		default:
			serverError(ctx, err, "load group failed")
			return false
		}
	}

	header, ok := imageUpload(ctx, errs)
	if errs.Any() {
		page.Text = form.Text
		page.Errors = errs
		if !p.fillGroups(ctx, page, groupID) {
			return false
		}
		ctx.HTML(http.StatusOK, "posts/create_post.html", page)
		return false
	}

	post.Text = form.Text
	post.GroupID = groupID
	if ok {
		key, err := p.saveImage(ctx, header)
		if err != nil {
			serverError(ctx, err, "save image failed")
			return false
		}
		post.Image = key
	}
	return true
}

func (p *PostController) fillGroups(ctx *gin.Context, page *postFormPage, selected *uint) bool {
	groups, err := p.svc.Store.ListGroups(ctx.Request.Context())
	if err != nil {
		serverError(ctx, err, "list groups failed")
		return false
	}
	page.Groups = page.Groups[:0]
	for _, g := range groups {
		page.Groups = append(page.Groups, GroupOption{
			Value:    strconv.FormatUint(uint64(g.ID), 10),
			Label:    g.Title,
			Selected: selected != nil && *selected == g.ID,
		})
	}
	return true
}

// imageUpload returns the uploaded image, if any. A file that does not sniff
// as an image is reported in errs.
func imageUpload(ctx *gin.Context, errs FieldErrors) (*multipart.FileHeader, bool) {
	header, err := ctx.FormFile("image")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			errs.Add("image", msgBadImage)
		}
		return nil, false
	}
	if header.Size == 0 {
		errs.Add("image", "The submitted file is empty.")
		return nil, false
	}
	if !strings.HasPrefix(sniff(header), "image/") {
		errs.Add("image", msgBadImage)
		return nil, false
	}
	return header, true
}

func sniff(header *multipart.FileHeader) string {
	f, err := header.Open()
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ""
	}
	return http.DetectContentType(buf[:n])
}

func (p *PostController) saveImage(ctx *gin.Context, header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return p.svc.Images.Save(ctx.Request.Context(), header.Filename, sniff(header), f)
}

func (p *PostController) removeImage(ctx *gin.Context, key string) {
	if err := p.svc.Images.Delete(ctx.Request.Context(), key); err != nil {
		utils.Logger.Warn("remove image failed", zap.String("key", key), zap.Error(err))
	}
}
