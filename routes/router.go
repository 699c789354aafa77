package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/yatube/controllers"
	"github.com/cppla/yatube/middleware"
	"github.com/cppla/yatube/storage"
	"github.com/cppla/yatube/templates"
	"github.com/cppla/yatube/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(svc controllers.Services) *gin.Engine {
	cfg := svc.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HTMLRender = svc.Pages

	// Access log goes to its own rolling file; without one it joins the app log.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
			corsCfg.AllowAllOrigins = true
			corsCfg.AllowCredentials = false
		} else {
			corsCfg.AllowOrigins = cfg.AllowedOrigins
		}
		r.Use(cors.New(corsCfg))
	}

	r.StaticFS("/static", http.FS(templates.Static()))
	if local, ok := svc.Images.(*storage.LocalStore); ok {
		if prefix := strings.TrimRight(cfg.MediaURL, "/"); strings.HasPrefix(prefix, "/") {
			r.Static(prefix, local.Root())
		}
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(svc)
	postController := controllers.NewPostController(svc)
	commentController := controllers.NewCommentController(svc)
	followController := controllers.NewFollowController(svc)
	aboutController := controllers.NewAboutController(svc)

	r.Use(middleware.Authenticate(cfg.JWTSecret, cfg.SessionCookieName, svc.Store, authController.Revoked()))
	login := middleware.LoginRequired()

	r.GET("/", postController.Index)
	r.GET("/group/:slug/", postController.Group)
	r.GET("/profile/:username/", postController.Profile)
	r.GET("/posts/:id/", postController.Detail)
	r.GET("/follow/", login, postController.FollowIndex)
	r.GET("/profile/:username/follow/", login, followController.Follow)
	r.GET("/profile/:username/unfollow/", login, followController.Unfollow)
	r.GET("/posts/:id/delete-comment/", login, commentController.Delete)

	protected := r.Group("", login)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		protected.Handle(method, "/create/", postController.Create)
		protected.Handle(method, "/posts/:id/edit/", postController.Edit)
		protected.Handle(method, "/posts/:id/delete/", postController.Delete)
		protected.Handle(method, "/posts/:id/comment/", commentController.Add)
	}

	about := r.Group("/about")
	about.GET("/author/", aboutController.Author)
	about.GET("/tech/", aboutController.Tech)

	auth := r.Group("/auth")
	auth.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		auth.Handle(method, "/signup/", authController.Signup)
		auth.Handle(method, "/login/", authController.Login)
		auth.Handle(method, "/logout/", authController.Logout)
		auth.Handle(method, "/password_change/", login, authController.PasswordChange)
		auth.Handle(method, "/password_reset/", authController.PasswordReset)
		auth.Handle(method, "/password_reset/confirm/", authController.PasswordResetConfirm)
	}
	auth.GET("/password_change/done/", login, authController.PasswordChangeDone)
	auth.GET("/password_reset/done/", authController.PasswordResetDone)
	auth.GET("/password_reset/complete/", authController.PasswordResetComplete)
	auth.GET("/captcha/", authController.Captcha)
	auth.GET("/oauth/:provider/login/", authController.OAuthLogin)
	auth.GET("/oauth/:provider/callback/", authController.OAuthCallback)

	r.NoRoute(controllers.NotFound)

	return r
}
