package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mojocn/base64Captcha"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/middleware"
	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/utils"
)

const (
	resetCodeTTL    = 10 * time.Minute
	oauthStateTTL   = 10 * time.Minute
	captchaTTL      = 5 * time.Minute
	resetCodeLength = 6

	msgBadLogin = "Please enter a correct username and password. Note that both fields may be case-sensitive."
)

var (
	githubAPI     = "https://api.github.com"
	googleUserURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// AuthController handles signup, login, logout, password change and reset,
// and third-party login.
type AuthController struct {
	svc      Services
	revoked  *cache.TokenBlacklist
	codes    *cache.ResetCodes
	states   *cache.OAuthStates
	captchas base64Captcha.Store
}

func NewAuthController(svc Services) *AuthController {
	return &AuthController{
		svc:      svc,
		revoked:  cache.NewTokenBlacklist(svc.Cache),
		codes:    cache.NewResetCodes(svc.Cache, resetCodeTTL),
		states:   cache.NewOAuthStates(svc.Cache, oauthStateTTL),
		captchas: cache.NewCaptchaStore(svc.Cache, captchaTTL),
	}
}

// Revoked is the blacklist the authentication middleware consults.
func (a *AuthController) Revoked() *cache.TokenBlacklist {
	return a.revoked
}

type signupForm struct {
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,email,max=254"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
	CaptchaID string `form:"captcha_id"`
	Captcha   string `form:"captcha"`
}

// CaptchaView is an inline captcha image.
type CaptchaView struct {
	ID    string
	Image template.URL
}

type signupPage struct {
	PageBase
	Form    signupForm
	Captcha *CaptchaView
	Errors  FieldErrors
}

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

type loginPage struct {
	PageBase
	Username  string
	Next      string
	Providers []string
	Errors    FieldErrors
}

type passwordChangeForm struct {
	OldPassword  string `form:"old_password" validate:"required"`
	NewPassword1 string `form:"new_password1" validate:"required"`
	NewPassword2 string `form:"new_password2" validate:"required,eqfield=NewPassword1"`
}

type passwordResetForm struct {
	Email string `form:"email" validate:"required,email"`
}

type passwordResetConfirmForm struct {
	Email        string `form:"email" validate:"required,email"`
	Code         string `form:"code" validate:"required,len=6,numeric"`
	NewPassword1 string `form:"new_password1" validate:"required"`
	NewPassword2 string `form:"new_password2" validate:"required,eqfield=NewPassword1"`
}

type formPage struct {
	PageBase
	Email  string
	Errors FieldErrors
}

// Signup creates an account and signs the new user in.
func (a *AuthController) Signup(ctx *gin.Context) {
	page := signupPage{PageBase: pageBase(ctx)}
	if ctx.Request.Method != http.MethodPost {
		a.renderSignup(ctx, page)
		return
	}

	_ = ctx.ShouldBind(&page.Form)
	form := &page.Form
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	errs := validateForm(*form)

	rctx := ctx.Request.Context()
	if a.svc.Config.RegisterCaptchaEnabled && !utils.VerifyCaptcha(a.captchas, form.CaptchaID, strings.TrimSpace(form.Captcha)) {
		errs.Add("captcha", "Invalid captcha, please try again.")
	}
	if len(errs["password2"]) == 0 {
		if problem := utils.PasswordProblem(form.Password2); problem != "" {
			errs.Add("password2", problem)
		}
	}
	if len(errs["username"]) == 0 {
		taken, err := a.svc.Store.UsernameTaken(rctx, form.Username)
		if err != nil {
			serverError(ctx, err, "username lookup failed")
			return
		}
		if taken {
			errs.Add("username", "A user with that username already exists.")
		}
	}
	if errs.Any() {
		page.Errors = errs
		a.renderSignup(ctx, page)
		return
	}

	hash, err := utils.HashPassword(form.Password1)
	if err != nil {
		serverError(ctx, err, "hash password failed")
		return
	}
	user := models.User{
		Username:     form.Username,
		Email:        form.Email,
		FirstName:    strings.TrimSpace(form.FirstName),
		LastName:     strings.TrimSpace(form.LastName),
		PasswordHash: hash,
	}
	if err := a.svc.Store.CreateUser(rctx, &user); err != nil {
		serverError(ctx, err, "create user failed")
		return
	}
	utils.Logger.Info("user signed up", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	if err := a.startSession(ctx, user); err != nil {
		serverError(ctx, err, "start session failed")
		return
	}
	redirect(ctx, "/")
}

func (a *AuthController) renderSignup(ctx *gin.Context, page signupPage) {
	page.Form.Password1, page.Form.Password2, page.Form.Captcha = "", "", ""
	if a.svc.Config.RegisterCaptchaEnabled {
		id, b64, err := utils.GenerateCaptcha(a.captchas)
		if err != nil {
			serverError(ctx, err, "generate captcha failed")
			return
		}
		page.Captcha = &CaptchaView{ID: id, Image: template.URL(b64)}
	}
	ctx.HTML(http.StatusOK, "users/signup.html", page)
}

// Login signs a user in and sends them to a local next path.
func (a *AuthController) Login(ctx *gin.Context) {
	page := loginPage{PageBase: pageBase(ctx), Next: ctx.Query("next"), Providers: a.providers()}
	if ctx.Request.Method != http.MethodPost {
		ctx.HTML(http.StatusOK, "users/login.html", page)
		return
	}

	var form loginForm
	_ = ctx.ShouldBind(&form)
	form.Username = strings.TrimSpace(form.Username)
	page.Username, page.Next = form.Username, form.Next

	errs := validateForm(form)
	if !errs.Any() {
		user, err := a.svc.Store.UserByUsername(ctx.Request.Context(), form.Username)
		switch {
		case err == nil && utils.CheckPassword(user.PasswordHash, form.Password):
			if err := a.startSession(ctx, user); err != nil {
				serverError(ctx, err, "start session failed")
				return
			}
			redirect(ctx, safeNext(form.Next))
			return
		case err == nil, errors.Is(err, repository.ErrNotFound):
			errs.Add(nonFieldErrors, msgBadLogin)
		default:
			serverError(ctx, err, "load user failed")
			return
		}
	}
	page.Errors = errs
	ctx.HTML(http.StatusOK, "users/login.html", page)
}

// Logout revokes the session token and clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token := middleware.SessionToken(ctx); token != "" {
		claims, _ := utils.ParseToken(a.svc.Config.JWTSecret, token)
		expiresAt := utils.TokenExpiry(claims, time.Now().Add(a.sessionTTL()))
		if err := a.revoked.Revoke(ctx.Request.Context(), token, expiresAt); err != nil {
			utils.Logger.Warn("revoke session failed", zap.Error(err))
		}
	}
	a.setCookie(ctx, "", -1)
	ctx.HTML(http.StatusOK, "users/logged_out.html", PageBase{})
}

// PasswordChange replaces the viewer's password after checking the old one.
func (a *AuthController) PasswordChange(ctx *gin.Context) {
	page := formPage{PageBase: pageBase(ctx)}
	if ctx.Request.Method != http.MethodPost {
		ctx.HTML(http.StatusOK, "users/password_change_form.html", page)
		return
	}

	var form passwordChangeForm
	_ = ctx.ShouldBind(&form)
	errs := validateForm(form)
	user := viewer(ctx)
	if len(errs["old_password"]) == 0 && !utils.CheckPassword(user.PasswordHash, form.OldPassword) {
		errs.Add("old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	if len(errs["new_password2"]) == 0 {
		if problem := utils.PasswordProblem(form.NewPassword2); problem != "" {
			errs.Add("new_password2", problem)
		}
	}
	if errs.Any() {
		page.Errors = errs
		ctx.HTML(http.StatusOK, "users/password_change_form.html", page)
		return
	}

	if !a.setPassword(ctx, user.ID, form.NewPassword1) {
		return
	}
	redirect(ctx, "/auth/password_change/done/")
}

func (a *AuthController) PasswordChangeDone(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "users/password_change_done.html", pageBase(ctx))
}

// PasswordReset mails a one-time code to the account's address. The answer
// is the same whether or not the address is known.
func (a *AuthController) PasswordReset(ctx *gin.Context) {
	page := formPage{PageBase: pageBase(ctx)}
	if ctx.Request.Method != http.MethodPost {
		ctx.HTML(http.StatusOK, "users/password_reset_form.html", page)
		return
	}

	var form passwordResetForm
	_ = ctx.ShouldBind(&form)
	form.Email = strings.TrimSpace(form.Email)
	if errs := validateForm(form); errs.Any() {
		page.Email, page.Errors = form.Email, errs
		ctx.HTML(http.StatusOK, "users/password_reset_form.html", page)
		return
	}

	rctx := ctx.Request.Context()
	user, err := a.svc.Store.UserByEmail(rctx, form.Email)
	switch {
	case err == nil:
		a.sendResetCode(rctx, user)
	case !errors.Is(err, repository.ErrNotFound):
		serverError(ctx, err, "load user failed")
		return
	}
	redirect(ctx, "/auth/password_reset/done/")
}

func (a *AuthController) sendResetCode(ctx context.Context, user models.User) {
	code, err := utils.GenerateVerificationCode(resetCodeLength)
	if err != nil {
		utils.Logger.Error("generate reset code failed", zap.Error(err))
		return
	}
	if err := a.codes.Save(ctx, user.Email, code); err != nil {
		utils.Logger.Error("store reset code failed", zap.Error(err))
		return
	}
	body := fmt.Sprintf("Hello, %s!\n\nYour password reset code is %s. It is valid for %d minutes.\n"+
		"If you did not ask for a new password, ignore this message.\n",
		user.Username, code, int(resetCodeTTL.Minutes()))
	if err := a.svc.Mailer.Send(user.Email, "Password reset on Yatube", body); err != nil {
		utils.Logger.Warn("send reset code failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

func (a *AuthController) PasswordResetDone(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "users/password_reset_done.html", pageBase(ctx))
}

// PasswordResetConfirm sets a new password when the mailed code matches.
func (a *AuthController) PasswordResetConfirm(ctx *gin.Context) {
	page := formPage{PageBase: pageBase(ctx), Email: ctx.Query("email")}
	if ctx.Request.Method != http.MethodPost {
		ctx.HTML(http.StatusOK, "users/password_reset_confirm.html", page)
		return
	}

	var form passwordResetConfirmForm
	_ = ctx.ShouldBind(&form)
	form.Email = strings.TrimSpace(form.Email)
	form.Code = strings.TrimSpace(form.Code)
	errs := validateForm(form)
	if len(errs["new_password2"]) == 0 {
		if problem := utils.PasswordProblem(form.NewPassword2); problem != "" {
			errs.Add("new_password2", problem)
		}
	}

	rctx := ctx.Request.Context()
	var user models.User
	if !errs.Any() {
		ok, err := a.codes.Consume(rctx, form.Email, form.Code)
		if err != nil {
			serverError(ctx, err, "check reset code failed")
			return
		}
		if ok {
			user, err = a.svc.Store.UserByEmail(rctx, form.Email)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				serverError(ctx, err, "load user failed")
				return
			}
			ok = err == nil
		}
		if !ok {
			errs.Add("code", "The code is invalid or has expired.")
		}
	}
	if errs.Any() {
		page.Email, page.Errors = form.Email, errs
		ctx.HTML(http.StatusOK, "users/password_reset_confirm.html", page)
		return
	}

	if !a.setPassword(ctx, user.ID, form.NewPassword1) {
		return
	}
	redirect(ctx, "/auth/password_reset/complete/")
}

func (a *AuthController) PasswordResetComplete(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "users/password_reset_complete.html", pageBase(ctx))
}

// Captcha returns a fresh captcha for the signup form as JSON.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha(a.captchas)
	if err != nil {
		utils.Logger.Error("generate captcha failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

// OAuthLogin redirects to the provider's consent page.
func (a *AuthController) OAuthLogin(ctx *gin.Context) {
	cfg, err := a.oauthConfig(ctx.Param("provider"))
	if err != nil {
		NotFound(ctx)
		return
	}
	state := uuid.NewString()
	if err := a.states.Save(ctx.Request.Context(), state); err != nil {
		serverError(ctx, err, "save oauth state failed")
		return
	}
	redirect(ctx, cfg.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// OAuthCallback finds or creates the account behind the provider identity and signs it in.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		NotFound(ctx)
		return
	}

	rctx := ctx.Request.Context()
	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" || !a.states.Consume(rctx, state) {
		a.loginFailed(ctx, "The sign-in link has expired. Please try again.")
		return
	}

	token, err := cfg.Exchange(rctx, code)
	if err != nil {
		utils.Logger.Warn("oauth exchange failed", zap.String("provider", provider), zap.Error(err))
		a.loginFailed(ctx, "Could not sign in with "+provider+".")
		return
	}
	info, err := fetchOAuthUser(rctx, provider, cfg.Client(rctx, token))
	if err != nil {
		utils.Logger.Warn("oauth user info failed", zap.String("provider", provider), zap.Error(err))
		a.loginFailed(ctx, "Could not sign in with "+provider+".")
		return
	}

	user, err := a.findOrCreateOAuthUser(rctx, provider, info)
	if err != nil {
		serverError(ctx, err, "persist oauth user failed")
		return
	}
	if err := a.startSession(ctx, user); err != nil {
		serverError(ctx, err, "start session failed")
		return
	}
	redirect(ctx, "/")
}

func (a *AuthController) loginFailed(ctx *gin.Context, msg string) {
	errs := FieldErrors{}
	errs.Add(nonFieldErrors, msg)
	ctx.HTML(http.StatusBadRequest, "users/login.html", loginPage{
		PageBase:  pageBase(ctx),
		Providers: a.providers(),
		Errors:    errs,
	})
}

func (a *AuthController) setPassword(ctx *gin.Context, userID uint, password string) bool {
	hash, err := utils.HashPassword(password)
	if err != nil {
		serverError(ctx, err, "hash password failed")
		return false
	}
	if err := a.svc.Store.UpdatePassword(ctx.Request.Context(), userID, hash); err != nil {
		fail(ctx, err, "update password failed")
		return false
	}
	utils.Logger.Info("password updated", zap.Uint("user_id", userID))
	return true
}

func (a *AuthController) sessionTTL() time.Duration {
	return time.Duration(a.svc.Config.SessionTTLHours) * time.Hour
}

func (a *AuthController) startSession(ctx *gin.Context, user models.User) error {
	ttl := a.sessionTTL()
	token, err := utils.GenerateToken(a.svc.Config.JWTSecret, user.ID, user.Username, ttl)
	if err != nil {
		return err
	}
	a.setCookie(ctx, token, int(ttl.Seconds()))
	return nil
}

func (a *AuthController) setCookie(ctx *gin.Context, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(a.svc.Config.SessionCookieName, value, maxAge, "/", "", ctx.Request.TLS != nil, true)
}

// safeNext keeps redirects on this site. Control characters are refused
// because browsers drop them, turning "/\t/host" into "//host".
func safeNext(next string) string {
	if strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return "/"
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func (a *AuthController) providers() []string {
	var out []string
	for _, p := range []string{"github", "google"} {
		if _, err := a.oauthConfig(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := a.svc.Config
	redirectURL := fmt.Sprintf("%s/auth/oauth/%s/callback/", strings.TrimRight(cfg.OAuthRedirectBase, "/"), provider)
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Email     string
}

func (a *AuthController) findOrCreateOAuthUser(ctx context.Context, provider string, info *oauthUser) (models.User, error) {
	user, err := a.svc.Store.UserByProvider(ctx, provider, info.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, err
	}

	username, err := a.uniqueUsername(ctx, info.Username, provider, info.ID)
	if err != nil {
		return models.User{}, err
	}
	user = models.User{
		Username:   username,
		Email:      strings.TrimSpace(info.Email),
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Provider:   provider,
		ProviderID: info.ID,
	}
	if err := a.svc.Store.CreateUser(ctx, &user); err != nil {
		return models.User{}, err
	}
	utils.Logger.Info("user signed up", zap.Uint("user_id", user.ID), zap.String("provider", provider))
	return user, nil
}

func (a *AuthController) uniqueUsername(ctx context.Context, base, provider, id string) (string, error) {
	base = sanitizeUsername(base)
	if base == "" {
		base = sanitizeUsername(provider + "_" + id)
	}
	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := a.svc.Store.UsernameTaken(ctx, candidate)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// sanitizeUsername lowercases input and keeps the characters a username may hold.
func sanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_.-")
	if len(out) > 140 {
		out = out[:140]
	}
	return out
}

func fetchOAuthUser(ctx context.Context, provider string, client *http.Client) (*oauthUser, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, client)
	case "google":
		return fetchGoogleUser(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, githubAPI+"/user", &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, githubAPI+"/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	first, last, _ := strings.Cut(strings.TrimSpace(payload.Name), " ")
	return &oauthUser{
		ID:        fmt.Sprintf("%d", payload.ID),
		Username:  payload.Login,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Email:     email,
	}, nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := getJSON(ctx, client, googleUserURL, &payload); err != nil {
		return nil, err
	}
	username, _, _ := strings.Cut(payload.Email, "@")
	return &oauthUser{
		ID:        payload.ID,
		Username:  username,
		FirstName: payload.GivenName,
		LastName:  payload.FamilyName,
		Email:     payload.Email,
	}, nil
}
