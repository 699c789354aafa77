package cache

import (
	"context"
	"time"

	"github.com/mojocn/base64Captcha"
)

const (
	blacklistPrefix = "jwt:blacklist:"
	resetCodePrefix = "reset:email:"
	oauthPrefix     = "oauth:state:"
	captchaPrefix   = "captcha:"

	opTimeout = 2 * time.Second
)

// TokenBlacklist remembers revoked session tokens until they would have expired anyway.
type TokenBlacklist struct {
	store Store
}

func NewTokenBlacklist(store Store) *TokenBlacklist {
	return &TokenBlacklist{store: store}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, blacklistPrefix+token, []byte("1"), ttl)
}

// IsRevoked fails open: a cache outage must not log every user out.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	_, ok, err := b.store.Get(ctx, blacklistPrefix+token)
	return err == nil && ok
}

// ResetCodes stores single-use password reset codes per email address.
type ResetCodes struct {
	store Store
	ttl   time.Duration
}

func NewResetCodes(store Store, ttl time.Duration) *ResetCodes {
	return &ResetCodes{store: store, ttl: ttl}
}

func (r *ResetCodes) Save(ctx context.Context, email, code string) error {
	return r.store.Set(ctx, resetCodePrefix+email, []byte(code), r.ttl)
}

// Consume checks the code and invalidates it, so every code gets exactly one attempt.
func (r *ResetCodes) Consume(ctx context.Context, email, code string) (bool, error) {
	v, ok, err := r.store.Take(ctx, resetCodePrefix+email)
	if err != nil || !ok {
		return false, err
	}
	return code != "" && string(v) == code, nil
}

// OAuthStates tracks the state parameter of in-flight OAuth logins.
type OAuthStates struct {
	store Store
	ttl   time.Duration
}

func NewOAuthStates(store Store, ttl time.Duration) *OAuthStates {
	return &OAuthStates{store: store, ttl: ttl}
}

func (o *OAuthStates) Save(ctx context.Context, state string) error {
	return o.store.Set(ctx, oauthPrefix+state, []byte("1"), o.ttl)
}

func (o *OAuthStates) Consume(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	_, ok, err := o.store.Take(ctx, oauthPrefix+state)
	return err == nil && ok
}

// captchaStore adapts a Store to base64Captcha.Store so captchas survive across instances.
type captchaStore struct {
	store Store
	ttl   time.Duration
}

func NewCaptchaStore(store Store, ttl time.Duration) base64Captcha.Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &captchaStore{store: store, ttl: ttl}
}

func (c *captchaStore) Set(id string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return c.store.Set(ctx, captchaPrefix+id, []byte(value), c.ttl)
}

func (c *captchaStore) Get(id string, clear bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var (
		v   []byte
		ok  bool
		err error
	)
	if clear {
		v, ok, err = c.store.Take(ctx, captchaPrefix+id)
	} else {
		v, ok, err = c.store.Get(ctx, captchaPrefix+id)
	}
	if err != nil || !ok {
		return ""
	}
	return string(v)
}

func (c *captchaStore) Verify(id, answer string, clear bool) bool {
	v := c.Get(id, clear)
	return v != "" && v == answer
}
