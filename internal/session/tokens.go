package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys and the cookie name shared with the web frontend.
const (
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	CookieAccessToken = "access_token"
)

// LocalStorage is a small persistent string store, the counterpart of the
// browser's localStorage.
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Tokens holds the access token in an access_token cookie scoped to the API
// origin and mirrors both tokens into LocalStorage. The cookie is
// authoritative for outgoing requests; storage lets a new process restore it.
type Tokens struct {
	origin    *url.URL
	jar       http.CookieJar
	storage   LocalStorage
	cookieTTL time.Duration
	now       func() time.Time

	mu sync.Mutex
}

// NewTokens creates the holder for apiBaseURL.
func NewTokens(apiBaseURL string, storage LocalStorage, cookieTTL time.Duration) (*Tokens, error) {
	origin, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	origin = &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/"}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		origin:    origin,
		jar:       jar,
		storage:   storage,
		cookieTTL: cookieTTL,
		now:       time.Now,
	}, nil
}

// Restore copies a persisted access token into the cookie jar.
func (t *Tokens) Restore(ctx context.Context) (bool, error) {
	token, ok, err := t.storage.Get(ctx, KeyAccessToken)
	if err != nil || !ok || token == "" {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setCookieLocked(token)
	return true, nil
}

// Save stores a fresh token pair in the cookie and in storage.
func (t *Tokens) Save(ctx context.Context, access, refresh string) error {
	t.mu.Lock()
	t.setCookieLocked(access)
	t.mu.Unlock()

	if err := t.storage.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := t.storage.Set(ctx, KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Clear expires the cookie and removes both tokens from storage.
func (t *Tokens) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.jar.SetCookies(t.origin, []*http.Cookie{{
		Name:   CookieAccessToken,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
	t.mu.Unlock()
	return t.storage.Delete(ctx, KeyAccessToken, KeyRefreshToken)
}

// AccessToken reads the token back out of the cookie.
func (t *Tokens) AccessToken() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cookie := range t.jar.Cookies(t.origin) {
		if cookie.Name != CookieAccessToken || cookie.Value == "" {
			continue
		}
		token, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			return cookie.Value, true
		}
		return token, true
	}
	return "", false
}

// RefreshToken reads the refresh token from storage.
func (t *Tokens) RefreshToken(ctx context.Context) (string, bool) {
	token, ok, err := t.storage.Get(ctx, KeyRefreshToken)
	if err != nil || token == "" {
		return "", false
	}
	return token, ok
}

// Expired reports whether the access token is a JWT whose exp has passed.
// The signature is not checked; opaque tokens never report expired.
func (t *Tokens) Expired() bool {
	token, ok := t.AccessToken()
	if !ok {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(t.now())
}

// Subject returns the JWT sub claim of the access token, if any.
func (t *Tokens) Subject() string {
	token, ok := t.AccessToken()
	if !ok {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

func (t *Tokens) setCookieLocked(token string) {
	cookie := &http.Cookie{
		Name:  CookieAccessToken,
		Value: url.QueryEscape(token),
		Path:  "/",
	}
	// A zero TTL keeps a session cookie.
	if t.cookieTTL > 0 {
		cookie.Expires = t.now().Add(t.cookieTTL)
	}
	t.jar.SetCookies(t.origin, []*http.Cookie{cookie})
}
