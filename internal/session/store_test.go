package session_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"learnlab-client/internal/apitest"
	"learnlab-client/internal/domain"
	"learnlab-client/internal/infra/memory"
	"learnlab-client/internal/session"
	"learnlab-client/internal/transport/rest"
)

type harness struct {
	srv     *apitest.Server
	storage *memory.LocalStorage
	tokens  *session.Tokens
	client  *rest.Client
	store   *session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	storage := memory.NewLocalStorage()
	tokens, err := session.NewTokens(srv.URL, storage, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	client := rest.NewClient(srv.URL, 5*time.Second, tokens, zerolog.Nop())
	store := session.NewStore(client, tokens, rest.DetailOf, zerolog.Nop())
	client.OnUnauthorized(store.Teardown)
	return &harness{srv: srv, storage: storage, tokens: tokens, client: client, store: store}
}

func (h *harness) stored(t *testing.T, key string) string {
	t.Helper()
	v, _, err := h.storage.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("storage get: %v", err)
	}
	return v
}

func TestLoginPersistsTokensAndUser(t *testing.T) {
	h := newHarness(t)
	seeded := h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")

	user, err := h.store.Login(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != seeded.ID || !h.store.Authenticated() {
		t.Fatalf("expected alice signed in, got %+v", user)
	}
	access, ok := h.tokens.AccessToken()
	if !ok || access != h.stored(t, session.KeyAccessToken) {
		t.Fatalf("cookie and storage disagree: cookie=%q storage=%q", access, h.stored(t, session.KeyAccessToken))
	}
	if h.stored(t, session.KeyRefreshToken) == "" {
		t.Fatalf("refresh token not stored")
	}
	if h.tokens.Subject() != seeded.ID {
		t.Fatalf("expected subject %s, got %s", seeded.ID, h.tokens.Subject())
	}
}

func TestLoginFailureSurfacesDetail(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")

	if _, err := h.store.Login(context.Background(), "alice", "nope"); err == nil {
		t.Fatalf("expected login error")
	}
	if h.store.Err() != "Incorrect username or password" {
		t.Fatalf("unexpected error message %q", h.store.Err())
	}
	if h.store.Authenticated() || h.store.Loading() {
		t.Fatalf("failed login left state behind")
	}
}

func TestRegisterLogsInWithEmail(t *testing.T) {
	h := newHarness(t)
	reg := domain.Registration{Email: "bob@example.com", Username: "bob", Password: "hunter22", FullName: "Bob"}

	user, err := h.store.Register(context.Background(), reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "bob" || !h.store.Authenticated() {
		t.Fatalf("expected bob signed in, got %+v", user)
	}

	_, err = h.store.Register(context.Background(), reg)
	if err == nil || h.store.Err() != "Email already registered" {
		t.Fatalf("expected duplicate email, got %v / %q", err, h.store.Err())
	}
}

func TestRegisterValidatesLocally(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Register(context.Background(), domain.Registration{Email: "not-an-email", Username: "b", Password: "x"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(h.store.Err(), "email") {
		t.Fatalf("expected message about email, got %q", h.store.Err())
	}
	if h.srv.Hits("POST /auth/register") != 0 {
		t.Fatalf("invalid registration must not be sent")
	}
}

// A 401 on a protected call clears cookie and storage and signals the view.
func TestUnauthorizedResponseClearsSession(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")
	if _, err := h.store.Login(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	var expired atomic.Int32
	h.store.OnSessionExpired(func() { expired.Add(1) })

	h.srv.Fail("GET /api/files/files", 401)
	_, err := h.client.ListFiles(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, ok := h.tokens.AccessToken(); ok {
		t.Fatalf("cookie not cleared")
	}
	if h.stored(t, session.KeyAccessToken) != "" || h.stored(t, session.KeyRefreshToken) != "" {
		t.Fatalf("storage not cleared")
	}
	if h.store.Authenticated() {
		t.Fatalf("user still present")
	}
	if expired.Load() != 1 {
		t.Fatalf("expected one session-expired signal, got %d", expired.Load())
	}
}

func TestCheckAuthRestoresFromStorage(t *testing.T) {
	h := newHarness(t)
	user := h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")
	token := h.srv.IssueToken(user.ID, time.Hour)
	_ = h.storage.Set(context.Background(), session.KeyAccessToken, token)

	got, ok, err := h.store.CheckAuth(context.Background())
	if err != nil || !ok || got.ID != user.ID {
		t.Fatalf("check auth: ok=%v err=%v user=%+v", ok, err, got)
	}
}

func TestCheckAuthDropsRejectedToken(t *testing.T) {
	h := newHarness(t)
	_ = h.storage.Set(context.Background(), session.KeyAccessToken, "stale")

	_, ok, err := h.store.CheckAuth(context.Background())
	if ok || err == nil {
		t.Fatalf("expected stale token to be rejected")
	}
	if h.stored(t, session.KeyAccessToken) != "" {
		t.Fatalf("stale token kept in storage")
	}
}

func TestCheckAuthWithoutToken(t *testing.T) {
	h := newHarness(t)
	_, ok, err := h.store.CheckAuth(context.Background())
	if ok || err != nil {
		t.Fatalf("expected anonymous session, got ok=%v err=%v", ok, err)
	}
	if h.srv.Hits("GET /auth/me") != 0 {
		t.Fatalf("no token means no profile request")
	}
}

func TestLogoutAlwaysClears(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")
	if _, err := h.store.Login(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	h.srv.Fail("POST /auth/logout", 500)
	if err := h.store.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if h.store.Authenticated() {
		t.Fatalf("user still present")
	}
	if _, ok := h.tokens.AccessToken(); ok {
		t.Fatalf("cookie not cleared")
	}
	if h.srv.Hits("POST /auth/logout") != 1 {
		t.Fatalf("expected the revoke call")
	}

	// Without tokens no revoke is attempted.
	if err := h.store.Logout(context.Background()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if h.srv.Hits("POST /auth/logout") != 1 {
		t.Fatalf("logout without tokens must not call the API")
	}
}

func TestExpiredTokenDetected(t *testing.T) {
	h := newHarness(t)
	user := h.srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")
	if err := h.tokens.Save(context.Background(), h.srv.IssueToken(user.ID, -time.Minute), "r"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !h.tokens.Expired() {
		t.Fatalf("expected expired token")
	}

	_, err := h.client.Me(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if h.srv.Hits("GET /auth/me") != 0 {
		t.Fatalf("expired token was sent")
	}
	if _, ok := h.tokens.AccessToken(); ok {
		t.Fatalf("expired session not torn down")
	}
}

func TestOpaqueTokenNeverExpires(t *testing.T) {
	h := newHarness(t)
	if err := h.tokens.Save(context.Background(), "opaque token/with=chars", "r"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if h.tokens.Expired() {
		t.Fatalf("opaque tokens carry no expiry")
	}
	if got, _ := h.tokens.AccessToken(); got != "opaque token/with=chars" {
		t.Fatalf("cookie value not round-tripped: %q", got)
	}
}
