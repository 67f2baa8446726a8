package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
	"learnlab-client/internal/validate"
)

// AuthAPI is the slice of the API the session store talks to.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (domain.Tokens, error)
	Register(ctx context.Context, reg domain.Registration) error
	Me(ctx context.Context) (domain.User, error)
	Logout(ctx context.Context, refreshToken string) error
}

// DetailFunc extracts a user-facing message from an API error.
type DetailFunc func(error) string

// Store holds the current user and drives login, registration and logout.
type Store struct {
	api    AuthAPI
	tokens *Tokens
	detail DetailFunc
	log    zerolog.Logger

	mu        sync.RWMutex
	user      *domain.User
	loading   bool
	lastError string
	onExpired []func()
}

// NewStore wires the auth store. detail may be nil, in which case err.Error() is used.
func NewStore(api AuthAPI, tokens *Tokens, detail DetailFunc, log zerolog.Logger) *Store {
	if detail == nil {
		detail = func(err error) string { return err.Error() }
	}
	return &Store{
		api:    api,
		tokens: tokens,
		detail: detail,
		log:    log.With().Str("component", "session").Logger(),
	}
}

// Tokens exposes the token holder, e.g. for the WebSocket channel.
func (s *Store) Tokens() *Tokens {
	return s.tokens
}

// User returns the signed-in user.
func (s *Store) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a user is present in the session.
func (s *Store) Authenticated() bool {
	_, ok := s.User()
	return ok
}

// Loading reports whether an auth action is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last failed login or registration.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// OnSessionExpired registers fn to run after a forced teardown.
func (s *Store) OnSessionExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

// CheckAuth restores the session from a persisted token. A token the API no
// longer accepts is cleared.
func (s *Store) CheckAuth(ctx context.Context) (domain.User, bool, error) {
	if _, err := s.tokens.Restore(ctx); err != nil {
		return domain.User{}, false, fmt.Errorf("restore token: %w", err)
	}
	if _, ok := s.tokens.AccessToken(); !ok {
		return domain.User{}, false, nil
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("auth check failed")
		if clearErr := s.tokens.Clear(ctx); clearErr != nil {
			s.log.Error().Err(clearErr).Msg("clear tokens")
		}
		s.setUser(nil)
		return domain.User{}, false, err
	}
	s.setUser(&user)
	return user, true, nil
}

// Login authenticates with username (or email) and password, persists the
// tokens and loads the profile.
func (s *Store) Login(ctx context.Context, username, password string) (domain.User, error) {
	s.begin()
	defer s.end()

	tokens, err := s.api.Login(ctx, username, password)
	if err != nil {
		return domain.User{}, s.fail("login", err)
	}
	return s.authSuccess(ctx, tokens)
}

// Register creates the account and then logs in with its email.
func (s *Store) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if err := validate.Struct(reg); err != nil {
		s.setError(err.Error())
		return domain.User{}, err
	}
	s.begin()
	if err := s.api.Register(ctx, reg); err != nil {
		s.end()
		return domain.User{}, s.fail("register", err)
	}
	s.end()
	return s.Login(ctx, reg.Email, reg.Password)
}

// Logout revokes the refresh token when both tokens are present and always
// clears local state. Failures of the revoke call are logged only.
func (s *Store) Logout(ctx context.Context) error {
	s.begin()
	defer s.end()

	refresh, hasRefresh := s.tokens.RefreshToken(ctx)
	if _, hasAccess := s.tokens.AccessToken(); hasRefresh && hasAccess {
		if err := s.api.Logout(ctx, refresh); err != nil {
			s.log.Warn().Err(err).Msg("logout request failed")
		}
	}
	s.setUser(nil)
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	s.log.Info().Msg("signed out")
	return nil
}

// Teardown ends the session after the API rejected it. It is registered as
// the fetch client's unauthorized hook.
func (s *Store) Teardown() {
	if err := s.tokens.Clear(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("clear tokens")
	}
	s.mu.Lock()
	s.user = nil
	hooks := append([]func(){}, s.onExpired...)
	s.mu.Unlock()

	s.log.Warn().Msg("session rejected by the API, signed out")
	for _, fn := range hooks {
		fn()
	}
}

func (s *Store) authSuccess(ctx context.Context, tokens domain.Tokens) (domain.User, error) {
	if err := s.tokens.Save(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return domain.User{}, s.fail("save tokens", err)
	}
	user, err := s.api.Me(ctx)
	if err != nil {
		return domain.User{}, s.fail("fetch user details", err)
	}
	s.setUser(&user)
	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("signed in")
	return user, nil
}

func (s *Store) fail(action string, err error) error {
	msg := s.detail(err)
	s.setError(msg)
	s.log.Warn().Err(err).Str("action", action).Msg("auth action failed")
	return fmt.Errorf("%s: %w", action, err)
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *Store) setUser(user *domain.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}
