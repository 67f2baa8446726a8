package rest

import (
	"context"
	"net/http"
	"net/url"

	"learnlab-client/internal/domain"
)

// Login exchanges credentials for a token pair. The form field is "username"
// even when the value is an email address.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Tokens, error) {
	var tokens domain.Tokens
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		form:   url.Values{"username": {username}, "password": {password}},
		public: true,
	}, &tokens)
	return tokens, err
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/register",
		jsonBody: reg,
		public:   true,
	}, nil)
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user)
	return user, err
}

// Logout revokes the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/logout",
		jsonBody: map[string]string{"refresh_token": refreshToken},
	}, nil)
}
