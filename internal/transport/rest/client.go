package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
)

// Credentials supplies the bearer token for authenticated calls.
type Credentials interface {
	AccessToken() (string, bool)
	// Expired reports whether the stored token is known to be past its expiry.
	Expired() bool
}

// Client is the fetch client every store action goes through. It attaches
// the bearer token, decodes JSON and turns 401 responses into a session
// teardown broadcast to the registered OnUnauthorized hooks.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	log     zerolog.Logger

	mu             sync.RWMutex
	onUnauthorized []func()
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, creds Credentials, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		log:     log.With().Str("component", "rest_client").Logger(),
	}
}

// OnUnauthorized registers fn to run whenever an authenticated call is rejected.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	path   string
	query  url.Values
	// Exactly one of jsonBody, form or raw is set when the request has a body.
	jsonBody    any
	form        url.Values
	raw         io.Reader
	contentType string
	public      bool
}

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is maps status codes onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// DetailOf returns the server's detail message carried by err, or err's text.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.jsonBody != nil:
		data, err := json.Marshal(req.jsonBody)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.raw != nil:
		body = req.raw
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	if !req.public {
		token, ok := c.creds.AccessToken()
		if !ok {
			return domain.ErrNoToken
		}
		if c.creds.Expired() {
			c.log.Info().Str("path", req.path).Msg("access token expired, ending session")
			c.unauthorized()
			return &APIError{Method: req.method, Path: req.path, Status: http.StatusUnauthorized, Detail: "access token expired"}
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.With().Str("method", req.method).Str("path", req.path).Str("request_id", requestID).Logger()
	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Msg("request failed")
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()
	log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).Msg("response")

	if resp.StatusCode == http.StatusUnauthorized && !req.public {
		c.unauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: req.method,
			Path:   req.path,
			Status: resp.StatusCode,
			Detail: readDetail(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	hooks := append([]func(){}, c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// readDetail extracts the "detail" field of an error body. It may be a
// string or a structured validation list; the latter is returned verbatim.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	return string(envelope.Detail)
}

func pathID(id string) string {
	return url.PathEscape(id)
}
