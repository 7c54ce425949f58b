// Package upstream is the HTTP client for the catalog API's auth and data
// endpoints. Every error it returns is classified into one of the domain
// sentinels so callers never inspect HTTP status codes themselves.
package upstream

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
	"time"

	"github.com/rs/zerolog"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Client talks to the upstream catalog API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// New creates an upstream client. A default 10s timeout is applied when none
// is provided; a request hitting it is reported as a transport failure,
// never as an authorization failure.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// envelope is the upstream's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// authData is the payload of successful login/registration responses.
type authData struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, identifier, password string) (string, *domain.User, error) {
	body := map[string]string{"identifier": identifier, "password": password}
	env, err := c.post(ctx, "/api/auth/login", "", body)
	if err != nil {
		// A 401 from the login endpoint is a credential failure, not a
		// rejected session token.
		if errors.Is(err, domain.ErrUnauthorized) {
			return "", nil, recredential("login", err)
		}
		return "", nil, err
	}

	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" || data.User == nil {
		return "", nil, fmt.Errorf("login: malformed response: %w", domain.ErrUpstreamUnavailable)
	}
	return data.Token, data.User, nil
}

func (c *Client) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	env, err := c.post(ctx, "/api/auth/register", "", in)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return "", nil, recredential("register", err)
		}
		return "", nil, err
	}

	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" || data.User == nil {
		return "", nil, fmt.Errorf("register: malformed response: %w", domain.ErrUpstreamUnavailable)
	}
	return data.Token, data.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, "/api/auth/logout", token, nil)
	return err
}

// Profile verifies the bearer token against the identity endpoint and returns
// the server's current view of the user.
func (c *Client) Profile(ctx context.Context, token string) (*domain.User, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/users/profile", token, nil)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, fmt.Errorf("profile: malformed response: %w", domain.ErrUpstreamUnavailable)
	}
	return &user, nil
}

// Catalog proxies a read of one catalog resource collection, returning the
// upstream payload verbatim.
func (c *Client) Catalog(ctx context.Context, token, resource string, query url.Values) (json.RawMessage, error) {
	path := "/api/" + resource
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	env, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) post(ctx context.Context, path, token string, body any) (*envelope, error) {
	return c.do(ctx, http.MethodPost, path, token, body)
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("upstream request failed")
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, domain.ErrUpstreamUnavailable)
	}

	if err := classify(resp.StatusCode); err != nil {
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("message", env.Message).Msg("upstream rejected request")
			return nil, &domain.UpstreamError{
				Err:     fmt.Errorf("%s %s: %w", method, path, err),
				Message: env.Message,
			}
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, path, domain.ErrUpstreamUnavailable)
	}
	if !env.Success {
		return nil, &domain.UpstreamError{
			Err:     fmt.Errorf("%s %s: %w", method, path, domain.ErrInvalidCredentials),
			Message: env.Message,
		}
	}
	return &env, nil
}

// recredential remaps an authorization-class error to a credential failure,
// preserving the upstream's message when the error carries one.
func recredential(op string, err error) error {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return &domain.UpstreamError{
			Err:     fmt.Errorf("%s: %w", op, domain.ErrInvalidCredentials),
			Message: ue.Message,
		}
	}
	return fmt.Errorf("%s: %w", op, domain.ErrInvalidCredentials)
}

// classify maps an HTTP status to a domain sentinel. 401/403 are
// authorization-class; 5xx means the upstream is unhealthy and must be
// treated like an unreachable server, not a rejected credential.
func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrUnauthorized
	case status == http.StatusConflict:
		return domain.ErrUserExists
	case status >= 500:
		return domain.ErrUpstreamUnavailable
	default:
		return domain.ErrInvalidCredentials
	}
}

var _ ports.IdentityClient = (*Client)(nil)
