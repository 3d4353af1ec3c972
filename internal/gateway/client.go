// Package gateway is the single configuration point for all outbound
// REST calls: it attaches the bearer credential to every request and
// acts as the circuit-breaker for expired sessions.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/recruitport/recruitport-go/internal/storage"
)

// LoginPath is the one route whose 401 responses must not trigger the
// session-expired circuit breaker, to avoid a redirect loop.
const LoginPath = "/auth/login"

const defaultTimeout = 15 * time.Second

// Options tunes the HTTP client. Zero values select defaults.
type Options struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

// Client wraps net/http with the portal's two cross-cutting behaviors:
// fresh-per-request bearer injection and global 401 handling. It is
// safe for concurrent use.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	store   *storage.Store
	limiter *rate.Limiter
	log     *slog.Logger

	// authMu serializes the clear-and-notify path so that concurrent
	// 401s settle to exactly one expiry notification.
	authMu        sync.Mutex
	onAuthExpired []func()
}

// New creates a Client rooted at baseURL, reading credentials from store.
func New(baseURL string, store *storage.Store, opts Options) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		base:    base,
		httpc:   &http.Client{Timeout: timeout},
		store:   store,
		limiter: limiter,
		log:     slog.Default(),
	}, nil
}

// OnAuthExpired registers a hook invoked after an authentication
// failure has cleared the credential store. Registrations compose:
// every hook runs, in registration order, once per expiry. This is the
// only place a full "navigate back to login" may be triggered outside
// explicit user action.
func (c *Client) OnAuthExpired(fn func()) {
	c.authMu.Lock()
	c.onAuthExpired = append(c.onAuthExpired, fn)
	c.authMu.Unlock()
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, out)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, "application/json", bytes.NewReader(b), out)
}

// PostForm issues a POST with a form-encoded body, as the auth service
// expects for login.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, path, nil, "application/x-www-form-urlencoded", body, out)
}

// PostMultipart issues a POST with one file part plus plain fields.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, w.FormDataContentType(), &buf, out)
}

// PatchJSON issues a PATCH with an optional JSON body.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	var rd io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPatch, path, nil, contentType, rd, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil, nil)
}

// GetBinary issues a GET and returns the raw body and its content type,
// for resume downloads.
func (c *Client) GetBinary(ctx context.Context, path string) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", c.fail(path, resp.StatusCode, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	resp, err := c.send(ctx, method, path, query, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(path, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// The bearer header is rebuilt from the store on every request so a
	// credential rotated mid-session is picked up on the next call.
	if token, err := c.store.Get(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// fail converts an error response and, on 401, trips the session
// circuit breaker. The decoded error is always propagated to the caller
// for its own handling.
func (c *Client) fail(path string, status int, body []byte) error {
	if status == http.StatusUnauthorized && path != LoginPath {
		c.expireSession()
	}
	return decodeAPIError(status, body)
}

// expireSession clears the credential store and fires the registered
// hooks. The store check and clear run under one lock so overlapping
// 401s, or a 401 racing a user logout, settle with a single
// notification and an empty store either way.
func (c *Client) expireSession() {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if !c.store.IsPresent() {
		return
	}
	if err := c.store.Clear(); err != nil {
		c.log.Error("clearing credential store after auth failure", "error", err)
		return
	}
	c.log.Warn("session credential rejected by gateway, cleared")
	for _, fn := range c.onAuthExpired {
		fn()
	}
}
