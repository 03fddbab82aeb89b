// Package apiclient talks to the storefront JSON API and classifies every failure into the
// domain error taxonomy, so callers only ever see *domain.Error.
package apiclient

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

	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository/record"
)

const defaultMaxBody = 4 << 20

// Client is safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	records    record.Store
	recordKeys []string
	maxBody    int64
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets a whole-request timeout. Zero keeps the HTTP client's default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			clone := *c.http
			clone.Timeout = d
			c.http = &clone
		}
	}
}

// WithRecords sends the given persisted records as request cookies, the way a browser
// sends its cart and wishlist cookies with every storefront request.
func WithRecords(store record.Store, keys ...string) Option {
	return func(c *Client) {
		c.records = store
		c.recordKeys = keys
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l).Named("api") }
}

// New builds a client for the storefront rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		maxBody: defaultMaxBody,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the storefront root the client was built with.
func (c *Client) BaseURL() string { return c.base.String() }

// Do sends in as a JSON body (nil sends no body), checks the {success, message} envelope
// and decodes the full response into out.
func (c *Client) Do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return domain.NewError(domain.KindValidation, op, err, "could not encode request")
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req, err := c.NewRequest(ctx, op, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.Send(op, req, out)
}

// NewRequest builds a request against the storefront with the usual headers and record cookies.
func (c *Client) NewRequest(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, op, err, "invalid request path")
	}
	target := *c.base
	target.Path = c.base.Path + ref.Path
	target.RawQuery = ref.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, op, err, "could not build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.attachRecords(ctx, req)
	return req, nil
}

// Send executes req and decodes the response into out.
func (c *Client) Send(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.Error(err))
		return domain.NewError(domain.KindNetwork, op, err, "could not reach the store")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return domain.NewError(domain.KindNetwork, op, err, "response interrupted")
	}
	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	var env envelope
	envErr := json.Unmarshal(raw, &env)
	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !ok2xx {
		if envErr == nil && env.Success != nil && !*env.Success {
			return rejection(op, env)
		}
		return domain.NewError(domain.KindNetwork, op, fmt.Errorf("http status %d", resp.StatusCode), "the store is unavailable")
	}
	if envErr != nil {
		return domain.NewError(domain.KindMalformedResponse, op, envErr, "unexpected response from the store")
	}
	if env.Success == nil {
		return domain.NewError(domain.KindMalformedResponse, op, errors.New("missing success flag"), "unexpected response from the store")
	}
	if !*env.Success {
		return rejection(op, env)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewError(domain.KindMalformedResponse, op, err, "unexpected response from the store")
	}
	return nil
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func rejection(op string, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = "the store rejected the request"
	}
	return &domain.Error{Kind: domain.KindServerRejection, Op: op, Message: msg}
}

func (c *Client) attachRecords(ctx context.Context, req *http.Request) {
	if c.records == nil {
		return
	}
	for _, key := range c.recordKeys {
		value, ok, err := c.records.Get(ctx, key)
		if err != nil {
			c.logger.Warn("read record for request", zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok || value == "" {
			continue
		}
		if !cookieSafe(value) {
			value = url.PathEscape(value)
		}
		req.AddCookie(&http.Cookie{Name: key, Value: value})
	}
}

func cookieSafe(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b <= 0x20 || b >= 0x7f || b == '"' || b == ';' || b == '\\' || b == ',' {
			return false
		}
	}
	return true
}
