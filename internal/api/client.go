package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults applied when no option overrides them.
const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	defaultBackoff = time.Second
)

// retryPolicy bounds the retry loop in doWithRetry.
type retryPolicy struct {
	max     int
	backoff time.Duration
}

// Client talks to the order REST API. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   retryPolicy
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates an order API client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		retry:   retryPolicy{max: defaultRetries, backoff: defaultBackoff},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBearerToken attaches a session token to every request.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout caps the total time of a single HTTP request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRetries bounds the retry loop for retryable failures.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry = retryPolicy{max: max, backoff: backoff}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}
