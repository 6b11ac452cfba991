package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the live-API host serving room metadata and the
// stream handshake.
const DefaultBaseURL = "https://api.live.bilibili.com"

// userAgent mirrors a desktop browser; the live API rejects the Go default.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// Signer signs handshake query parameters. The signing algorithm itself
// lives outside this module; tests and anonymous setups may pass nil.
type Signer interface {
	Sign(ctx context.Context, roomID int64, params url.Values) (url.Values, error)
}

// CookieProvider supplies auth cookies for the handshake call. A nil
// provider, or one returning no cookies, yields an anonymous connection.
type CookieProvider interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Client provides access to the live-platform REST API.
type Client struct {
	baseURL    string
	signer     Signer
	cookies    CookieProvider
	httpClient *http.Client
	logger     *slog.Logger

	roomCache *RoomInfoCache

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client. signer may be nil for unsigned
// (anonymous) handshakes.
func NewClient(baseURL string, signer Signer, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		roomCache:    NewRoomInfoCache(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCookies sets the auth cookie provider.
func WithCookies(p CookieProvider) ClientOption {
	return func(c *Client) {
		c.cookies = p
	}
}

// WithRoomCache sets a shared room metadata cache. Registries that must
// stay isolated (tests, multiple registries in one process) each pass
// their own.
func WithRoomCache(cache *RoomInfoCache) ClientOption {
	return func(c *Client) {
		if cache != nil {
			c.roomCache = cache
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
