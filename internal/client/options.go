package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jasperwreed/unip/internal/audit"
	"github.com/jasperwreed/unip/internal/security"
)

// Recorder receives one entry per completed exchange.
type Recorder interface {
	Record(audit.Entry) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimiter gates every request through l, allowing max requests per
// window.
func WithRateLimiter(l *security.RateLimiter, max int, window time.Duration) Option {
	return func(c *Client) {
		c.limiter = l
		c.maxRequests = max
		c.window = window
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithDevMode keeps raw server error payloads on APIError.Data.
func WithDevMode(dev bool) Option {
	return func(c *Client) { c.dev = dev }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithCorrelationID(id *CorrelationID) Option {
	return func(c *Client) { c.correlation = id }
}
