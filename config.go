package tandem

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arloliu/tandem/internal/logging"
	"github.com/arloliu/tandem/internal/metrics"
	"github.com/arloliu/tandem/types"
)

// ClientConfig holds configuration for tandem clients.
type ClientConfig struct {
	Logger  types.Logger
	Metrics types.MetricsCollector

	// PageTimeout bounds every page pull round-trip. A pull exceeding it
	// raises a timeout transport error and leaves the session in a failed
	// state requiring reconnect.
	PageTimeout time.Duration

	// MaxRetries bounds retry attempts for idempotent page requests on the
	// HTTP polling transport. Statement submission is never retried.
	MaxRetries int

	// RetryBackoff is the initial backoff between page retries; it doubles
	// per attempt.
	RetryBackoff time.Duration

	// HTTPClient overrides the HTTP client of the polling transport.
	HTTPClient *http.Client

	// Dialer overrides the websocket dialer of the streaming transport.
	Dialer *websocket.Dialer
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Defaults: 30s page timeout, 3 page retries with 50ms initial backoff,
// no-op logger and metrics.
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Logger:       logging.NewNopLogger(),
		Metrics:      metrics.NewNopMetrics(),
		PageTimeout:  30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithPageTimeout sets the timeout for a single page pull.
//
// The DSN parameter page_request_timeout_secs takes precedence when present.
//
// Parameters:
//   - d: Timeout per page round-trip
//
// Returns:
//   - Option: Configuration option
func WithPageTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.PageTimeout = d
	}
}

// WithMaxRetries sets the retry bound for idempotent page requests.
//
// Parameters:
//   - n: Maximum retry attempts
//
// Returns:
//   - Option: Configuration option
func WithMaxRetries(n int) Option {
	return func(c *ClientConfig) {
		c.MaxRetries = n
	}
}

// WithRetryBackoff sets the initial backoff between page retries.
//
// Parameters:
//   - d: Initial backoff duration; doubles per attempt
//
// Returns:
//   - Option: Configuration option
func WithRetryBackoff(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.RetryBackoff = d
	}
}

// WithHTTPClient sets a custom HTTP client for the polling transport,
// e.g. to install custom TLS roots or proxies.
//
// Parameters:
//   - cli: The HTTP client to use
//
// Returns:
//   - Option: Configuration option
func WithHTTPClient(cli *http.Client) Option {
	return func(c *ClientConfig) {
		c.HTTPClient = cli
	}
}

// WithDialer sets a custom websocket dialer for the streaming transport.
//
// Parameters:
//   - dialer: The websocket dialer to use
//
// Returns:
//   - Option: Configuration option
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *ClientConfig) {
		c.Dialer = dialer
	}
}
