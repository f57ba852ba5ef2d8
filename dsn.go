package tandem

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/arloliu/tandem/types"
)

// Default port used when the DSN carries none.
const defaultPort = 8000

// Config is the parsed, transport-agnostic form of a connection string.
//
// A Config is immutable once parsed. The scheme maps to exactly one
// transport; everything the general grammar does not recognize is passed
// through verbatim in Params for the transport to interpret as session
// settings (e.g. timezone).
type Config struct {
	// Transport is selected by the DSN scheme.
	Transport types.Transport

	User     string
	Password string
	Host     string
	Port     int

	// Database is the initial current database; empty means server default.
	Database string

	// SSLMode is "require" (default) or "disable".
	SSLMode string

	// Tenant is an optional tenant identifier forwarded on every request.
	Tenant string

	// WaitTimeSecs and MaxRowsPerPage are pagination hints; zero means
	// server default.
	WaitTimeSecs   int64
	MaxRowsPerPage int64

	// PageTimeoutSecs overrides the page request timeout; zero means the
	// client default.
	PageTimeoutSecs int64

	// Params holds unrecognized query parameters verbatim.
	Params map[string]string
}

// ParseDSN parses a connection string into a Config.
//
// Grammar: scheme://[user[:password]@]host[:port]/[database][?key=value&...]
//
// Schemes tandem, tandem+http and tandem+https select the HTTP polling
// transport; tandem+ws and tandem+wss select the streaming transport. The
// +http and +ws aliases imply sslmode=disable, +https and +wss imply
// sslmode=require; an explicit sslmode parameter wins.
//
// Parameters:
//   - dsn: The connection string
//
// Returns:
//   - *Config: The parsed configuration
//   - error: *types.DSNError when the string is malformed
func ParseDSN(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: err.Error()}
	}

	cfg := &Config{SSLMode: "require", Params: map[string]string{}}

	switch u.Scheme {
	case "tandem", "tandem+https":
		cfg.Transport = types.TransportREST
	case "tandem+http":
		cfg.Transport = types.TransportREST
		cfg.SSLMode = "disable"
	case "tandem+wss":
		cfg.Transport = types.TransportStream
	case "tandem+ws":
		cfg.Transport = types.TransportStream
		cfg.SSLMode = "disable"
	case "":
		return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "missing scheme"}
	default:
		return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "unknown scheme " + strconv.Quote(u.Scheme)}
	}

	if u.Hostname() == "" {
		return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "host cannot be empty"}
	}
	cfg.Host = u.Hostname()

	cfg.Port = defaultPort
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "invalid port " + strconv.Quote(p)}
		}
		cfg.Port = port
	}

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	cfg.Database = strings.TrimPrefix(u.Path, "/")

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "invalid query parameters: " + err.Error()}
	}
	for key, vals := range query {
		val := vals[len(vals)-1]
		switch key {
		case "sslmode":
			switch val {
			case "disable":
				cfg.SSLMode = "disable"
			case "require", "enable":
				cfg.SSLMode = "require"
			default:
				return nil, &types.DSNError{DSN: redactDSN(dsn), Reason: "invalid sslmode " + strconv.Quote(val)}
			}
		case "tenant":
			cfg.Tenant = val
		case "wait_time_secs":
			cfg.WaitTimeSecs, err = parseDSNInt(dsn, key, val)
		case "max_rows_per_page":
			cfg.MaxRowsPerPage, err = parseDSNInt(dsn, key, val)
		case "page_request_timeout_secs":
			cfg.PageTimeoutSecs, err = parseDSNInt(dsn, key, val)
		default:
			cfg.Params[key] = val
		}
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func parseDSNInt(dsn, key, val string) (int64, error) {
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n < 0 {
		return 0, &types.DSNError{DSN: redactDSN(dsn), Reason: "invalid " + key + " " + strconv.Quote(val)}
	}

	return n, nil
}

// DSN serializes the Config back into a connection string.
//
// The output uses the scheme alias that encodes both the transport and the
// SSL mode, so ParseDSN(cfg.DSN()) reproduces cfg.
//
// Returns:
//   - string: The connection string, credentials included
func (c *Config) DSN() string {
	u := url.URL{Scheme: "tandem", Host: c.Host}
	if c.Transport == types.TransportStream {
		u.Scheme = "tandem+ws"
		if c.SSLMode != "disable" {
			u.Scheme = "tandem+wss"
		}
	} else if c.SSLMode == "disable" {
		u.Scheme = "tandem+http"
	}
	if c.Port != 0 {
		u.Host = c.Host + ":" + strconv.Itoa(c.Port)
	}
	if c.User != "" || c.Password != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.Database != "" {
		u.Path = "/" + c.Database
	}

	query := url.Values{}
	if c.Tenant != "" {
		query.Set("tenant", c.Tenant)
	}
	if c.WaitTimeSecs != 0 {
		query.Set("wait_time_secs", strconv.FormatInt(c.WaitTimeSecs, 10))
	}
	if c.MaxRowsPerPage != 0 {
		query.Set("max_rows_per_page", strconv.FormatInt(c.MaxRowsPerPage, 10))
	}
	if c.PageTimeoutSecs != 0 {
		query.Set("page_request_timeout_secs", strconv.FormatInt(c.PageTimeoutSecs, 10))
	}
	for k, v := range c.Params {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// Redacted returns the DSN with the password masked, for logging.
func (c *Config) Redacted() string {
	clone := *c
	if clone.Password != "" {
		clone.Password = "xxxxx"
	}

	return clone.DSN()
}

// httpEndpoint returns the base URL for the HTTP polling transport.
func (c *Config) httpEndpoint() *url.URL {
	scheme := "https"
	if c.SSLMode == "disable" {
		scheme = "http"
	}

	return &url.URL{Scheme: scheme, Host: c.Host + ":" + strconv.Itoa(c.Port)}
}

// wsEndpoint returns the stream URL for the streaming transport.
func (c *Config) wsEndpoint() *url.URL {
	scheme := "wss"
	if c.SSLMode == "disable" {
		scheme = "ws"
	}

	return &url.URL{Scheme: scheme, Host: c.Host + ":" + strconv.Itoa(c.Port), Path: "/v1/stream"}
}

// redactDSN masks the password portion of a raw DSN for error messages.
func redactDSN(dsn string) string {
	at := strings.IndexByte(dsn, '@')
	if at < 0 {
		return dsn
	}
	head := dsn[:at]
	colon := strings.Index(head, "://")
	if colon < 0 {
		return dsn
	}
	if pw := strings.IndexByte(head[colon+3:], ':'); pw >= 0 {
		return head[:colon+3+pw] + ":xxxxx" + dsn[at:]
	}

	return dsn
}
