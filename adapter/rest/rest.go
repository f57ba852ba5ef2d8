// Package rest implements the transport session for the HTTP polling
// protocol.
//
// A statement is submitted with a single POST that returns the schema and an
// initial page inline; further pages are pulled by following the
// continuation URI embedded in each response. Page requests are idempotent,
// so transient network failures on them are retried with bounded backoff.
// Statement submission is never retried, to avoid duplicate execution.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/internal/logging"
	"github.com/arloliu/tandem/internal/metrics"
	"github.com/arloliu/tandem/types"
)

const (
	queryPath = "/v1/query"

	headerQueryID = "X-Tandem-Query-ID"
	headerTenant  = "X-Tandem-Tenant"
)

// Config holds the settings needed to build a REST session.
type Config struct {
	// Endpoint is the http(s)://host:port base URL.
	Endpoint *url.URL

	// User and Password authenticate every request via basic auth.
	User     string
	Password string

	// Database is the initial current database; empty means server default.
	Database string

	// Settings are the initial session settings forwarded verbatim,
	// e.g. timezone.
	Settings map[string]string

	// Tenant is forwarded as a request header when set.
	Tenant string

	// WaitTimeSecs and MaxRowsPerPage are pagination hints forwarded in the
	// submit body when non-zero.
	WaitTimeSecs   int64
	MaxRowsPerPage int64

	// PageTimeout bounds every request round-trip.
	PageTimeout time.Duration

	// MaxRetries bounds retry attempts for page requests.
	MaxRetries int

	// RetryBackoff is the initial backoff between page retries; it doubles
	// per attempt.
	RetryBackoff time.Duration

	// HTTPClient overrides the default client, e.g. for custom TLS roots.
	HTTPClient *http.Client

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// Session is the HTTP polling transport session.
//
// It is not safe for concurrent use; the client facade serializes access.
type Session struct {
	cfg     Config
	cli     *http.Client
	logger  types.Logger
	metrics types.MetricsCollector

	mu    sync.Mutex
	state adapter.SessionState
	loc   *time.Location

	queryID      string
	nextURI      string
	killURI      string
	stats        types.ServerStats
	failed       error
	nextSchema   types.Schema // boundary page's schema, pending NextResultSet
	pendingPage  *types.Page  // boundary page's data, delivered after NextResultSet
	sentSchema   bool         // schema for the current result set already delivered
	closed       bool
}

// Compile-time assertion that Session implements adapter.Session.
var _ adapter.Session = (*Session)(nil)

// New creates a REST session.
//
// Parameters:
//   - cfg: Session settings; Endpoint is required
//
// Returns:
//   - *Session: A new session
//   - error: Configuration error
func New(cfg Config) (*Session, error) {
	if cfg.Endpoint == nil {
		return nil, errors.New("rest: endpoint is required")
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}

	cli := cfg.HTTPClient
	if cli == nil {
		cli = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewNopMetrics()
	}

	loc := time.UTC
	if tz, ok := cfg.Settings["timezone"]; ok {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("rest: invalid timezone %q: %w", tz, err)
		}
		loc = parsed
	}

	settings := make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		settings[k] = v
	}

	return &Session{
		cfg:     cfg,
		cli:     cli,
		logger:  logger,
		metrics: collector,
		state:   adapter.SessionState{Database: cfg.Database, Settings: settings},
		loc:     loc,
	}, nil
}

// Submit implements adapter.Session.
func (s *Session) Submit(ctx context.Context, sql string) (types.Schema, *types.Page, error) {
	if s.closed {
		return nil, nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, nil, s.failed
	}
	s.resetStatement()

	s.queryID = uuid.NewString()
	body := queryRequest{
		SQL:        sql,
		Session:    s.sessionState(),
		Pagination: s.pagination(),
	}
	s.logger.Debug("submit statement", "queryID", s.queryID, "transport", "rest")

	// Submission is not idempotent and is never retried.
	resp, err := s.do(ctx, http.MethodPost, queryPath, &body, "submit")
	if err != nil {
		return nil, nil, err
	}

	schema, page, err := s.consume(resp, "submit")
	if err != nil {
		return nil, nil, err
	}
	if schema == nil {
		schema = types.Schema{}
	}
	s.sentSchema = true

	return schema, page, nil
}

// NextPage implements adapter.Session.
func (s *Session) NextPage(ctx context.Context) (*types.Page, error) {
	if s.closed {
		return nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, s.failed
	}
	if s.pendingPage != nil {
		page := s.pendingPage
		s.pendingPage = nil

		return page, nil
	}
	// A buffered boundary schema means the current result set is drained.
	if s.nextSchema != nil || s.nextURI == "" {
		return nil, nil
	}

	resp, err := s.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	schema, page, err := s.consume(resp, "next page")
	if err != nil {
		return nil, err
	}
	if len(schema) > 0 && s.sentSchema {
		// A fresh schema on a continuation page starts the next statement's
		// result set. Buffer it until NextResultSet is called.
		s.nextSchema = schema
		s.pendingPage = page

		return nil, nil
	}

	return page, nil
}

// NextResultSet implements adapter.Session.
func (s *Session) NextResultSet(ctx context.Context) (types.Schema, error) {
	if s.closed {
		return nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, s.failed
	}

	// Drain any remaining pages of the current result set up to the boundary.
	for s.nextSchema == nil {
		if s.nextURI == "" {
			return nil, nil
		}
		if _, err := s.NextPage(ctx); err != nil {
			return nil, err
		}
	}

	schema := s.nextSchema
	s.nextSchema = nil
	s.sentSchema = true

	return schema, nil
}

// Location implements adapter.Session.
func (s *Session) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loc
}

// Stats implements adapter.Session.
func (s *Session) Stats() types.ServerStats {
	return s.stats
}

// Cancel implements adapter.Session.
//
// Cancel issues an explicit kill request so the server releases resources
// held for unconsumed pages.
func (s *Session) Cancel(ctx context.Context) error {
	if s.killURI == "" {
		return nil
	}
	killURI := s.killURI
	s.killURI = ""
	s.nextURI = ""
	s.metrics.IncCancelTotal(types.TransportREST)
	s.logger.Debug("kill query", "queryID", s.queryID, "uri", killURI)

	resp, err := s.request(ctx, http.MethodPost, killURI, nil)
	if err != nil {
		return s.classify(err, "cancel")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)

		return &types.ServerError{Code: resp.StatusCode, Message: "kill query failed: " + string(text), QueryID: s.queryID}
	}

	return nil
}

// Close implements adapter.Session.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.killURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PageTimeout)
		defer cancel()
		_ = s.Cancel(ctx)
	}
	s.cli.CloseIdleConnections()

	return nil
}

// resetStatement clears all per-statement cursor state.
func (s *Session) resetStatement() {
	s.nextURI = ""
	s.killURI = ""
	s.nextSchema = nil
	s.pendingPage = nil
	s.sentSchema = false
	s.stats = types.ServerStats{}
}

// fetchPage follows the continuation URI with bounded retries. Page requests
// are idempotent, so network failures and 5xx responses are retried.
func (s *Session) fetchPage(ctx context.Context) (*queryResponse, error) {
	var lastErr error
	backoff := s.cfg.RetryBackoff
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncRetryTotal(types.TransportREST)
			s.logger.Warn("retrying page request",
				"queryID", s.queryID,
				"attempt", attempt,
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, s.fail(s.classify(ctx.Err(), "next page"))
			}
			backoff *= 2
		}

		resp, err := s.do(ctx, http.MethodGet, s.nextURI, nil, "next page")
		if err == nil {
			return resp, nil
		}

		var te *types.TransportError
		if !errors.As(err, &te) || te.Kind == types.TransportSessionExpired || te.Kind == types.TransportTimeout {
			return nil, err
		}
		lastErr = err
	}

	return nil, s.fail(lastErr)
}

// do performs one request and decodes the protocol response. A server-side
// failure in the body becomes a ServerError; everything else is transport.
func (s *Session) do(ctx context.Context, method, uri string, body *queryRequest, op string) (*queryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &types.TransportError{Kind: types.TransportNetwork, Op: op, QueryID: s.queryID, Err: err}
		}
		payload = bytes.NewReader(data)
	}

	resp, err := s.requestCtx(ctx, method, uri, payload)
	if err != nil {
		terr := s.classify(err, op)
		if terr.Kind == types.TransportTimeout {
			return nil, s.fail(terr)
		}

		return nil, terr
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		text, _ := io.ReadAll(resp.Body)

		return nil, s.fail(&types.TransportError{
			Kind:    types.TransportSessionExpired,
			Op:      op,
			QueryID: s.queryID,
			Err:     errors.New(string(text)),
		})
	case resp.StatusCode != http.StatusOK:
		text, _ := io.ReadAll(resp.Body)

		return nil, &types.TransportError{
			Kind:    types.TransportNetwork,
			Op:      op,
			QueryID: s.queryID,
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text),
		}
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, &types.TransportError{Kind: types.TransportNetwork, Op: op, QueryID: s.queryID, Err: err}
	}

	return &qr, nil
}

func (s *Session) requestCtx(ctx context.Context, method, uri string, body io.Reader) (*http.Response, error) {
	endpoint, err := s.cfg.Endpoint.Parse(uri)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.cfg.User, s.cfg.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerQueryID, s.queryID)
	if s.cfg.Tenant != "" {
		req.Header.Set(headerTenant, s.cfg.Tenant)
	}

	return s.cli.Do(req)
}

func (s *Session) request(ctx context.Context, method, uri string, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout)
	defer cancel()

	return s.requestCtx(ctx, method, uri, body)
}

// consume digests one protocol response into cursor state and a page.
func (s *Session) consume(resp *queryResponse, op string) (types.Schema, *types.Page, error) {
	s.handleSession(resp.Session)
	s.nextURI = resp.NextURI
	if resp.KillURI != "" {
		s.killURI = resp.KillURI
	}
	if resp.Stats != nil {
		s.stats = *resp.Stats
	}

	if resp.Error != nil {
		// Server-reported terminal failure. Not retried.
		s.nextURI = ""

		return nil, nil, &types.ServerError{Code: resp.Error.Code, Message: resp.Error.Message, QueryID: s.queryID}
	}

	var schema types.Schema
	if len(resp.Schema) > 0 {
		schema = make(types.Schema, 0, len(resp.Schema))
		for _, field := range resp.Schema {
			dt, err := types.ParseDataType(field.Type)
			if err != nil {
				return nil, nil, &types.TransportError{Kind: types.TransportNetwork, Op: op, QueryID: s.queryID, Err: err}
			}
			schema = append(schema, types.Column{Name: field.Name, Type: dt})
		}
	}

	page := &types.Page{Rows: make([][]types.RawValue, len(resp.Data))}
	for i, row := range resp.Data {
		cells := make([]types.RawValue, len(row))
		for j, cell := range row {
			if cell == nil {
				cells[j] = types.RawValue{Null: true}
			} else {
				cells[j] = types.RawValue{Data: *cell}
			}
		}
		page.Rows[i] = cells
	}
	s.metrics.IncPageTotal(types.TransportREST)

	return schema, page, nil
}

// handleSession stores the server-updated session state so the next submit
// replays it, and tracks timezone changes for the codec.
func (s *Session) handleSession(state *adapter.SessionState) {
	if state == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	if tz, ok := state.Settings["timezone"]; ok {
		if loc, err := time.LoadLocation(tz); err == nil {
			s.loc = loc
		} else {
			s.logger.Warn("server returned unknown timezone", "timezone", tz)
		}
	}
}

func (s *Session) sessionState() *adapter.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.Clone()

	return &state
}

func (s *Session) pagination() *paginationConfig {
	if s.cfg.WaitTimeSecs == 0 && s.cfg.MaxRowsPerPage == 0 {
		return nil
	}
	p := &paginationConfig{}
	if s.cfg.WaitTimeSecs != 0 {
		p.WaitTimeSecs = &s.cfg.WaitTimeSecs
	}
	if s.cfg.MaxRowsPerPage != 0 {
		p.MaxRowsPerPage = &s.cfg.MaxRowsPerPage
	}

	return p
}

// fail records a terminal session error. The session requires reconnect.
func (s *Session) fail(err error) error {
	s.failed = err
	s.nextURI = ""

	return err
}

// classify maps a raw request error onto the transport error taxonomy.
func (s *Session) classify(err error, op string) *types.TransportError {
	kind := types.TransportNetwork

	var netErr net.Error
	var opErr *net.OpError
	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = types.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = types.TransportTimeout
	case errors.As(err, &certErr), errors.As(err, &recErr):
		kind = types.TransportTLS
	case errors.As(err, &opErr) && opErr.Op == "dial":
		kind = types.TransportConnect
	}

	return &types.TransportError{Kind: kind, Op: op, QueryID: s.queryID, Err: err}
}
