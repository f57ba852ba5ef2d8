// Package stream implements the transport session for the columnar
// streaming protocol.
//
// The session holds one bidirectional websocket to the server. A statement
// is written as a single query frame; the server answers with one cycle per
// statement: a schema frame, zero or more column-major page frames, and a
// terminal done or error frame. Frames carry the statement id they belong
// to, so frames of an implicitly finalized statement are discarded when a
// new statement is submitted on the same session.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/internal/logging"
	"github.com/arloliu/tandem/internal/metrics"
	"github.com/arloliu/tandem/types"
)

// Frame operations. The client sends query and cancel; the server sends
// schema, page, done and error.
const (
	opQuery  = "query"
	opCancel = "cancel"
	opSchema = "schema"
	opPage   = "page"
	opDone   = "done"
	opError  = "error"
)

// Config holds the settings needed to dial a streaming session.
type Config struct {
	// URL is the ws(s)://host:port/v1/stream endpoint.
	URL *url.URL

	// User and Password authenticate the handshake via basic auth.
	User     string
	Password string

	// Database is the initial current database; empty means server default.
	Database string

	// Settings are the initial session settings forwarded verbatim,
	// e.g. timezone.
	Settings map[string]string

	// PageTimeout bounds every read from the stream.
	PageTimeout time.Duration

	// Dialer overrides the default websocket dialer, e.g. for custom TLS.
	Dialer *websocket.Dialer

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// Session is the columnar streaming transport session.
//
// It is not safe for concurrent use; the client facade serializes access.
type Session struct {
	cfg     Config
	conn    *websocket.Conn
	logger  types.Logger
	metrics types.MetricsCollector

	mu    sync.Mutex
	state adapter.SessionState
	loc   *time.Location

	queryID string
	schema  types.Schema
	stats   types.ServerStats
	done    bool // current result set reached its terminal frame
	more    bool // terminal frame announced a following result set
	failed  error
	closed  bool
}

// Compile-time assertion that Session implements adapter.Session.
var _ adapter.Session = (*Session)(nil)

// Dial establishes a streaming session.
//
// Parameters:
//   - ctx: Context for the websocket handshake
//   - cfg: Session settings; URL is required
//
// Returns:
//   - *Session: A connected session
//   - error: *types.TransportError on handshake failure
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.URL == nil {
		return nil, errors.New("stream: url is required")
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
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
			return nil, fmt.Errorf("stream: invalid timezone %q: %w", tz, err)
		}
		loc = parsed
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if cfg.User != "" {
		header.Set("Authorization", basicAuth(cfg.User, cfg.Password))
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL.String(), header)
	if err != nil {
		kind := types.TransportConnect
		if resp != nil && resp.StatusCode == http.StatusBadGateway {
			kind = types.TransportNetwork
		}

		return nil, &types.TransportError{Kind: kind, Op: "dial", Err: err}
	}

	settings := make(map[string]string, len(cfg.Settings))
	for k, v := range cfg.Settings {
		settings[k] = v
	}

	return &Session{
		cfg:     cfg,
		conn:    conn,
		logger:  logger,
		metrics: collector,
		state:   adapter.SessionState{Database: cfg.Database, Settings: settings},
		loc:     loc,
	}, nil
}

// Submit implements adapter.Session.
//
// The previous statement's remaining frames, if any, are discarded: frames
// carry their statement id and readers skip ids other than the current one.
func (s *Session) Submit(ctx context.Context, sql string) (types.Schema, *types.Page, error) {
	if s.closed {
		return nil, nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, nil, s.failed
	}

	s.queryID = uuid.NewString()
	s.schema = nil
	s.done = false
	s.more = false
	s.stats = types.ServerStats{}
	s.logger.Debug("submit statement", "queryID", s.queryID, "transport", "stream")

	state := s.sessionState()
	req := frame{Op: opQuery, ID: s.queryID, SQL: sql, Session: &state}
	if err := s.conn.WriteJSON(&req); err != nil {
		return nil, nil, s.fail(s.classify(err, "submit"))
	}

	schema, err := s.readSchema(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.schema = schema

	return schema, nil, nil
}

// NextPage implements adapter.Session.
func (s *Session) NextPage(ctx context.Context) (*types.Page, error) {
	if s.closed {
		return nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, s.failed
	}
	if s.done {
		return nil, nil
	}

	for {
		fr, err := s.readFrame(ctx, "next page")
		if err != nil {
			return nil, err
		}
		switch fr.Op {
		case opPage:
			page, err := transpose(fr.Data, len(s.schema))
			if err != nil {
				return nil, s.fail(&types.TransportError{Kind: types.TransportNetwork, Op: "next page", QueryID: s.queryID, Err: err})
			}
			s.metrics.IncPageTotal(types.TransportStream)

			// Zero-row pages are valid pages, not stream termination.
			return page, nil
		case opDone:
			s.done = true
			s.more = fr.More
			if fr.Stats != nil {
				s.stats = *fr.Stats
			}
			s.handleSession(fr.Session)

			return nil, nil
		case opError:
			s.done = true
			s.more = false

			return nil, &types.ServerError{Code: fr.Code, Message: fr.Message, QueryID: s.queryID}
		default:
			return nil, s.fail(&types.TransportError{
				Kind:    types.TransportNetwork,
				Op:      "next page",
				QueryID: s.queryID,
				Err:     fmt.Errorf("unexpected %q frame mid-statement", fr.Op),
			})
		}
	}
}

// NextResultSet implements adapter.Session.
func (s *Session) NextResultSet(ctx context.Context) (types.Schema, error) {
	if s.closed {
		return nil, types.ErrClientClosed
	}
	if s.failed != nil {
		return nil, s.failed
	}

	// Drain the current result set to its terminal frame first.
	for !s.done {
		if _, err := s.NextPage(ctx); err != nil {
			return nil, err
		}
	}
	if !s.more {
		return nil, nil
	}

	schema, err := s.readSchema(ctx)
	if err != nil {
		return nil, err
	}
	s.schema = schema
	s.done = false
	s.more = false

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
// Cancellation is best-effort: the cancel frame asks the server to stop
// emitting pages for the in-flight statement.
func (s *Session) Cancel(_ context.Context) error {
	if s.closed || s.queryID == "" || s.done {
		return nil
	}
	s.metrics.IncCancelTotal(types.TransportStream)
	s.logger.Debug("cancel statement", "queryID", s.queryID)

	return s.conn.WriteJSON(&frame{Op: opCancel, ID: s.queryID})
}

// Close implements adapter.Session.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)

	return s.conn.Close()
}

// readSchema reads frames until the current statement's schema header
// arrives. Frames from superseded statements are discarded.
func (s *Session) readSchema(ctx context.Context) (types.Schema, error) {
	for {
		fr, err := s.readFrame(ctx, "schema")
		if err != nil {
			return nil, err
		}
		switch fr.Op {
		case opSchema:
			schema := make(types.Schema, 0, len(fr.Columns))
			for _, col := range fr.Columns {
				dt, err := types.ParseDataType(col.Type)
				if err != nil {
					return nil, s.fail(&types.TransportError{Kind: types.TransportNetwork, Op: "schema", QueryID: s.queryID, Err: err})
				}
				schema = append(schema, types.Column{Name: col.Name, Type: dt})
			}
			s.handleSession(fr.Session)

			return schema, nil
		case opError:
			s.done = true

			return nil, &types.ServerError{Code: fr.Code, Message: fr.Message, QueryID: s.queryID}
		default:
			// Superseded statements' frames were already skipped by id, so
			// any other frame here is a protocol violation.
			return nil, s.fail(&types.TransportError{
				Kind:    types.TransportNetwork,
				Op:      "schema",
				QueryID: s.queryID,
				Err:     fmt.Errorf("unexpected %q frame before schema", fr.Op),
			})
		}
	}
}

// readFrame reads the next frame addressed to the current statement.
// Frames carrying a different statement id are from a superseded statement
// and are skipped.
func (s *Session) readFrame(ctx context.Context, op string) (*frame, error) {
	for {
		deadline := time.Now().Add(s.cfg.PageTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return nil, s.fail(s.classify(err, op))
		}

		var fr frame
		if err := s.conn.ReadJSON(&fr); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}

			// The framing is lost once a read fails; the session requires
			// reconnect.
			return nil, s.fail(s.classify(err, op))
		}
		if fr.ID != "" && fr.ID != s.queryID {
			continue
		}

		return &fr, nil
	}
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

func (s *Session) sessionState() adapter.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// fail records a terminal session error. The session requires reconnect.
func (s *Session) fail(err error) error {
	s.failed = err

	return err
}

// classify maps a raw websocket error onto the transport error taxonomy.
func (s *Session) classify(err error, op string) *types.TransportError {
	kind := types.TransportNetwork

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = types.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = types.TransportTimeout
	case websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		kind = types.TransportSessionExpired
	}

	return &types.TransportError{Kind: kind, Op: op, QueryID: s.queryID, Err: err}
}

// transpose converts a column-major page frame into row-major raw cells.
// All columns must carry the same row count.
func transpose(columns [][]*string, want int) (*types.Page, error) {
	if len(columns) == 0 {
		return &types.Page{}, nil
	}
	if want > 0 && len(columns) != want {
		return nil, fmt.Errorf("page has %d columns, schema has %d", len(columns), want)
	}

	rows := len(columns[0])
	for _, col := range columns {
		if len(col) != rows {
			return nil, fmt.Errorf("ragged page: column lengths differ")
		}
	}

	page := &types.Page{Rows: make([][]types.RawValue, rows)}
	for i := 0; i < rows; i++ {
		cells := make([]types.RawValue, len(columns))
		for j, col := range columns {
			if col[i] == nil {
				cells[j] = types.RawValue{Null: true}
			} else {
				cells[j] = types.RawValue{Data: *col[i]}
			}
		}
		page.Rows[i] = cells
	}

	return page, nil
}
