package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/types"
)

func str(s string) *string { return &s }

// testServer upgrades one connection and feeds received query frames to the
// scripted handler, which writes the server side of the statement cycle.
type testServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	handle  func(conn *websocket.Conn, req frame)
	auth    atomic.Value // last Authorization header
	cancels atomic.Int32
}

func newTestServer(t *testing.T, handle func(conn *websocket.Conn, req frame)) *testServer {
	t.Helper()
	ts := &testServer{handle: handle}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.auth.Store(r.Header.Get("Authorization"))
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var fr frame
			if err := conn.ReadJSON(&fr); err != nil {
				return
			}
			switch fr.Op {
			case opQuery:
				ts.handle(conn, fr)
			case opCancel:
				ts.cancels.Add(1)
			}
		}
	}))
	t.Cleanup(ts.srv.Close)

	return ts
}

func (ts *testServer) dial(t *testing.T, mutate ...func(*Config)) *Session {
	t.Helper()
	wsURL, err := url.Parse("ws" + strings.TrimPrefix(ts.srv.URL, "http"))
	require.NoError(t, err)

	cfg := Config{
		URL:         wsURL,
		User:        "alice",
		Password:    "s3cret",
		PageTimeout: 2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	sess, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	return sess
}

func write(conn *websocket.Conn, fr frame) {
	_ = conn.WriteJSON(&fr)
}

func intSchema(id string) frame {
	return frame{Op: opSchema, ID: id, Columns: []schemaField{{Name: "n", Type: "Int64"}}}
}

func TestSessionSubmitAndStream(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("1"), str("2")}}})
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("3"), nil}}})
		write(conn, frame{Op: opDone, ID: req.ID, Stats: &types.ServerStats{ReadRows: 4}})
	})
	sess := ts.dial(t)

	schema, page, err := sess.Submit(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, schema.Names())
	require.Nil(t, page) // streaming delivers all data through NextPage

	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	require.Equal(t, "1", page.Rows[0][0].Data)

	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	require.True(t, page.Rows[1][0].Null)

	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Nil(t, page)
	require.Equal(t, uint64(4), sess.Stats().ReadRows)

	// End of result set is sticky.
	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Nil(t, page)
}

func TestSessionHandshakeAuth(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	ts.dial(t)

	auth, _ := ts.auth.Load().(string)
	require.Equal(t, basicAuth("alice", "s3cret"), auth)
}

func TestSessionZeroRowPage(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{}}})
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELECT n FROM empty")
	require.NoError(t, err)

	// A zero-row page is a page, not an end-of-set marker.
	page, err := sess.NextPage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Len(t, page.Rows, 0)

	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Nil(t, page)
}

func TestSessionServerError(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opError, ID: req.ID, Code: 1005, Message: "division by zero"})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELECT 1/0")
	require.NoError(t, err)

	_, err = sess.NextPage(context.Background())
	require.Error(t, err)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 1005, serverErr.Code)
	require.Equal(t, "division by zero", serverErr.Message)
}

func TestSessionErrorBeforeSchema(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, frame{Op: opError, ID: req.ID, Code: 1003, Message: "syntax error"})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELEKT 1")
	require.Error(t, err)

	var serverErr *types.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 1003, serverErr.Code)
}

func TestSessionMultiResultSet(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("1")}}})
		write(conn, frame{Op: opDone, ID: req.ID, More: true})
		write(conn, frame{Op: opSchema, ID: req.ID, Columns: []schemaField{{Name: "s", Type: "String"}}})
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("hello")}}})
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	sess := ts.dial(t)

	schema, _, err := sess.Submit(context.Background(), "SELECT 1; SELECT 'hello'")
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, schema.Names())

	// NextResultSet drains the remainder of the first set.
	schema, err = sess.NextResultSet(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"s"}, schema.Names())

	page, err := sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello", page.Rows[0][0].Data)

	page, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Nil(t, page)

	schema, err = sess.NextResultSet(context.Background())
	require.NoError(t, err)
	require.Nil(t, schema)
}

func TestSessionResubmitSupersedes(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		if req.SQL == "first" {
			// The first statement's frames keep arriving after the client
			// has moved on; only the schema goes out before resubmission.
			write(conn, intSchema(req.ID))

			return
		}
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("42")}}})
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "first")
	require.NoError(t, err)
	firstID := sess.queryID

	_, _, err = sess.Submit(context.Background(), "second")
	require.NoError(t, err)
	require.NotEqual(t, firstID, sess.queryID)

	page, err := sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42", page.Rows[0][0].Data)
}

func TestSessionStaleFramesDiscarded(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		// A straggler frame from an older statement precedes this
		// statement's cycle.
		write(conn, frame{Op: opPage, ID: "stale-statement", Data: [][]*string{{str("99")}}})
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("1")}}})
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELECT 1")
	require.NoError(t, err)

	page, err := sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", page.Rows[0][0].Data)
}

func TestSessionCancelBestEffort(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELECT sleep(100)")
	require.NoError(t, err)

	require.NoError(t, sess.Cancel(context.Background()))
	require.Eventually(t, func() bool {
		return ts.cancels.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionEchoesServerSessionState(t *testing.T) {
	var replayed atomic.Value
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		if req.Session != nil {
			replayed.Store(*req.Session)
		}
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opDone, ID: req.ID, Session: &adapter.SessionState{
			Database: "analytics",
			Settings: map[string]string{"timezone": "Asia/Taipei"},
		}})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "USE analytics")
	require.NoError(t, err)
	_, err = sess.NextPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Asia/Taipei", sess.Location().String())

	_, _, err = sess.Submit(context.Background(), "SELECT 1")
	require.NoError(t, err)
	state, _ := replayed.Load().(adapter.SessionState)
	require.Equal(t, "analytics", state.Database)
	require.Equal(t, "Asia/Taipei", state.Settings["timezone"])
}

func TestSessionReadTimeoutFailsSession(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		// No further frames; the next read must hit the page timeout.
	})
	sess := ts.dial(t, func(c *Config) { c.PageTimeout = 50 * time.Millisecond })

	_, _, err := sess.Submit(context.Background(), "SELECT 1")
	require.NoError(t, err)

	_, err = sess.NextPage(context.Background())
	require.Error(t, err)

	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, types.TransportTimeout, te.Kind)

	// The framing is lost; the session is latched failed.
	_, _, err = sess.Submit(context.Background(), "SELECT 1")
	require.Error(t, err)
}

func TestSessionRaggedPageFailsSession(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, frame{Op: opSchema, ID: req.ID, Columns: []schemaField{
			{Name: "a", Type: "Int64"},
			{Name: "b", Type: "Int64"},
		}})
		write(conn, frame{Op: opPage, ID: req.ID, Data: [][]*string{{str("1"), str("2")}, {str("3")}}})
	})
	sess := ts.dial(t)

	_, _, err := sess.Submit(context.Background(), "SELECT a, b FROM t")
	require.NoError(t, err)

	_, err = sess.NextPage(context.Background())
	require.Error(t, err)

	var te *types.TransportError
	require.ErrorAs(t, err, &te)
}

func TestSessionClose(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn, req frame) {
		write(conn, intSchema(req.ID))
		write(conn, frame{Op: opDone, ID: req.ID})
	})
	sess := ts.dial(t)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close()) // idempotent

	_, _, err := sess.Submit(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, types.ErrClientClosed)
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
}

func TestDialConnectFailure(t *testing.T) {
	wsURL, err := url.Parse("ws://127.0.0.1:1/v1/stream")
	require.NoError(t, err)

	_, err = Dial(context.Background(), Config{URL: wsURL, PageTimeout: time.Second})
	require.Error(t, err)

	var te *types.TransportError
	require.ErrorAs(t, err, &te)
}

func TestTranspose(t *testing.T) {
	page, err := transpose([][]*string{{str("1"), str("2")}, {str("a"), nil}}, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	require.Equal(t, "1", page.Rows[0][0].Data)
	require.Equal(t, "a", page.Rows[0][1].Data)
	require.True(t, page.Rows[1][1].Null)

	_, err = transpose([][]*string{{str("1")}}, 2)
	require.Error(t, err)

	page, err = transpose(nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 0)
}
