package tandem

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/codec"
	"github.com/arloliu/tandem/types"
)

// Rows stream states.
const (
	streamActive int32 = iota
	streamClosed
	streamSuperseded
)

// Rows is the transport-agnostic lazy result stream of a statement.
//
// Rows pulls one page at a time from the underlying session, decodes cells
// through the codec, and yields rows in the server's emission order. At most
// one page is resident at any instant, so memory stays bounded regardless of
// the total row count.
//
// A Rows is owned by the caller and must be closed. Opening a new statement
// on the same client invalidates an unclosed Rows: subsequent Next calls
// report types.ErrStreamSuperseded instead of stale rows.
type Rows struct {
	sess      adapter.Session
	cfg       *ClientConfig
	transport types.Transport
	ctx       context.Context

	schema   types.Schema
	page     *types.Page
	idx      int
	finished bool

	start    time.Time
	observed bool
	state    atomic.Int32
}

func newRows(ctx context.Context, sess adapter.Session, cfg *ClientConfig, transport types.Transport, schema types.Schema, first *types.Page) *Rows {
	return &Rows{
		sess:      sess,
		cfg:       cfg,
		transport: transport,
		ctx:       ctx,
		schema:    schema,
		page:      first,
		start:     time.Now(),
	}
}

// Next returns the next row of the current result set.
//
// At the end of the result set Next returns io.EOF; repeated calls keep
// returning io.EOF, not an error. A cell that does not match its declared
// type surfaces as a *types.DecodeError on that call only: the offending row
// is skipped and the stream stays usable for subsequent rows.
//
// Returns:
//   - types.Row: The next decoded row
//   - error: io.EOF at end of stream, *types.DecodeError for a malformed
//     row, types.ErrStreamClosed / types.ErrStreamSuperseded after
//     invalidation, or a transport/server error
func (r *Rows) Next() (types.Row, error) {
	switch r.state.Load() {
	case streamClosed:
		return nil, types.ErrStreamClosed
	case streamSuperseded:
		return nil, types.ErrStreamSuperseded
	}
	if r.finished {
		return nil, io.EOF
	}

	for {
		if r.page != nil && r.idx < len(r.page.Rows) {
			raw := r.page.Rows[r.idx]
			r.idx++

			row, err := codec.New(r.sess.Location()).DecodeRow(r.schema, raw)
			if err != nil {
				r.cfg.Metrics.IncDecodeError(r.transport)

				return nil, err
			}
			r.cfg.Metrics.AddRowTotal(r.transport, 1)

			return row, nil
		}

		page, err := r.sess.NextPage(r.ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			r.finished = true
			r.observe()

			return nil, io.EOF
		}
		r.page = page
		r.idx = 0
	}
}

// NextResultSet advances to the next statement's results when the submission
// contained multiple statements, discarding any unread rows of the current
// result set.
//
// Returns:
//   - bool: true when another result set is available
//   - error: Stream invalidation or transport/server error
func (r *Rows) NextResultSet() (bool, error) {
	switch r.state.Load() {
	case streamClosed:
		return false, types.ErrStreamClosed
	case streamSuperseded:
		return false, types.ErrStreamSuperseded
	}

	schema, err := r.sess.NextResultSet(r.ctx)
	if err != nil {
		return false, err
	}
	if schema == nil {
		r.finished = true
		r.observe()

		return false, nil
	}

	r.schema = schema
	r.page = nil
	r.idx = 0
	r.finished = false

	return true, nil
}

// Schema returns the current result set's schema.
func (r *Rows) Schema() types.Schema {
	return r.schema
}

// Columns returns the current result set's column names in order.
func (r *Rows) Columns() []string {
	return r.schema.Names()
}

// Close releases the stream.
//
// Close may be called at any point, including before exhaustion; unread
// server-side pages are cancelled so no resources stay open for unconsumed
// rows. Subsequent Next calls report types.ErrStreamClosed. Close is
// idempotent.
//
// Returns:
//   - error: Error from the cancel request, if one was needed
func (r *Rows) Close() error {
	if !r.state.CompareAndSwap(streamActive, streamClosed) {
		return nil
	}
	r.observe()
	if r.finished {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PageTimeout)
	defer cancel()

	return r.sess.Cancel(ctx)
}

// supersede invalidates the stream because a newer statement was opened on
// the same session. The underlying pages need no cancellation: the session
// finalizes the previous statement itself.
func (r *Rows) supersede() {
	if r.state.CompareAndSwap(streamActive, streamSuperseded) {
		r.observe()
	}
}

// observe records the statement duration once, from submit to terminal.
func (r *Rows) observe() {
	if r.observed {
		return
	}
	r.observed = true
	r.cfg.Metrics.ObserveQueryDuration(r.transport, time.Since(r.start).Seconds())
}
