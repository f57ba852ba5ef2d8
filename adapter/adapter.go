// Package adapter defines the transport session contract implemented by the
// wire protocol variants.
//
// A Session owns one physical connection to the server and exposes exactly
// the capability set the result stream needs: submit a statement and pull
// pages. The transport is selected once at connect time from the DSN scheme;
// neither the result stream nor the client facade branches on it afterwards.
package adapter

import (
	"context"
	"time"

	"github.com/arloliu/tandem/types"
)

// Session is one live transport connection to the server.
//
// A session drains one statement at a time: a new Submit implicitly
// finalizes the previous statement's stream. Implementations are not safe
// for concurrent use; the client facade serializes access.
type Session interface {
	// Submit sends a statement and blocks until the schema header arrives.
	//
	// The HTTP polling transport returns the first page inline; the
	// streaming transport returns a nil page and delivers all data through
	// NextPage.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - sql: Statement text, passed to the server unmodified
	//
	// Returns:
	//   - types.Schema: Ordered column name/type pairs for the first result set
	//   - *types.Page: Inline first page, or nil
	//   - error: *types.TransportError or *types.ServerError
	Submit(ctx context.Context, sql string) (types.Schema, *types.Page, error)

	// NextPage pulls the next page of the current result set.
	//
	// A (nil, nil) return marks the end of the current result set, not an
	// error. Zero-row pages are valid pages and do not terminate the stream.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - *types.Page: The next page, or nil at end of result set
	//   - error: *types.TransportError or *types.ServerError
	NextPage(ctx context.Context) (*types.Page, error)

	// NextResultSet advances to the next statement's results when the
	// submission contained multiple statements.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - types.Schema: The next result set's schema, or nil when exhausted
	//   - error: *types.TransportError or *types.ServerError
	NextResultSet(ctx context.Context) (types.Schema, error)

	// Location returns the session timezone used to interpret naive
	// timestamps. It changes only when a server response carries a new
	// timezone setting.
	Location() *time.Location

	// Stats returns the server-reported progress of the last statement,
	// updated as pages arrive.
	Stats() types.ServerStats

	// Cancel abandons the in-flight statement. Best-effort on the streaming
	// transport; an explicit kill request on the HTTP transport.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - error: Error from the cancel request
	Cancel(ctx context.Context) error

	// Close tears down the transport connection. The session cannot be
	// reused afterwards.
	Close() error
}

// SessionState is the server-managed session metadata echoed back on
// responses. The session stores it verbatim and replays it on the next
// submit, so settings like the current database and timezone round-trip.
type SessionState struct {
	Database string            `json:"database,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

// Clone returns a deep copy of the state.
func (s SessionState) Clone() SessionState {
	out := SessionState{Database: s.Database}
	if s.Settings != nil {
		out.Settings = make(map[string]string, len(s.Settings))
		for k, v := range s.Settings {
			out.Settings[k] = v
		}
	}

	return out
}
