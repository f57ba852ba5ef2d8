package stream

import (
	"encoding/base64"

	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/types"
)

// frame is the single envelope for every message on the stream.
//
// Client frames: op=query (id, sql, session) and op=cancel (id).
// Server frames: op=schema (columns), op=page (data, column-major),
// op=done (stats, more, session) and op=error (code, message).
type frame struct {
	Op      string                `json:"op"`
	ID      string                `json:"id,omitempty"`
	SQL     string                `json:"sql,omitempty"`
	Session *adapter.SessionState `json:"session,omitempty"`
	Columns []schemaField         `json:"columns,omitempty"`
	Data    [][]*string           `json:"data,omitempty"`
	More    bool                  `json:"more,omitempty"`
	Code    int                   `json:"code,omitempty"`
	Message string                `json:"message,omitempty"`
	Stats   *types.ServerStats    `json:"stats,omitempty"`
}

// schemaField is one (name, declared type) pair of the schema frame.
type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// basicAuth renders an Authorization header value for the handshake.
func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
