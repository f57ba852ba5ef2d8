package rest

import (
	"github.com/arloliu/tandem/adapter"
	"github.com/arloliu/tandem/types"
)

// queryRequest is the submit body.
type queryRequest struct {
	SQL        string                `json:"sql"`
	Session    *adapter.SessionState `json:"session,omitempty"`
	Pagination *paginationConfig     `json:"pagination,omitempty"`
}

// paginationConfig carries the paging hints forwarded from the DSN.
type paginationConfig struct {
	WaitTimeSecs   *int64 `json:"wait_time_secs,omitempty"`
	MaxRowsPerPage *int64 `json:"max_rows_per_page,omitempty"`
}

// queryResponse is one protocol response: the first response of a statement
// carries the schema; continuation responses carry data and cursor URIs. The
// schema field reappears when a multi-statement submission moves on to its
// next statement.
type queryResponse struct {
	ID      string                `json:"id"`
	Session *adapter.SessionState `json:"session,omitempty"`
	Schema  []schemaField         `json:"schema,omitempty"`
	Data    [][]*string           `json:"data"`
	State   string                `json:"state"`
	Error   *queryError           `json:"error,omitempty"`
	NextURI string                `json:"next_uri,omitempty"`
	KillURI string                `json:"kill_uri,omitempty"`
	Stats   *types.ServerStats    `json:"stats,omitempty"`
}

// schemaField is one (name, declared type) pair of the schema header.
type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// queryError is the server-reported failure terminal status.
type queryError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
