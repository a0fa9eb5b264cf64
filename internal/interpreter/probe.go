package interpreter

import "context"

// QueryResult is the result of one read-only probe.
type QueryResult struct {
	Columns  []string
	Rows     [][]any
	RowCount int
}

// Probe is the read-only SQL probe a QUERY step invokes. It MUST enforce
// read-only (SELECT-only) at its own boundary and must not re-interpret
// the fully-rendered SQL text it is handed.
type Probe interface {
	Query(ctx context.Context, sql string) (QueryResult, error)
}
