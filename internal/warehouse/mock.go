package warehouse

import (
	"context"
	"strings"
)

// MockConn is a test double for the Conn interface.
type MockConn struct {
	ConnectErr error

	// ExecErr is returned by the first Exec whose SQL contains FailOn.
	ExecErr error
	FailOn  string

	// QueryResults are returned in order by QueryRows; QueryResult is used
	// once they run out.
	QueryResults []*ResultSet
	QueryResult  *ResultSet
	QueryErr     error

	Connected bool
	Closed    bool
	Executed  []string
	Queried   []string
}

var _ Conn = (*MockConn)(nil)

func (m *MockConn) Connect(_ context.Context) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.Connected = true
	return nil
}

func (m *MockConn) Exec(_ context.Context, sql string) (int64, error) {
	if m.ExecErr != nil && (m.FailOn == "" || strings.Contains(sql, m.FailOn)) {
		return 0, m.ExecErr
	}
	m.Executed = append(m.Executed, sql)
	return 0, nil
}

func (m *MockConn) QueryRows(_ context.Context, sql string) (*ResultSet, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.Queried = append(m.Queried, sql)
	if i := len(m.Queried) - 1; i < len(m.QueryResults) {
		return m.QueryResults[i], nil
	}
	if m.QueryResult != nil {
		return m.QueryResult, nil
	}
	return &ResultSet{}, nil
}

func (m *MockConn) Close() error {
	m.Closed = true
	return nil
}
