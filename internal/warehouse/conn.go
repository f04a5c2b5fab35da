package warehouse

import (
	"context"
	"net"
	"net/url"
	"strconv"
)

// Conn is a connection to the warehouse database. Every Exec is committed
// on its own.
type Conn interface {
	Connect(ctx context.Context) error
	Exec(ctx context.Context, sql string) (int64, error)
	QueryRows(ctx context.Context, sql string) (*ResultSet, error)
	Close() error
}

// ResultSet holds the rows of a query with columns in select order.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

// ConnParams identifies the warehouse database.
type ConnParams struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Password string
	SSLMode  string // default require
}

// ConnString renders the parameters as a postgres:// URL.
func (p ConnParams) ConnString() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {sslMode}, "connect_timeout": {"30"}}.Encode(),
	}
	return u.String()
}
