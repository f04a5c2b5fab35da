package warehouse

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkify/dwhctl/internal/config"
)

// PostgresConn implements Conn over the Postgres wire protocol, which
// Redshift speaks.
type PostgresConn struct {
	params ConnParams
	pool   *pgxpool.Pool
}

// NewPostgresConn creates a connection; nothing is dialed until Connect.
func NewPostgresConn(params ConnParams) *PostgresConn {
	return &PostgresConn{params: params}
}

// ParamsFromConfig builds connection parameters from the cluster settings.
func ParamsFromConfig(c *config.ClusterConfig) (ConnParams, error) {
	port, err := strconv.ParseUint(c.DBPort, 10, 16)
	if err != nil || port == 0 {
		return ConnParams{}, fmt.Errorf("%w: db_port %q is not a valid port", config.ErrInvalidConfig, c.DBPort)
	}
	return ConnParams{
		Host:     c.Host,
		Port:     uint16(port),
		Database: c.DBName,
		User:     c.DBUser,
		Password: c.DBPassword,
	}, nil
}

func (p *PostgresConn) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(p.params.ConnString())
	if err != nil {
		return fmt.Errorf("parsing connection parameters: %w", err)
	}
	// Redshift does not support the extended protocol's prepared statements.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", p.params.Host, p.params.Port, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging %s:%d: %w", p.params.Host, p.params.Port, err)
	}
	p.pool = pool
	return nil
}

func (p *PostgresConn) Exec(ctx context.Context, sql string) (int64, error) {
	if p.pool == nil {
		return 0, fmt.Errorf("not connected")
	}
	tag, err := p.pool.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresConn) QueryRows(ctx context.Context, sql string) (*ResultSet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("not connected")
	}
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	rs := &ResultSet{Columns: make([]string, len(descs))}
	for i, d := range descs {
		rs.Columns[i] = d.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return rs, nil
}

func (p *PostgresConn) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}
