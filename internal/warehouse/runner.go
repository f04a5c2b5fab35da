// Package warehouse builds and runs the SQL that creates and loads the
// star schema.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparkify/dwhctl/internal/config"
)

// AnalysisResult is the outcome of one analysis query.
type AnalysisResult struct {
	Name     string
	Table    string
	SQL      string
	Columns  []string
	Rows     [][]interface{}
	Duration time.Duration
}

// Runner executes statement lists against a connection, one statement at a
// time. The first failure stops the run; there is no resume.
type Runner struct {
	conn    Conn
	queries *Queries
	logger  *slog.Logger
}

// NewRunner creates a runner. conn must already be connected.
func NewRunner(conn Conn, queries *Queries, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{conn: conn, queries: queries, logger: logger}
}

// CreateTables drops every table and creates it again.
func (r *Runner) CreateTables(ctx context.Context) error {
	if err := r.run(ctx, "drop", r.queries.Drop); err != nil {
		return err
	}
	return r.run(ctx, "create", r.queries.Create)
}

// Load copies the raw datasets into the staging tables and then fills the
// dimension and fact tables from them.
func (r *Runner) Load(ctx context.Context) error {
	if missing := r.queries.settings.missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", config.ErrInvalidConfig, missing)
	}
	if err := r.run(ctx, "copy", r.queries.Copy); err != nil {
		return err
	}
	return r.run(ctx, "insert", r.queries.Insert)
}

// Analyze runs the analysis queries and collects their rows.
func (r *Runner) Analyze(ctx context.Context) ([]AnalysisResult, error) {
	results := make([]AnalysisResult, 0, len(r.queries.Analyze))
	for _, stmt := range r.queries.Analyze {
		start := time.Now()
		rs, err := r.conn.QueryRows(ctx, stmt.SQL)
		if err != nil {
			return results, fmt.Errorf("analysis query %s: %w", stmt.Name, err)
		}
		res := AnalysisResult{
			Name:     stmt.Name,
			Table:    stmt.Table,
			SQL:      stmt.SQL,
			Columns:  rs.Columns,
			Rows:     rs.Rows,
			Duration: time.Since(start),
		}
		r.logger.Info("analysis query done", "query", stmt.Name, "rows", len(rs.Rows), "duration", res.Duration)
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) run(ctx context.Context, phase string, stmts []Statement) error {
	r.logger.Info("starting phase", "phase", phase, "statements", len(stmts))
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		n, err := r.conn.Exec(ctx, stmt.SQL)
		if err != nil {
			return fmt.Errorf("%s %s: %w", phase, stmt.Table, err)
		}
		r.logger.Info("statement done",
			"phase", phase, "table", stmt.Table, "step", i+1, "rows", n, "duration", time.Since(start))
	}
	return nil
}
