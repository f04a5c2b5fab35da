package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sparkify/dwhctl/internal/warehouse"
)

// AnalysisReport summarizes the analysis queries run against the warehouse.
type AnalysisReport struct {
	Version     string           `json:"version"`
	GeneratedAt time.Time        `json:"generated_at"`
	Cluster     string           `json:"cluster"`
	Database    string           `json:"database"`
	TableCounts map[string]int64 `json:"table_counts"`
	Queries     []QueryResult    `json:"queries"`
	Loaded      bool             `json:"loaded"`
	Checks      []Check          `json:"checks"`
}

// QueryResult is one analysis query and its rows.
type QueryResult struct {
	Name       string          `json:"name"`
	SQL        string          `json:"sql"`
	Columns    []string        `json:"columns"`
	Rows       [][]interface{} `json:"rows"`
	DurationMS int64           `json:"duration_ms"`
}

// Check is a single load sanity condition.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// tables every successful load populates
var loadedTables = []string{"songplays", "users", "songs", "artists", "time"}

// New builds a report from analysis results. Single-value COUNT queries feed
// the per-table counts and the load checks.
func New(cluster, database string, results []warehouse.AnalysisResult) *AnalysisReport {
	r := &AnalysisReport{
		Version:     "1",
		GeneratedAt: time.Now(),
		Cluster:     cluster,
		Database:    database,
		TableCounts: make(map[string]int64),
	}

	for _, res := range results {
		r.Queries = append(r.Queries, QueryResult{
			Name:       res.Name,
			SQL:        res.SQL,
			Columns:    res.Columns,
			Rows:       res.Rows,
			DurationMS: res.Duration.Milliseconds(),
		})
		if !strings.HasSuffix(res.Name, "_count") || len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
			continue
		}
		if n, ok := toInt64(res.Rows[0][0]); ok {
			r.TableCounts[res.Table] = n
		}
	}

	r.Loaded = true
	for _, table := range loadedTables {
		n, ok := r.TableCounts[table]
		c := Check{Name: table + " populated", Passed: ok && n > 0}
		switch {
		case !ok:
			c.Message = fmt.Sprintf("no row count for %s", table)
		case n == 0:
			c.Message = fmt.Sprintf("%s is empty; rerun etl", table)
		default:
			c.Message = fmt.Sprintf("%d rows", n)
		}
		if !c.Passed {
			r.Loaded = false
		}
		r.Checks = append(r.Checks, c)
	}
	return r
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// FormatJSON renders the report as indented JSON.
func FormatJSON(report *AnalysisReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *AnalysisReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := FormatJSON(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*AnalysisReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &AnalysisReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *AnalysisReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *AnalysisReport) string {
	var b strings.Builder

	b.WriteString("=== Warehouse Analysis Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Cluster:   %s\n", report.Cluster))
	b.WriteString(fmt.Sprintf("Database:  %s\n\n", report.Database))

	if len(report.TableCounts) > 0 {
		b.WriteString("Row Counts:\n")
		tables := make([]string, 0, len(report.TableCounts))
		for t := range report.TableCounts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			b.WriteString(fmt.Sprintf("  %-10s %d\n", t, report.TableCounts[t]))
		}
		b.WriteString("\n")
	}

	for _, q := range report.Queries {
		b.WriteString(fmt.Sprintf("--- %s (%dms) ---\n", q.Name, q.DurationMS))
		b.WriteString(q.SQL)
		b.WriteString("\n")
		if len(q.Columns) > 0 {
			b.WriteString("  " + strings.Join(q.Columns, " | ") + "\n")
		}
		for _, row := range q.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%v", v)
			}
			b.WriteString("  " + strings.Join(cells, " | ") + "\n")
		}
		b.WriteString("\n")
	}

	if report.Loaded {
		b.WriteString("Loaded: YES\n\n")
	} else {
		b.WriteString("Loaded: NO\n\n")
	}

	b.WriteString("Checks:\n")
	for _, c := range report.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", status, c.Name, c.Message))
	}

	return b.String()
}
