package warehouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sparkify/dwhctl/internal/config"
)

func newTestRunner(t *testing.T, conn Conn, s Settings) *Runner {
	t.Helper()
	q, err := NewQueries(s)
	if err != nil {
		t.Fatalf("NewQueries: %v", err)
	}
	return NewRunner(conn, q, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateTables(t *testing.T) {
	conn := &MockConn{}
	r := newTestRunner(t, conn, testWarehouseSettings())

	if err := r.CreateTables(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.Executed) != 14 {
		t.Fatalf("expected 14 statements, got %d", len(conn.Executed))
	}
	for i := 0; i < 7; i++ {
		if !strings.HasPrefix(conn.Executed[i], "DROP TABLE") {
			t.Errorf("statement %d should be a drop: %s", i, conn.Executed[i])
		}
	}
	for i := 7; i < 14; i++ {
		if !strings.HasPrefix(conn.Executed[i], "CREATE TABLE") {
			t.Errorf("statement %d should be a create: %s", i, conn.Executed[i])
		}
	}
	if !strings.Contains(conn.Executed[13], "songplays") {
		t.Errorf("songplays should be created last: %s", conn.Executed[13])
	}
}

func TestCreateTables_StopsOnFirstFailure(t *testing.T) {
	conn := &MockConn{ExecErr: errors.New("permission denied"), FailOn: "CREATE TABLE IF NOT EXISTS users"}
	r := newTestRunner(t, conn, testWarehouseSettings())

	err := r.CreateTables(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "create users") {
		t.Errorf("error should name the failing table: %v", err)
	}
	// 7 drops plus the two staging creates
	if len(conn.Executed) != 9 {
		t.Errorf("expected 9 statements before the failure, got %d", len(conn.Executed))
	}
}

func TestLoad(t *testing.T) {
	conn := &MockConn{}
	r := newTestRunner(t, conn, testWarehouseSettings())

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.Executed) != 7 {
		t.Fatalf("expected 7 statements, got %d", len(conn.Executed))
	}
	if !strings.HasPrefix(conn.Executed[0], "copy staging_events") || !strings.HasPrefix(conn.Executed[1], "copy staging_songs") {
		t.Errorf("copies should run first: %v", conn.Executed[:2])
	}
	if !strings.HasPrefix(conn.Executed[6], "INSERT INTO songplays") {
		t.Errorf("songplays should be inserted last: %s", conn.Executed[6])
	}
}

func TestLoad_CopyFailureSkipsInserts(t *testing.T) {
	conn := &MockConn{ExecErr: errors.New("S3ServiceException"), FailOn: "copy staging_songs"}
	r := newTestRunner(t, conn, testWarehouseSettings())

	if err := r.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	for _, sql := range conn.Executed {
		if strings.HasPrefix(sql, "INSERT") {
			t.Fatalf("insert ran after a failed copy: %s", sql)
		}
	}
}

func TestLoad_IncompleteSettings(t *testing.T) {
	conn := &MockConn{}
	s := testWarehouseSettings()
	s.RoleARN = ""
	r := newTestRunner(t, conn, s)

	err := r.Load(context.Background())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "iam_role.arn") {
		t.Errorf("error should name the missing key: %v", err)
	}
	if len(conn.Executed) != 0 {
		t.Errorf("nothing should run, got %d statements", len(conn.Executed))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	conn := &MockConn{}
	r := newTestRunner(t, conn, testWarehouseSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.CreateTables(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(conn.Executed) != 0 {
		t.Errorf("expected no statements, got %d", len(conn.Executed))
	}
}

func TestAnalyze(t *testing.T) {
	conn := &MockConn{
		QueryResults: []*ResultSet{{
			Columns: []string{"title", "name", "location"},
			Rows:    [][]interface{}{{"Intro", "The Band", "Dublin"}},
		}},
		QueryResult: &ResultSet{Columns: []string{"count"}, Rows: [][]interface{}{{int64(42)}}},
	}
	r := newTestRunner(t, conn, testWarehouseSettings())

	results, err := r.Analyze(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	if results[0].Name != "songs_2000_2005" || len(results[0].Columns) != 3 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[7].Name != "mac_users" || results[7].Rows[0][0] != int64(42) {
		t.Errorf("unexpected last result: %+v", results[7])
	}
	if len(conn.Executed) != 0 {
		t.Error("analysis must not execute statements")
	}
}

func TestAnalyze_QueryError(t *testing.T) {
	conn := &MockConn{QueryErr: errors.New("relation \"songs\" does not exist")}
	r := newTestRunner(t, conn, testWarehouseSettings())

	if _, err := r.Analyze(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
