//go:build integration

package integration

import (
	"os"
	"strconv"
	"testing"

	"github.com/sparkify/dwhctl/internal/warehouse"
)

// pgParams points at a plain Postgres used to exercise the wire client.
func pgParams(t *testing.T) warehouse.ConnParams {
	t.Helper()
	return warehouse.ConnParams{
		Host:     envOrDefault("DWHCTL_TEST_PG_HOST", "localhost"),
		Port:     envPort(t, "DWHCTL_TEST_PG_PORT", "25432"),
		Database: envOrDefault("DWHCTL_TEST_PG_DATABASE", "dwhctl_test"),
		User:     envOrDefault("DWHCTL_TEST_PG_USER", "postgres"),
		Password: envOrDefault("DWHCTL_TEST_PG_PASSWORD", "postgres"),
		SSLMode:  "disable",
	}
}

// redshiftParams points at a real cluster; the Redshift-only DDL needs one.
func redshiftParams(t *testing.T) warehouse.ConnParams {
	t.Helper()
	return warehouse.ConnParams{
		Host:     os.Getenv("DWHCTL_TEST_REDSHIFT_HOST"),
		Port:     envPort(t, "DWHCTL_TEST_REDSHIFT_PORT", "5439"),
		Database: envOrDefault("DWHCTL_TEST_REDSHIFT_DATABASE", "dwh"),
		User:     envOrDefault("DWHCTL_TEST_REDSHIFT_USER", "dwhuser"),
		Password: os.Getenv("DWHCTL_TEST_REDSHIFT_PASSWORD"),
	}
}

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("DWHCTL_TEST_PG_HOST") == "" && os.Getenv("DWHCTL_TEST_PG_PORT") == "" {
		t.Skip("skipping: DWHCTL_TEST_PG_HOST/PORT not set")
	}
}

func skipIfNoRedshift(t *testing.T) {
	t.Helper()
	if os.Getenv("DWHCTL_TEST_REDSHIFT_HOST") == "" || os.Getenv("DWHCTL_TEST_REDSHIFT_PASSWORD") == "" {
		t.Skip("skipping: DWHCTL_TEST_REDSHIFT_HOST/PASSWORD not set")
	}
}

func envPort(t *testing.T, key, def string) uint16 {
	t.Helper()
	p, err := strconv.ParseUint(envOrDefault(key, def), 10, 16)
	if err != nil {
		t.Fatalf("%s: %v", key, err)
	}
	return uint16(p)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
