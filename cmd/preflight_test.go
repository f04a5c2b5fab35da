package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sparkify/dwhctl/internal/aws"
	"github.com/sparkify/dwhctl/internal/config"
)

func preflightConfig() *config.Config {
	cfg := testConfig()
	cfg.S3 = config.S3Config{
		LogData:     "'s3://udacity-dend/log_data'",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
	}
	return cfg
}

func TestRunPreflight(t *testing.T) {
	mock := aws.NewMockClient()
	mock.Objects["udacity-dend/log_data"] = 10
	mock.Objects["udacity-dend/log_json_path.json"] = 1
	mock.Objects["udacity-dend/song_data"] = 10

	var out bytes.Buffer
	if err := runPreflight(context.Background(), &out, mock, preflightConfig()); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "All checks passed.") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunPreflight_EmptySource(t *testing.T) {
	mock := aws.NewMockClient()
	mock.Objects["udacity-dend/log_data"] = 10
	mock.Objects["udacity-dend/log_json_path.json"] = 1

	var out bytes.Buffer
	err := runPreflight(context.Background(), &out, mock, preflightConfig())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.String(), "s3.song_data: no objects") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunPreflight_BadCredentials(t *testing.T) {
	mock := aws.NewMockClient()
	mock.IdentityErr = errors.New("InvalidClientTokenId")

	var out bytes.Buffer
	if err := runPreflight(context.Background(), &out, mock, preflightConfig()); err == nil {
		t.Fatal("expected error")
	}
}
