package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `version: 1
cluster:
  access_key: AKIAEXAMPLE
  secret: example-secret
  region: us-west-2
  cluster_type: multi-node
  num_nodes: "4"
  node_type: dc2.large
  iam_role_name: dwhRole
  cluster_identifier: test-cluster
  db_name: dwh
  db_user: dwhuser
  db_password: Passw0rd
  db_port: "5439"
iam_role:
  arn: arn:aws:iam::123456789012:role/dwhRole
s3:
  log_data: "'s3://udacity-dend/log_data'"
  log_jsonpath: "'s3://udacity-dend/log_json_path.json'"
  song_data: "'s3://udacity-dend/song_data'"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dwhctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Cluster.ClusterIdentifier != "test-cluster" {
		t.Errorf("expected identifier test-cluster, got %s", cfg.Cluster.ClusterIdentifier)
	}
	if cfg.Cluster.NumNodes != "4" {
		t.Errorf("expected 4 nodes, got %s", cfg.Cluster.NumNodes)
	}
	if cfg.Poll.ReadyInterval != 30*time.Second {
		t.Errorf("expected default ready interval 30s, got %s", cfg.Poll.ReadyInterval)
	}
	if cfg.Poll.DeleteInterval != 10*time.Second {
		t.Errorf("expected default delete interval 10s, got %s", cfg.Poll.DeleteInterval)
	}
	if cfg.Poll.MaxAttempts != 120 {
		t.Errorf("expected default max attempts 120, got %d", cfg.Poll.MaxAttempts)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if err := cfg.ValidateLifecycle(); err != nil {
		t.Errorf("lifecycle validation failed: %v", err)
	}
}

func TestLoadPollOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`poll:
  ready_interval: 5s
  delete_interval: 2s
  max_attempts: 10
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Poll.ReadyInterval != 5*time.Second {
		t.Errorf("ready interval = %s, want 5s", cfg.Poll.ReadyInterval)
	}
	if cfg.Poll.DeleteInterval != 2*time.Second {
		t.Errorf("delete interval = %s, want 2s", cfg.Poll.DeleteInterval)
	}
	if cfg.Poll.MaxAttempts != 10 {
		t.Errorf("max attempts = %d, want 10", cfg.Poll.MaxAttempts)
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "version: 99\ncluster:\n  region: us-west-2\n"))
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestValidateLifecycle_MissingFields(t *testing.T) {
	fields := []string{
		"access_key", "secret", "region", "cluster_type", "num_nodes", "node_type",
		"iam_role_name", "cluster_identifier", "db_name", "db_user", "db_password", "db_port",
	}
	for _, name := range fields {
		t.Run(name, func(t *testing.T) {
			content := strings.Replace(validConfig, "  "+name+":", "  "+name+": \"\"\n  ignored_"+name+":", 1)
			cfg, err := Load(writeConfig(t, content))
			if err != nil {
				t.Fatalf("unexpected load error: %v", err)
			}
			err = cfg.ValidateLifecycle()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), "cluster."+name) {
				t.Errorf("error %q does not name cluster.%s", err, name)
			}
		})
	}
}

func TestValidateLifecycle_WhitespaceIsEmpty(t *testing.T) {
	cfg := &Config{}
	cfg.Cluster.Region = "   "
	err := cfg.ValidateLifecycle()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "cluster.region") {
		t.Errorf("whitespace region should be reported, got %q", err)
	}
}

func TestValidatePipeline(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = cfg.ValidatePipeline()
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), "cluster.host") {
		t.Fatalf("expected missing cluster.host, got %v", err)
	}

	cfg.Cluster.Host = "test-cluster.abc.us-west-2.redshift.amazonaws.com"
	if err := cfg.ValidatePipeline(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.IAMRole.ARN = ""
	if err := cfg.ValidatePipeline(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected missing role ARN, got %v", err)
	}

	cfg.Cluster.RoleARN = "arn:aws:iam::123456789012:role/dwhRole"
	if err := cfg.ValidatePipeline(); err != nil {
		t.Fatalf("recorded role ARN should satisfy COPY: %v", err)
	}
}

func TestSaveKeepsSecretReferences(t *testing.T) {
	t.Setenv("DWH_TEST_PASSWORD", "Passw0rd")
	content := strings.Replace(validConfig, "db_password: Passw0rd", "db_password: ${ENV:DWH_TEST_PASSWORD}", 1)
	path := writeConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cluster.DBPassword != "Passw0rd" {
		t.Fatalf("expected resolved password, got %q", cfg.Cluster.DBPassword)
	}

	cfg.Cluster.Host = "test-cluster.abc.us-west-2.redshift.amazonaws.com"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Passw0rd") {
		t.Error("resolved secret was written back to the config file")
	}
	if !strings.Contains(string(data), "${ENV:DWH_TEST_PASSWORD}") {
		t.Error("secret reference was not preserved")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Cluster.Host != cfg.Cluster.Host {
		t.Errorf("host = %q, want %q", reloaded.Cluster.Host, cfg.Cluster.Host)
	}
	if reloaded.Cluster.DBPassword != "Passw0rd" {
		t.Errorf("password = %q after reload", reloaded.Cluster.DBPassword)
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("TEST_SECRET", "mysecret")
	val, err := resolveValue("${ENV:TEST_SECRET}", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "mysecret" {
		t.Errorf("expected mysecret, got %s", val)
	}
}

func TestResolveEnvSecret_Unset(t *testing.T) {
	t.Setenv("TEST_SECRET", "")
	if _, err := resolveValue("${ENV:TEST_SECRET}", ""); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestResolvePlainValue(t *testing.T) {
	val, err := resolveValue("plaintext", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "plaintext" {
		t.Errorf("expected plaintext, got %s", val)
	}
}

func TestSaveLeavesOutDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Cluster.Host = "test-cluster.abc.us-west-2.redshift.amazonaws.com"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, unwanted := range []string{"poll:", "ready_interval", "max_attempts", "logging:", "directory:", "level:"} {
		if strings.Contains(string(data), unwanted) {
			t.Errorf("saved file contains default %q:\n%s", unwanted, data)
		}
	}
	if cfg.Poll.MaxAttempts != 120 || cfg.Logging.Level != "info" {
		t.Error("save must not change the in-memory defaults")
	}
}

func TestSaveKeepsExplicitSettings(t *testing.T) {
	path := writeConfig(t, validConfig+`poll:
  ready_interval: 30s
  max_attempts: 10
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Poll.MaxAttempts != 10 || reloaded.Poll.ReadyInterval != 30*time.Second || reloaded.Logging.Level != "debug" {
		t.Errorf("explicit settings lost: poll=%+v logging=%+v", reloaded.Poll, reloaded.Logging)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "delete_interval") || strings.Contains(string(data), "directory:") {
		t.Errorf("defaults written back:\n%s", data)
	}
}
