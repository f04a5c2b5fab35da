package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.dwhctl/dwhctl.yaml"
)

// ErrInvalidConfig is returned when a required setting is missing or empty.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Cluster ClusterConfig `yaml:"cluster"`
	IAMRole IAMRoleConfig `yaml:"iam_role,omitempty"`
	S3      S3Config      `yaml:"s3,omitempty"`
	Poll    PollConfig    `yaml:"poll,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`

	// references as written in the file, restored by Save
	secretRefs map[string]string
	// values filled in by applyDefaults, left out again by Save
	defaults struct {
		poll    PollConfig
		logging LogConfig
	}
}

// ClusterConfig holds the credentials, sizing, identifiers and database
// settings of the warehouse cluster. Host and RoleARN are filled in once the
// cluster has been provisioned.
type ClusterConfig struct {
	AccessKey         string `yaml:"access_key"`
	Secret            string `yaml:"secret"`
	Region            string `yaml:"region"`
	ClusterType       string `yaml:"cluster_type"` // single-node or multi-node
	NumNodes          string `yaml:"num_nodes"`
	NodeType          string `yaml:"node_type"`
	IAMRoleName       string `yaml:"iam_role_name"`
	ClusterIdentifier string `yaml:"cluster_identifier"`
	DBName            string `yaml:"db_name"`
	DBUser            string `yaml:"db_user"`
	DBPassword        string `yaml:"db_password"`
	DBPort            string `yaml:"db_port"`

	Host    string `yaml:"host,omitempty"`
	RoleARN string `yaml:"role_arn,omitempty"`
}

// IAMRoleConfig holds the role used by COPY statements.
type IAMRoleConfig struct {
	ARN string `yaml:"arn,omitempty"`
}

// S3Config points at the raw song and log datasets.
type S3Config struct {
	LogData     string `yaml:"log_data,omitempty"`
	LogJSONPath string `yaml:"log_jsonpath,omitempty"`
	SongData    string `yaml:"song_data,omitempty"`
}

// PollConfig bounds the cluster convergence loops.
type PollConfig struct {
	ReadyInterval  time.Duration `yaml:"ready_interval,omitempty"`
	DeleteInterval time.Duration `yaml:"delete_interval,omitempty"`
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.dwhctl/logs/
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out := *c
	for _, f := range out.secretFields() {
		if ref, ok := c.secretRefs[f.key]; ok {
			*f.ptr = ref
		}
	}
	out.dropDefaults()

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// ValidateLifecycle checks the settings needed to create or delete the
// cluster and its role.
func (c *Config) ValidateLifecycle() error {
	cl := c.Cluster
	return missing([]field{
		{"cluster.access_key", cl.AccessKey},
		{"cluster.secret", cl.Secret},
		{"cluster.region", cl.Region},
		{"cluster.cluster_type", cl.ClusterType},
		{"cluster.num_nodes", cl.NumNodes},
		{"cluster.node_type", cl.NodeType},
		{"cluster.iam_role_name", cl.IAMRoleName},
		{"cluster.cluster_identifier", cl.ClusterIdentifier},
		{"cluster.db_name", cl.DBName},
		{"cluster.db_user", cl.DBUser},
		{"cluster.db_password", cl.DBPassword},
		{"cluster.db_port", cl.DBPort},
	})
}

// ValidateConnection checks the settings needed to open a database
// connection to a provisioned cluster.
func (c *Config) ValidateConnection() error {
	cl := c.Cluster
	return missing([]field{
		{"cluster.host", cl.Host},
		{"cluster.db_name", cl.DBName},
		{"cluster.db_user", cl.DBUser},
		{"cluster.db_password", cl.DBPassword},
		{"cluster.db_port", cl.DBPort},
	})
}

// ValidatePipeline checks everything the load pipeline consumes: the
// connection settings plus the COPY role, region and S3 locations.
func (c *Config) ValidatePipeline() error {
	if err := c.ValidateConnection(); err != nil {
		return err
	}
	return missing([]field{
		{"iam_role.arn", c.CopyRoleARN()},
		{"cluster.region", c.Cluster.Region},
		{"s3.log_data", c.S3.LogData},
		{"s3.log_jsonpath", c.S3.LogJSONPath},
		{"s3.song_data", c.S3.SongData},
	})
}

// CopyRoleARN returns the role ARN used by COPY, preferring the explicit
// iam_role section over the ARN recorded at provisioning time.
func (c *Config) CopyRoleARN() string {
	if c.IAMRole.ARN != "" {
		return c.IAMRole.ARN
	}
	return c.Cluster.RoleARN
}

type field struct {
	key   string
	value string
}

func missing(fields []field) error {
	var keys []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			keys = append(keys, f.key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(keys, ", "))
}

func (c *Config) applyDefaults() {
	d := &c.defaults
	if c.Poll.ReadyInterval <= 0 {
		c.Poll.ReadyInterval = 30 * time.Second
		d.poll.ReadyInterval = c.Poll.ReadyInterval
	}
	if c.Poll.DeleteInterval <= 0 {
		c.Poll.DeleteInterval = 10 * time.Second
		d.poll.DeleteInterval = c.Poll.DeleteInterval
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 120
		d.poll.MaxAttempts = c.Poll.MaxAttempts
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		d.logging.Level = c.Logging.Level
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.dwhctl/logs/")
		d.logging.Directory = c.Logging.Directory
	}
}

// dropDefaults clears settings that still hold the value applyDefaults
// filled in, so a saved file keeps only what the user wrote.
func (c *Config) dropDefaults() {
	d := c.defaults
	if d.poll.ReadyInterval != 0 && c.Poll.ReadyInterval == d.poll.ReadyInterval {
		c.Poll.ReadyInterval = 0
	}
	if d.poll.DeleteInterval != 0 && c.Poll.DeleteInterval == d.poll.DeleteInterval {
		c.Poll.DeleteInterval = 0
	}
	if d.poll.MaxAttempts != 0 && c.Poll.MaxAttempts == d.poll.MaxAttempts {
		c.Poll.MaxAttempts = 0
	}
	if d.logging.Level != "" && c.Logging.Level == d.logging.Level {
		c.Logging.Level = ""
	}
	if d.logging.Directory != "" && c.Logging.Directory == d.logging.Directory {
		c.Logging.Directory = ""
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

type secretField struct {
	key string
	ptr *string
}

// secretFields are the settings that may hold ${...} references.
func (c *Config) secretFields() []secretField {
	return []secretField{
		{"access_key", &c.Cluster.AccessKey},
		{"secret", &c.Cluster.Secret},
		{"db_password", &c.Cluster.DBPassword},
	}
}

func (c *Config) resolveSecrets() error {
	c.secretRefs = make(map[string]string)
	for _, f := range c.secretFields() {
		if !secretPattern.MatchString(*f.ptr) {
			continue
		}
		c.secretRefs[f.key] = *f.ptr
		v, err := resolveValue(*f.ptr, c.Cluster.Region)
		if err != nil {
			return fmt.Errorf("cluster.%s: %w", f.key, err)
		}
		*f.ptr = v
	}
	return nil
}

func resolveValue(val, region string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref, region)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// splitRef splits a "path#key" reference. The key part is optional unless
// required is set.
func splitRef(ref string, required bool) (path, key string, err error) {
	path, key, found := strings.Cut(ref, "#")
	if path == "" || (found && key == "") || (required && !found) {
		return "", "", fmt.Errorf("invalid secret reference %q: expected format path#key", ref)
	}
	return path, key, nil
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
