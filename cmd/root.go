package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/aws"
	"github.com/sparkify/dwhctl/internal/config"
	"github.com/sparkify/dwhctl/internal/logging"
	"github.com/sparkify/dwhctl/internal/warehouse"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

// replaced in tests
var (
	newCloudClient = func(ctx context.Context, cfg *config.Config) (aws.Client, error) {
		return aws.NewRealClient(ctx, aws.Credentials{
			AccessKey: cfg.Cluster.AccessKey,
			Secret:    cfg.Cluster.Secret,
			Region:    cfg.Cluster.Region,
		})
	}
	newConn = func(params warehouse.ConnParams) warehouse.Conn {
		return warehouse.NewPostgresConn(params)
	}
)

var rootCmd = &cobra.Command{
	Use:   "dwhctl",
	Short: "Redshift warehouse provisioning and loading",
	Long: `dwhctl provisions a Redshift cluster for the Sparkify song-play
warehouse, builds the star schema and loads it from the S3 datasets.

Typical run:
  dwhctl cluster create
  dwhctl create-tables
  dwhctl etl
  dwhctl analyze
  dwhctl cluster delete && dwhctl cluster delete_role`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dwhctl/dwhctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}

func configPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	return config.ExpandHome(config.DefaultPath)
}

func loadConfig() (*config.Config, string, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// setupLogger writes log lines to stderr and the daily log file so stdout
// stays free for command output.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.Setup(level, cfg.Logging.Directory, cmd.ErrOrStderr())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
