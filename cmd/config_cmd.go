package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate, and create the dwhctl configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		showConfig(cmd.OutOrStdout(), cfg, path)
		return nil
	},
}

func showConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, titleStyle.Render("Configuration "+path))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Cluster:")
	for _, kv := range settingPairs(&cfg.Cluster) {
		fmt.Fprintf(out, "    %-20s %s\n", kv[0]+":", kv[1])
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Pipeline:")
	fmt.Fprintf(out, "    %-20s %s\n", "iam_role.arn:", cfg.CopyRoleARN())
	fmt.Fprintf(out, "    %-20s %s\n", "s3.log_data:", cfg.S3.LogData)
	fmt.Fprintf(out, "    %-20s %s\n", "s3.log_jsonpath:", cfg.S3.LogJSONPath)
	fmt.Fprintf(out, "    %-20s %s\n", "s3.song_data:", cfg.S3.SongData)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Polling:")
	fmt.Fprintf(out, "    %-20s %s\n", "ready_interval:", cfg.Poll.ReadyInterval)
	fmt.Fprintf(out, "    %-20s %s\n", "delete_interval:", cfg.Poll.DeleteInterval)
	fmt.Fprintf(out, "    %-20s %d\n", "max_attempts:", cfg.Poll.MaxAttempts)
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		return validateConfig(cmd.OutOrStdout(), cfg)
	},
}

// validateConfig reports which commands the config is complete enough for.
// Pipeline settings are only required once the cluster exists, so a config
// that only passes the lifecycle check is still valid.
func validateConfig(out io.Writer, cfg *config.Config) error {
	lifecycleErr := cfg.ValidateLifecycle()
	pipelineErr := cfg.ValidatePipeline()

	fmt.Fprintf(out, "  [%s] cluster lifecycle (cluster create/delete/delete_role)\n", passFail(lifecycleErr == nil))
	if lifecycleErr != nil {
		fmt.Fprintln(out, errStyle.Render("      "+lifecycleErr.Error()))
	}
	fmt.Fprintf(out, "  [%s] pipeline (create-tables, etl, analyze)\n", passFail(pipelineErr == nil))
	if pipelineErr != nil {
		fmt.Fprintln(out, dimStyle.Render("      "+pipelineErr.Error()))
	}

	if lifecycleErr != nil {
		return lifecycleErr
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func maskSecret(s string) string {
	if strings.HasPrefix(s, "${") {
		return s
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
