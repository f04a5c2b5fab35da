package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/aws"
	"github.com/sparkify/dwhctl/internal/config"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check AWS credentials and the S3 source datasets",
	Long: `Verify the configured AWS credentials with STS and check that every S3
source location (s3.log_data, s3.log_jsonpath, s3.song_data) holds at least
one object. Run it before creating the cluster to catch typos early.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		client, err := newCloudClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating AWS client: %w", err)
		}
		return runPreflight(ctx, cmd.OutOrStdout(), client, cfg)
	},
}

func preflightSources(cfg *config.Config) map[string]string {
	return map[string]string{
		"s3.log_data":     cfg.S3.LogData,
		"s3.log_jsonpath": cfg.S3.LogJSONPath,
		"s3.song_data":    cfg.S3.SongData,
	}
}

func runPreflight(ctx context.Context, out io.Writer, client aws.Client, cfg *config.Config) error {
	fmt.Fprintln(out, titleStyle.Render("Preflight"))

	result, err := aws.RunPreflight(ctx, client, preflightSources(cfg))
	if err != nil {
		fmt.Fprintf(out, "  [%s] credentials\n", passFail(false))
		return err
	}

	fmt.Fprintf(out, "  [%s] credentials %s\n", passFail(true), dimStyle.Render(result.Identity.ARN))
	for _, s := range result.Sources {
		ok := s.Reachable && s.Objects > 0
		detail := dimStyle.Render(fmt.Sprintf("%s (%d+ objects)", s.URI, s.Objects))
		fmt.Fprintf(out, "  [%s] %s %s\n", passFail(ok), s.Name, detail)
	}

	if !result.OK() {
		fmt.Fprintln(out)
		for _, e := range result.Errors {
			fmt.Fprintln(out, errStyle.Render("  - "+e))
		}
		return fmt.Errorf("%d preflight check(s) failed", len(result.Errors))
	}
	fmt.Fprintln(out, successStyle.Render("All checks passed."))
	return nil
}

func init() {
	rootCmd.AddCommand(preflightCmd)
}
