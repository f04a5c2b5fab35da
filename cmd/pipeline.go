package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/config"
	"github.com/sparkify/dwhctl/internal/report"
	"github.com/sparkify/dwhctl/internal/warehouse"
)

var (
	analyzeOutput string
	analyzeFormat string
	analyzeFrom   string
)

// pipelineStep is one database-side command body.
type pipelineStep func(ctx context.Context, cmd *cobra.Command, cfg *config.Config, r *warehouse.Runner) error

// runPipeline validates cfg with validate, connects to the cluster and runs
// step with a runner built from cfg.
func runPipeline(cmd *cobra.Command, validate func(*config.Config) error, step pipelineStep) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	runner, closeConn, err := openRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeConn()

	return step(ctx, cmd, cfg, runner)
}

func openRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*warehouse.Runner, func(), error) {
	params, err := warehouse.ParamsFromConfig(&cfg.Cluster)
	if err != nil {
		return nil, nil, err
	}
	queries, err := warehouse.NewQueries(warehouse.SettingsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	conn := newConn(params)
	if err := conn.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return warehouse.NewRunner(conn, queries, logger), func() { conn.Close() }, nil
}

var createTablesCmd = &cobra.Command{
	Use:   "create-tables",
	Short: "Drop and recreate the staging and star-schema tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, (*config.Config).ValidateConnection,
			func(ctx context.Context, cmd *cobra.Command, _ *config.Config, r *warehouse.Runner) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("Creating tables"))
				if err := r.CreateTables(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, successStyle.Render("Tables created."))
				return nil
			})
	},
}

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Copy the S3 datasets into staging and load the star schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, (*config.Config).ValidatePipeline,
			func(ctx context.Context, cmd *cobra.Command, _ *config.Config, r *warehouse.Runner) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("Loading warehouse"))
				if err := r.Load(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, successStyle.Render("Data loaded."))
				return nil
			})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis queries and report row counts",
	Long: `Run the analysis queries against the cluster and report row counts and
load checks. With --from, re-render a report saved earlier as JSON without
connecting to the cluster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeFormat != "text" && analyzeFormat != "json" {
			return fmt.Errorf("unsupported format %q (expected text or json)", analyzeFormat)
		}
		if analyzeFrom != "" {
			rep, err := report.ReadJSON(config.ExpandHome(analyzeFrom))
			if err != nil {
				return err
			}
			return emitReport(cmd.OutOrStdout(), rep, analyzeFormat, analyzeOutput)
		}
		return runPipeline(cmd, (*config.Config).ValidateConnection,
			func(ctx context.Context, cmd *cobra.Command, cfg *config.Config, r *warehouse.Runner) error {
				results, err := r.Analyze(ctx)
				if err != nil {
					return err
				}
				rep := report.New(cfg.Cluster.ClusterIdentifier, cfg.Cluster.DBName, results)
				return emitReport(cmd.OutOrStdout(), rep, analyzeFormat, analyzeOutput)
			})
	},
}

func emitReport(out io.Writer, rep *report.AnalysisReport, format, path string) error {
	if path != "" {
		path = config.ExpandHome(path)
		var err error
		if format == "json" {
			err = report.WriteJSON(rep, path)
		} else {
			err = report.WriteText(rep, path)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
		return nil
	}

	if format == "json" {
		data, err := report.FormatJSON(rep)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	_, err := io.WriteString(out, report.FormatText(rep))
	return err
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "report format (text, json)")
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "render a saved JSON report instead of querying the cluster")
	rootCmd.AddCommand(createTablesCmd, etlCmd, analyzeCmd)
}
