package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/aws"
	"github.com/sparkify/dwhctl/internal/cluster"
	"github.com/sparkify/dwhctl/internal/config"
	"github.com/sparkify/dwhctl/internal/lock"
)

// ErrUnknownSelector is returned for a cluster selector other than create,
// delete or delete_role.
var ErrUnknownSelector = errors.New("unknown selector")

var clusterSelector string

// lifecycle is what a selector works with.
type lifecycle struct {
	cfg     *config.Config
	cfgPath string
	ctrl    *cluster.Controller
	out     io.Writer
}

type selectorFunc func(ctx context.Context, lc *lifecycle) error

var selectors = map[string]selectorFunc{
	"create":      createCluster,
	"delete":      deleteCluster,
	"delete_role": deleteRole,
}

func selectorNames() string {
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func lookupSelector(name string) (selectorFunc, error) {
	fn, ok := selectors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (expected one of %s)", ErrUnknownSelector, name, selectorNames())
	}
	return fn, nil
}

// runSelector dispatches a selector against a prepared lifecycle.
func runSelector(ctx context.Context, name string, lc *lifecycle) error {
	fn, err := lookupSelector(name)
	if err != nil {
		return err
	}
	return fn(ctx, lc)
}

var clusterCmd = &cobra.Command{
	Use:   "cluster <create|delete|delete_role>",
	Short: "Create or delete the Redshift cluster and its IAM role",
	Long: `Run one lifecycle action:

  create       create the IAM role, attach S3 read access, create the cluster,
               wait until it is available and open the database port
  delete       delete the cluster without a final snapshot and wait until it is gone
  delete_role  detach the S3 policy and delete the IAM role

The endpoint address and role ARN discovered by create are written back to
the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := clusterSelector
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("a selector is required: %s", selectorNames())
		}
		// reject bad selectors before touching config or AWS
		if _, err := lookupSelector(name); err != nil {
			return err
		}

		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateLifecycle(); err != nil {
			return err
		}

		l, err := lock.Acquire("")
		if err != nil {
			return err
		}
		defer l.Release()

		ctx, stop := signalContext()
		defer stop()

		logger, closeLog, err := setupLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		client, err := newCloudClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating AWS client: %w", err)
		}

		return runSelector(ctx, name, &lifecycle{
			cfg:     cfg,
			cfgPath: path,
			ctrl:    cluster.New(client, cfg.Poll, logger),
			out:     cmd.OutOrStdout(),
		})
	},
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current cluster status and endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Cluster.ClusterIdentifier == "" {
			return fmt.Errorf("%w: missing cluster.cluster_identifier", config.ErrInvalidConfig)
		}

		ctx, stop := signalContext()
		defer stop()

		logger, closeLog, err := setupLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		client, err := newCloudClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating AWS client: %w", err)
		}
		return showStatus(ctx, cmd.OutOrStdout(), cluster.New(client, cfg.Poll, logger), cfg.Cluster.ClusterIdentifier)
	},
}

func showStatus(ctx context.Context, out io.Writer, ctrl *cluster.Controller, id string) error {
	desc, err := ctrl.Status(ctx, id)
	if errors.Is(err, aws.ErrNotFound) {
		fmt.Fprintf(out, "Cluster %s does not exist.\n", id)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, titleStyle.Render("Cluster "+desc.Identifier))
	fmt.Fprintf(out, "  %s %s\n", keyStyle.Render("Status:  "), desc.Status)
	if desc.Endpoint != nil {
		fmt.Fprintf(out, "  %s %s:%d\n", keyStyle.Render("Endpoint:"), desc.Endpoint.Address, desc.Endpoint.Port)
	}
	if desc.VpcID != "" {
		fmt.Fprintf(out, "  %s %s\n", keyStyle.Render("VPC:     "), desc.VpcID)
	}
	for _, arn := range desc.RoleARNs {
		fmt.Fprintf(out, "  %s %s\n", keyStyle.Render("Role:    "), arn)
	}
	return nil
}

func createCluster(ctx context.Context, lc *lifecycle) error {
	settings := &lc.cfg.Cluster
	fmt.Fprintln(lc.out, titleStyle.Render("Creating cluster "+settings.ClusterIdentifier))
	fmt.Fprintln(lc.out, dimStyle.Render("This usually takes several minutes."))

	var info *cluster.ClusterInfo
	err := waitWithSpinner(lc.out, "Waiting for cluster "+settings.ClusterIdentifier, func() error {
		var werr error
		info, werr = lc.ctrl.Create(ctx, settings)
		return werr
	})
	if info != nil {
		// the endpoint is worth keeping even if opening the port failed
		if serr := lc.cfg.Save(lc.cfgPath); serr != nil {
			return errors.Join(err, fmt.Errorf("recording endpoint in %s: %w", lc.cfgPath, serr))
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(lc.out, successStyle.Render(fmt.Sprintf("Cluster available at %s:%d", info.Address, info.Port)))
	fmt.Fprintf(lc.out, "Endpoint and role ARN recorded in %s\n\n", lc.cfgPath)
	fmt.Fprintln(lc.out, "The cluster and environment details are listed below:")
	printSettings(lc.out, settings)
	return nil
}

func deleteCluster(ctx context.Context, lc *lifecycle) error {
	id := lc.cfg.Cluster.ClusterIdentifier
	fmt.Fprintln(lc.out, titleStyle.Render("Deleting cluster "+id))

	err := waitWithSpinner(lc.out, "Waiting for cluster "+id+" to be deleted", func() error {
		return lc.ctrl.Teardown(ctx, id)
	})
	if errors.Is(err, cluster.ErrClusterAbsent) {
		fmt.Fprintln(lc.out, "The cluster does not exist anymore. You can create it again.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(lc.out, successStyle.Render("Cluster deleted."))
	return nil
}

func deleteRole(ctx context.Context, lc *lifecycle) error {
	name := lc.cfg.Cluster.IAMRoleName
	fmt.Fprintln(lc.out, titleStyle.Render("Deleting role "+name))

	if err := lc.ctrl.DeleteRole(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(lc.out, successStyle.Render("The role and policy are deleted."))
	return nil
}

// settingPairs lists the cluster settings in config file order. Secrets are
// masked.
func settingPairs(c *config.ClusterConfig) [][2]string {
	return [][2]string{
		{"access_key", c.AccessKey},
		{"secret", maskSecret(c.Secret)},
		{"region", c.Region},
		{"cluster_type", c.ClusterType},
		{"num_nodes", c.NumNodes},
		{"node_type", c.NodeType},
		{"iam_role_name", c.IAMRoleName},
		{"cluster_identifier", c.ClusterIdentifier},
		{"db_name", c.DBName},
		{"db_user", c.DBUser},
		{"db_password", maskSecret(c.DBPassword)},
		{"db_port", c.DBPort},
		{"host", c.Host},
		{"role_arn", c.RoleARN},
	}
}

func printSettings(w io.Writer, c *config.ClusterConfig) {
	for _, kv := range settingPairs(c) {
		fmt.Fprintf(w, "||%s||%s||\n", kv[0], kv[1])
	}
}

func init() {
	clusterCmd.Flags().StringVar(&clusterSelector, "name", "", "selector (create, delete, delete_role); alternative to the positional argument")
	clusterCmd.AddCommand(clusterStatusCmd)
	rootCmd.AddCommand(clusterCmd)
}
