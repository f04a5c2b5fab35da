package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwhctl/internal/config"
)

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Walk through prompts to create a dwhctl configuration file at
~/.dwhctl/dwhctl.yaml (or the path given with --config).

Secrets can be entered as references instead of values:
  ${ENV:NAME}  ${VAULT:path#key}  ${AWS_SM:name}  ${AWS_SM:name#key}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		out := cmd.OutOrStdout()
		cfg := promptConfig(bufio.NewReader(cmd.InOrStdin()), out)
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Fprintf(out, "Config written to %s\n\n", path)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  dwhctl preflight        Check credentials and S3 sources")
		fmt.Fprintln(out, "  dwhctl cluster create   Create the cluster")
		return nil
	},
}

func promptConfig(reader *bufio.Reader, out io.Writer) *config.Config {
	fmt.Fprintln(out, titleStyle.Render("dwhctl Configuration Setup"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "AWS")
	accessKey := prompt(reader, out, "Access key ID", "${ENV:AWS_ACCESS_KEY_ID}")
	secret := prompt(reader, out, "Secret access key", "${ENV:AWS_SECRET_ACCESS_KEY}")
	region := prompt(reader, out, "Region", "us-west-2")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Cluster")
	clusterType := prompt(reader, out, "Cluster type (single-node/multi-node)", "multi-node")
	numNodes := prompt(reader, out, "Number of nodes", "4")
	nodeType := prompt(reader, out, "Node type", "dc2.large")
	identifier := prompt(reader, out, "Cluster identifier", "dwhCluster")
	roleName := prompt(reader, out, "IAM role name", "dwhRole")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Database")
	dbName := prompt(reader, out, "Database name", "dwh")
	dbUser := prompt(reader, out, "Master user", "dwhuser")
	dbPassword := prompt(reader, out, "Master password", "${ENV:DWH_DB_PASSWORD}")
	dbPort := prompt(reader, out, "Port", "5439")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Source data")
	logData := prompt(reader, out, "Event log location", "s3://udacity-dend/log_data")
	logJSONPath := prompt(reader, out, "Event log JSONPaths file", "s3://udacity-dend/log_json_path.json")
	songData := prompt(reader, out, "Song data location", "s3://udacity-dend/song_data")
	fmt.Fprintln(out)

	return &config.Config{
		Version: config.CurrentVersion,
		Cluster: config.ClusterConfig{
			AccessKey:         accessKey,
			Secret:            secret,
			Region:            region,
			ClusterType:       clusterType,
			NumNodes:          numNodes,
			NodeType:          nodeType,
			IAMRoleName:       roleName,
			ClusterIdentifier: identifier,
			DBName:            dbName,
			DBUser:            dbUser,
			DBPassword:        dbPassword,
			DBPort:            dbPort,
		},
		S3: config.S3Config{
			LogData:     logData,
			LogJSONPath: logJSONPath,
			SongData:    songData,
		},
	}
}

func prompt(reader *bufio.Reader, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
