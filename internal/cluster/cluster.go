// Package cluster drives the warehouse cluster through its lifecycle:
// request, wait until available, open network access, and tear down.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sparkify/dwhctl/internal/aws"
	"github.com/sparkify/dwhctl/internal/config"
)

// S3ReadOnlyPolicyARN is the managed policy granting the cluster read access
// to the source datasets.
const S3ReadOnlyPolicyARN = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"

var (
	// ErrPollTimeout is returned when the cluster does not reach the target
	// status within the configured number of attempts.
	ErrPollTimeout = errors.New("cluster did not converge")
	// ErrClusterFailed is returned when the cluster enters a terminal error state.
	ErrClusterFailed = errors.New("cluster entered a failed state")
	// ErrClusterAbsent is returned by Teardown when there was nothing to delete.
	// Callers normally treat it as success.
	ErrClusterAbsent = errors.New("cluster does not exist")
	// ErrCleanupIncomplete is returned when role cleanup only partly succeeded.
	ErrCleanupIncomplete = errors.New("role cleanup incomplete")
)

// ClusterInfo is what the rest of the workflow needs from a ready cluster.
type ClusterInfo struct {
	Identifier string
	Address    string
	Port       int32
	RoleARN    string
	VpcID      string
}

// Controller runs the cluster and role lifecycle against a cloud client.
type Controller struct {
	client aws.Client
	logger *slog.Logger
	poll   config.PollConfig

	// sleep waits between polls; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a controller. Zero poll settings fall back to 30s/10s
// intervals and 120 attempts.
func New(client aws.Client, poll config.PollConfig, logger *slog.Logger) *Controller {
	if poll.ReadyInterval <= 0 {
		poll.ReadyInterval = 30 * time.Second
	}
	if poll.DeleteInterval <= 0 {
		poll.DeleteInterval = 10 * time.Second
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = 120
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client: client,
		logger: logger,
		poll:   poll,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Provision requests the cluster described by settings and blocks until it
// is available. An already-existing cluster with the same identifier is
// adopted rather than treated as an error. On success the endpoint address
// and role ARN are recorded in settings.
func (c *Controller) Provision(ctx context.Context, settings *config.ClusterConfig) (*ClusterInfo, error) {
	spec, err := specFrom(settings)
	if err != nil {
		return nil, err
	}

	log := c.logger.With("cluster", spec.Identifier)
	log.Info("requesting cluster", "type", spec.ClusterType, "node_type", spec.NodeType, "nodes", spec.NumberOfNodes)

	if err := c.client.CreateCluster(ctx, spec); err != nil {
		if !errors.Is(err, aws.ErrAlreadyExists) {
			return nil, err
		}
		log.Warn("cluster already exists, continuing", "error", err)
	}

	desc, err := c.waitAvailable(ctx, spec.Identifier)
	if err != nil {
		return nil, err
	}
	if desc.Endpoint == nil {
		return nil, fmt.Errorf("cluster %s is available but reports no endpoint", spec.Identifier)
	}

	info := &ClusterInfo{
		Identifier: spec.Identifier,
		Address:    desc.Endpoint.Address,
		Port:       desc.Endpoint.Port,
		VpcID:      desc.VpcID,
	}
	if len(desc.RoleARNs) > 0 {
		info.RoleARN = desc.RoleARNs[0]
	}

	settings.Host = info.Address
	if info.RoleARN != "" {
		settings.RoleARN = info.RoleARN
	}

	log.Info("cluster available", "endpoint", fmt.Sprintf("%s:%d", info.Address, info.Port), "role_arn", info.RoleARN)
	return info, nil
}

func specFrom(settings *config.ClusterConfig) (aws.ClusterSpec, error) {
	nodes, err := strconv.ParseInt(settings.NumNodes, 10, 32)
	if err != nil || nodes < 1 {
		return aws.ClusterSpec{}, fmt.Errorf("%w: num_nodes %q is not a positive integer", config.ErrInvalidConfig, settings.NumNodes)
	}
	port, err := parsePort(settings.DBPort)
	if err != nil {
		return aws.ClusterSpec{}, err
	}

	spec := aws.ClusterSpec{
		Identifier:     settings.ClusterIdentifier,
		ClusterType:    settings.ClusterType,
		NodeType:       settings.NodeType,
		NumberOfNodes:  int32(nodes),
		DBName:         settings.DBName,
		MasterUsername: settings.DBUser,
		MasterPassword: settings.DBPassword,
		Port:           port,
	}
	if settings.RoleARN != "" {
		spec.IAMRoleARNs = []string{settings.RoleARN}
	}
	return spec, nil
}

func parsePort(s string) (int32, error) {
	port, err := strconv.ParseInt(s, 10, 32)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: db_port %q is not a valid port", config.ErrInvalidConfig, s)
	}
	return int32(port), nil
}

// waitAvailable polls until the cluster reports available. Each non-available
// observation is followed by one sleep of ReadyInterval.
func (c *Controller) waitAvailable(ctx context.Context, identifier string) (*aws.ClusterDescriptor, error) {
	log := c.logger.With("cluster", identifier)

	for attempt := 1; attempt <= c.poll.MaxAttempts; attempt++ {
		desc, err := c.client.DescribeCluster(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("polling cluster status: %w", err)
		}

		switch {
		case desc.Status == aws.StatusAvailable:
			return desc, nil
		case desc.Status.IsFailed():
			return nil, fmt.Errorf("cluster %s: %w (status %s)", identifier, ErrClusterFailed, desc.Status)
		}

		log.Info("cluster is still being prepared", "status", desc.Status, "attempt", attempt)
		if attempt == c.poll.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.poll.ReadyInterval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("cluster %s not available after %d attempts: %w",
		identifier, c.poll.MaxAttempts, ErrPollTimeout)
}

// AttachNetworkAccess opens the database port on the cluster's default
// security group. An existing identical rule is not an error.
func (c *Controller) AttachNetworkAccess(ctx context.Context, info *ClusterInfo, settings *config.ClusterConfig) error {
	port, err := parsePort(settings.DBPort)
	if err != nil {
		return err
	}
	if info.VpcID == "" {
		return fmt.Errorf("cluster %s reports no VPC", info.Identifier)
	}

	err = c.client.AuthorizeIngress(ctx, info.VpcID, port)
	if errors.Is(err, aws.ErrRuleExists) {
		c.logger.Warn("ingress rule already exists, continuing", "vpc", info.VpcID, "port", port)
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("opened ingress", "vpc", info.VpcID, "port", port, "cidr", "0.0.0.0/0")
	return nil
}

// Teardown deletes the cluster without a final snapshot and blocks while it
// is deleting. ErrClusterAbsent is returned if the cluster was already gone.
func (c *Controller) Teardown(ctx context.Context, identifier string) error {
	log := c.logger.With("cluster", identifier)

	if err := c.client.DeleteCluster(ctx, identifier); err != nil {
		if errors.Is(err, aws.ErrNotFound) {
			log.Info("cluster does not exist anymore")
			return fmt.Errorf("deleting cluster %s: %w", identifier, ErrClusterAbsent)
		}
		return err
	}
	log.Info("delete requested")

	for attempt := 1; attempt <= c.poll.MaxAttempts; attempt++ {
		desc, err := c.client.DescribeCluster(ctx, identifier)
		if errors.Is(err, aws.ErrNotFound) {
			log.Info("cluster deleted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("polling cluster status: %w", err)
		}
		if desc.Status != aws.StatusDeleting {
			log.Info("cluster left deleting state", "status", desc.Status)
			return nil
		}

		log.Info("cluster is still being deleted", "status", desc.Status, "attempt", attempt)
		if attempt == c.poll.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.poll.DeleteInterval); err != nil {
			return err
		}
	}

	return fmt.Errorf("cluster %s still deleting after %d attempts: %w",
		identifier, c.poll.MaxAttempts, ErrPollTimeout)
}

// Status returns the current descriptor of the cluster.
func (c *Controller) Status(ctx context.Context, identifier string) (*aws.ClusterDescriptor, error) {
	return c.client.DescribeCluster(ctx, identifier)
}
