package cluster

import (
	"context"
	"fmt"

	"github.com/sparkify/dwhctl/internal/config"
)

// Create runs the whole create path: role, policy, cluster, network access.
// settings receives the role ARN before the cluster request and the endpoint
// address once the cluster is available.
func (c *Controller) Create(ctx context.Context, settings *config.ClusterConfig) (*ClusterInfo, error) {
	if err := c.EnsureRole(ctx, settings.IAMRoleName); err != nil {
		return nil, fmt.Errorf("creating role: %w", err)
	}
	if err := c.AttachPolicy(ctx, settings.IAMRoleName); err != nil {
		return nil, fmt.Errorf("attaching policy: %w", err)
	}
	arn, err := c.RoleARN(ctx, settings.IAMRoleName)
	if err != nil {
		return nil, fmt.Errorf("resolving role ARN: %w", err)
	}
	settings.RoleARN = arn

	info, err := c.Provision(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("provisioning cluster: %w", err)
	}

	if err := c.AttachNetworkAccess(ctx, info, settings); err != nil {
		return info, fmt.Errorf("opening network access: %w", err)
	}
	return info, nil
}
