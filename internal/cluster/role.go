package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/sparkify/dwhctl/internal/aws"
)

// EnsureRole creates the role the cluster assumes for S3 access. A role that
// already exists is reused; any other failure is returned.
func (c *Controller) EnsureRole(ctx context.Context, name string) error {
	err := c.client.CreateRole(ctx, name)
	if errors.Is(err, aws.ErrAlreadyExists) {
		c.logger.Warn("role already exists, continuing", "role", name)
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("created role", "role", name)
	return nil
}

// AttachPolicy attaches the S3 read-only policy to the role.
func (c *Controller) AttachPolicy(ctx context.Context, name string) error {
	if err := c.client.AttachRolePolicy(ctx, name, S3ReadOnlyPolicyARN); err != nil {
		return err
	}
	c.logger.Info("attached policy", "role", name, "policy", S3ReadOnlyPolicyARN)
	return nil
}

// RoleARN resolves the role name to its ARN.
func (c *Controller) RoleARN(ctx context.Context, name string) (string, error) {
	arn, err := c.client.GetRoleARN(ctx, name)
	if err != nil {
		return "", err
	}
	c.logger.Info("resolved role", "role", name, "arn", arn)
	return arn, nil
}

// DeleteRole detaches the S3 policy and deletes the role. Both steps are
// attempted; a step whose target is already gone counts as done.
func (c *Controller) DeleteRole(ctx context.Context, name string) error {
	var errs []error

	if err := c.client.DetachRolePolicy(ctx, name, S3ReadOnlyPolicyARN); err != nil && !errors.Is(err, aws.ErrNotFound) {
		errs = append(errs, err)
	}
	if err := c.client.DeleteRole(ctx, name); err != nil && !errors.Is(err, aws.ErrNotFound) {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("role %s: %w: %w", name, ErrCleanupIncomplete, errors.Join(errs...))
	}
	c.logger.Info("deleted role and policy attachment", "role", name)
	return nil
}
