package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sparkify/dwhctl/internal/aws"
)

func TestCreate(t *testing.T) {
	mock := aws.NewMockClient()
	mock.DescribeSequence = describeSeq(aws.StatusCreating, aws.StatusAvailable)

	c, sleeps := newTestController(mock, 0, nil)
	settings := testSettings()

	info, err := c.Create(context.Background(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.CreatedRoles) != 1 || len(mock.AttachedPolicies) != 1 {
		t.Errorf("role not prepared: created=%v attached=%v", mock.CreatedRoles, mock.AttachedPolicies)
	}
	if mock.CreatedSpec == nil || len(mock.CreatedSpec.IAMRoleARNs) != 1 || mock.CreatedSpec.IAMRoleARNs[0] != mock.RoleARN {
		t.Errorf("cluster request did not carry the role ARN: %+v", mock.CreatedSpec)
	}
	if len(*sleeps) != 1 {
		t.Errorf("expected 1 sleep, got %d", len(*sleeps))
	}
	if len(mock.IngressCalls) != 1 {
		t.Errorf("expected 1 ingress call, got %d", len(mock.IngressCalls))
	}
	if info.Address != mock.Endpoint.Address || settings.Host != info.Address {
		t.Errorf("host = %q, info = %+v", settings.Host, info)
	}
	if settings.RoleARN != mock.RoleARN {
		t.Errorf("role ARN = %q", settings.RoleARN)
	}
}

func TestCreate_ExistingResourcesConverge(t *testing.T) {
	mock := aws.NewMockClient()
	mock.CreateRoleErr = fmt.Errorf("creating role: %w", aws.ErrAlreadyExists)
	mock.CreateClusterErr = fmt.Errorf("creating cluster: %w", aws.ErrAlreadyExists)
	mock.IngressErr = fmt.Errorf("authorizing ingress: %w", aws.ErrRuleExists)
	mock.DescribeSequence = describeSeq(aws.StatusAvailable)

	c, _ := newTestController(mock, 0, nil)
	if _, err := c.Create(context.Background(), testSettings()); err != nil {
		t.Fatalf("re-running create should converge: %v", err)
	}
}

func TestCreate_RoleFailureStopsBeforeCluster(t *testing.T) {
	mock := aws.NewMockClient()
	mock.AttachPolicyErr = errors.New("attaching policy: AccessDenied")

	c, _ := newTestController(mock, 0, nil)
	if _, err := c.Create(context.Background(), testSettings()); err == nil {
		t.Fatal("expected error")
	}
	if mock.CreatedSpec != nil {
		t.Error("cluster should not be requested after a role failure")
	}
}
