package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sparkify/dwhctl/internal/aws"
)

func TestEnsureRole(t *testing.T) {
	mock := aws.NewMockClient()
	c, _ := newTestController(mock, 0, nil)

	if err := c.EnsureRole(context.Background(), "dwhRole"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.CreatedRoles) != 1 || mock.CreatedRoles[0] != "dwhRole" {
		t.Errorf("created roles = %v", mock.CreatedRoles)
	}
}

func TestEnsureRole_AlreadyExists(t *testing.T) {
	mock := aws.NewMockClient()
	mock.CreateRoleErr = fmt.Errorf("creating role dwhRole: %w", aws.ErrAlreadyExists)
	c, _ := newTestController(mock, 0, nil)

	if err := c.EnsureRole(context.Background(), "dwhRole"); err != nil {
		t.Fatalf("already-exists should be absorbed: %v", err)
	}
}

func TestEnsureRole_OtherErrorIsFatal(t *testing.T) {
	mock := aws.NewMockClient()
	mock.CreateRoleErr = errors.New("creating role dwhRole: AccessDenied")
	c, _ := newTestController(mock, 0, nil)

	if err := c.EnsureRole(context.Background(), "dwhRole"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAttachPolicy(t *testing.T) {
	mock := aws.NewMockClient()
	c, _ := newTestController(mock, 0, nil)

	if err := c.AttachPolicy(context.Background(), "dwhRole"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "dwhRole:" + S3ReadOnlyPolicyARN
	if len(mock.AttachedPolicies) != 1 || mock.AttachedPolicies[0] != want {
		t.Errorf("attached = %v, want [%s]", mock.AttachedPolicies, want)
	}
}

func TestRoleARN(t *testing.T) {
	mock := aws.NewMockClient()
	c, _ := newTestController(mock, 0, nil)

	arn, err := c.RoleARN(context.Background(), "dwhRole")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arn != mock.RoleARN {
		t.Errorf("arn = %q, want %q", arn, mock.RoleARN)
	}
}

func TestDeleteRole(t *testing.T) {
	mock := aws.NewMockClient()
	c, _ := newTestController(mock, 0, nil)

	if err := c.DeleteRole(context.Background(), "dwhRole"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.DetachedPolicies) != 1 {
		t.Errorf("expected policy detached, got %v", mock.DetachedPolicies)
	}
	if len(mock.DeletedRoles) != 1 || mock.DeletedRoles[0] != "dwhRole" {
		t.Errorf("deleted roles = %v", mock.DeletedRoles)
	}
}

func TestDeleteRole_AlreadyGone(t *testing.T) {
	mock := aws.NewMockClient()
	mock.DetachPolicyErr = fmt.Errorf("detaching policy: %w", aws.ErrNotFound)
	mock.DeleteRoleErr = fmt.Errorf("deleting role: %w", aws.ErrNotFound)
	c, _ := newTestController(mock, 0, nil)

	if err := c.DeleteRole(context.Background(), "dwhRole"); err != nil {
		t.Fatalf("not-found should count as done: %v", err)
	}
}

func TestDeleteRole_PartialFailure(t *testing.T) {
	mock := aws.NewMockClient()
	mock.DetachPolicyErr = errors.New("detaching policy: Throttling")
	c, _ := newTestController(mock, 0, nil)

	err := c.DeleteRole(context.Background(), "dwhRole")
	if !errors.Is(err, ErrCleanupIncomplete) {
		t.Fatalf("expected ErrCleanupIncomplete, got %v", err)
	}
	// delete is still attempted after a failed detach
	if len(mock.DeletedRoles) != 1 {
		t.Errorf("expected role delete to be attempted, got %v", mock.DeletedRoles)
	}
}
