package aws

import (
	"context"
	"fmt"
)

// MockDescribe is one scripted DescribeCluster answer.
type MockDescribe struct {
	Status ClusterStatus
	Err    error
}

// IngressCall records one AuthorizeIngress invocation.
type IngressCall struct {
	VpcID string
	Port  int32
}

// MockClient is a test double for the Client interface.
type MockClient struct {
	Identity    *CallerIdentity
	IdentityErr error

	CreateClusterErr error
	// DescribeSequence is consumed one entry per DescribeCluster call; the
	// last entry repeats once the sequence is exhausted.
	DescribeSequence []MockDescribe
	Endpoint         Endpoint
	VpcID            string
	DeleteClusterErr error
	IngressErr       error

	RoleARN         string
	CreateRoleErr   error
	AttachPolicyErr error
	GetRoleErr      error
	DetachPolicyErr error
	DeleteRoleErr   error

	Objects    map[string]int // "bucket/prefix" → object count
	ObjectsErr error

	// Track calls
	CreatedSpec      *ClusterSpec
	DescribeCalls    int
	DeletedClusters  []string
	IngressCalls     []IngressCall
	CreatedRoles     []string
	AttachedPolicies []string // "role:policyARN"
	DetachedPolicies []string
	DeletedRoles     []string
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new MockClient with default values.
func NewMockClient() *MockClient {
	return &MockClient{
		Identity: &CallerIdentity{
			Account: "123456789012",
			ARN:     "arn:aws:iam::123456789012:user/test",
			UserID:  "AIDA12345",
		},
		Endpoint: Endpoint{
			Address: "test-cluster.abc123xyz.us-west-2.redshift.amazonaws.com",
			Port:    5439,
		},
		VpcID:   "vpc-0abc123",
		RoleARN: "arn:aws:iam::123456789012:role/dwhRole",
		Objects: make(map[string]int),
	}
}

func (m *MockClient) VerifyCredentials(_ context.Context) (*CallerIdentity, error) {
	return m.Identity, m.IdentityErr
}

func (m *MockClient) CreateCluster(_ context.Context, spec ClusterSpec) error {
	m.CreatedSpec = &spec
	return m.CreateClusterErr
}

func (m *MockClient) DescribeCluster(_ context.Context, identifier string) (*ClusterDescriptor, error) {
	m.DescribeCalls++
	if len(m.DescribeSequence) == 0 {
		return nil, fmt.Errorf("describing cluster %s: %w", identifier, ErrNotFound)
	}

	i := m.DescribeCalls - 1
	if i >= len(m.DescribeSequence) {
		i = len(m.DescribeSequence) - 1
	}
	step := m.DescribeSequence[i]
	if step.Err != nil {
		return nil, step.Err
	}

	d := &ClusterDescriptor{
		Identifier: identifier,
		Status:     step.Status,
		VpcID:      m.VpcID,
		RoleARNs:   []string{m.RoleARN},
	}
	if step.Status == StatusAvailable {
		ep := m.Endpoint
		d.Endpoint = &ep
	}
	return d, nil
}

func (m *MockClient) DeleteCluster(_ context.Context, identifier string) error {
	if m.DeleteClusterErr != nil {
		return m.DeleteClusterErr
	}
	m.DeletedClusters = append(m.DeletedClusters, identifier)
	return nil
}

func (m *MockClient) AuthorizeIngress(_ context.Context, vpcID string, port int32) error {
	m.IngressCalls = append(m.IngressCalls, IngressCall{VpcID: vpcID, Port: port})
	return m.IngressErr
}

func (m *MockClient) CreateRole(_ context.Context, name string) error {
	if m.CreateRoleErr != nil {
		return m.CreateRoleErr
	}
	m.CreatedRoles = append(m.CreatedRoles, name)
	return nil
}

func (m *MockClient) AttachRolePolicy(_ context.Context, name, policyARN string) error {
	if m.AttachPolicyErr != nil {
		return m.AttachPolicyErr
	}
	m.AttachedPolicies = append(m.AttachedPolicies, name+":"+policyARN)
	return nil
}

func (m *MockClient) GetRoleARN(_ context.Context, _ string) (string, error) {
	if m.GetRoleErr != nil {
		return "", m.GetRoleErr
	}
	return m.RoleARN, nil
}

func (m *MockClient) DetachRolePolicy(_ context.Context, name, policyARN string) error {
	if m.DetachPolicyErr != nil {
		return m.DetachPolicyErr
	}
	m.DetachedPolicies = append(m.DetachedPolicies, name+":"+policyARN)
	return nil
}

func (m *MockClient) DeleteRole(_ context.Context, name string) error {
	if m.DeleteRoleErr != nil {
		return m.DeleteRoleErr
	}
	m.DeletedRoles = append(m.DeletedRoles, name)
	return nil
}

func (m *MockClient) CountObjects(_ context.Context, bucket, prefix string) (int, error) {
	if m.ObjectsErr != nil {
		return 0, m.ObjectsErr
	}
	return m.Objects[bucket+"/"+prefix], nil
}
