package aws

import "context"

// ClusterClient creates, observes and removes the warehouse cluster and
// opens its network boundary.
type ClusterClient interface {
	CreateCluster(ctx context.Context, spec ClusterSpec) error
	DescribeCluster(ctx context.Context, identifier string) (*ClusterDescriptor, error)
	DeleteCluster(ctx context.Context, identifier string) error
	AuthorizeIngress(ctx context.Context, vpcID string, port int32) error
}

// RoleClient manages the IAM role the cluster assumes to read from S3.
type RoleClient interface {
	CreateRole(ctx context.Context, name string) error
	AttachRolePolicy(ctx context.Context, name, policyARN string) error
	GetRoleARN(ctx context.Context, name string) (string, error)
	DetachRolePolicy(ctx context.Context, name, policyARN string) error
	DeleteRole(ctx context.Context, name string) error
}

// Client defines every AWS operation the tool needs.
type Client interface {
	ClusterClient
	RoleClient
	VerifyCredentials(ctx context.Context) (*CallerIdentity, error)
	CountObjects(ctx context.Context, bucket, prefix string) (int, error)
}

// CallerIdentity holds AWS STS caller identity information.
type CallerIdentity struct {
	Account string
	ARN     string
	UserID  string
}

// ClusterSpec describes the cluster to create.
type ClusterSpec struct {
	Identifier     string
	ClusterType    string // single-node or multi-node
	NodeType       string
	NumberOfNodes  int32
	DBName         string
	MasterUsername string
	MasterPassword string
	Port           int32
	IAMRoleARNs    []string
}

// ClusterStatus is the lower-cased Redshift cluster status.
type ClusterStatus string

const (
	StatusCreating  ClusterStatus = "creating"
	StatusAvailable ClusterStatus = "available"
	StatusModifying ClusterStatus = "modifying"
	StatusDeleting  ClusterStatus = "deleting"
	StatusDeleted   ClusterStatus = "deleted"
	StatusFailed    ClusterStatus = "failed"

	// Terminal error states reported by Redshift.
	StatusHardwareFailure        ClusterStatus = "hardware-failure"
	StatusIncompatibleHSM        ClusterStatus = "incompatible-hsm"
	StatusIncompatibleNetwork    ClusterStatus = "incompatible-network"
	StatusIncompatibleParameters ClusterStatus = "incompatible-parameters"
	StatusIncompatibleRestore    ClusterStatus = "incompatible-restore"
	StatusStorageFull            ClusterStatus = "storage-full"
)

// IsFailed reports whether the cluster reached a state it will not leave on
// its own.
func (s ClusterStatus) IsFailed() bool {
	switch s {
	case StatusFailed, StatusHardwareFailure, StatusIncompatibleHSM, StatusIncompatibleNetwork,
		StatusIncompatibleParameters, StatusIncompatibleRestore, StatusStorageFull:
		return true
	}
	return false
}

// Endpoint is the address clients connect to once the cluster is available.
type Endpoint struct {
	Address string
	Port    int32
}

// ClusterDescriptor is a point-in-time view of the remote cluster.
type ClusterDescriptor struct {
	Identifier string
	Status     ClusterStatus
	Endpoint   *Endpoint // nil until the cluster is available
	VpcID      string
	RoleARNs   []string
}
