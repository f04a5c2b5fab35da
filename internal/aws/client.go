package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Credentials selects how the SDK authenticates. Static keys win over the
// shared profile; with neither set the default chain is used.
type Credentials struct {
	AccessKey string
	Secret    string
	Profile   string
	Region    string
}

// RealClient implements Client using the AWS SDK v2.
type RealClient struct {
	redshiftClient *redshift.Client
	iamClient      *iam.Client
	ec2Client      *ec2.Client
	stsClient      *sts.Client
	s3Client       *s3.Client
}

var _ Client = (*RealClient)(nil)

// NewRealClient creates a new AWS client for the given credentials.
func NewRealClient(ctx context.Context, creds Credentials) (*RealClient, error) {
	var opts []func(*awsconfig.LoadOptions) error

	switch {
	case creds.AccessKey != "" && creds.Secret != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.Secret, "")))
	case creds.Profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(creds.Profile))
	}
	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &RealClient{
		redshiftClient: redshift.NewFromConfig(cfg),
		iamClient:      iam.NewFromConfig(cfg),
		ec2Client:      ec2.NewFromConfig(cfg),
		stsClient:      sts.NewFromConfig(cfg),
		s3Client:       s3.NewFromConfig(cfg),
	}, nil
}

// VerifyCredentials checks the current AWS credentials using STS.
func (c *RealClient) VerifyCredentials(ctx context.Context) (*CallerIdentity, error) {
	out, err := c.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("getting caller identity: %w", err)
	}

	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// CreateCluster requests a new Redshift cluster.
func (c *RealClient) CreateCluster(ctx context.Context, spec ClusterSpec) error {
	input := &redshift.CreateClusterInput{
		ClusterIdentifier:  aws.String(spec.Identifier),
		ClusterType:        aws.String(spec.ClusterType),
		NodeType:           aws.String(spec.NodeType),
		DBName:             aws.String(spec.DBName),
		MasterUsername:     aws.String(spec.MasterUsername),
		MasterUserPassword: aws.String(spec.MasterPassword),
		IamRoles:           spec.IAMRoleARNs,
		Tags: []rstypes.Tag{
			{Key: aws.String("managed-by"), Value: aws.String("dwhctl")},
		},
	}
	// NumberOfNodes is rejected for single-node clusters.
	if spec.ClusterType != "single-node" {
		input.NumberOfNodes = aws.Int32(spec.NumberOfNodes)
	}
	if spec.Port != 0 {
		input.Port = aws.Int32(spec.Port)
	}

	out, err := c.redshiftClient.CreateCluster(ctx, input)
	if err != nil {
		return wrapError(fmt.Sprintf("creating cluster %s", spec.Identifier), err)
	}
	if out.Cluster == nil {
		return fmt.Errorf("creating cluster %s: acknowledgment carried no cluster", spec.Identifier)
	}
	return nil
}

// DescribeCluster returns the current view of a cluster.
func (c *RealClient) DescribeCluster(ctx context.Context, identifier string) (*ClusterDescriptor, error) {
	out, err := c.redshiftClient.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(identifier),
	})
	if err != nil {
		return nil, wrapError(fmt.Sprintf("describing cluster %s", identifier), err)
	}
	if len(out.Clusters) == 0 {
		return nil, fmt.Errorf("describing cluster %s: %w", identifier, ErrNotFound)
	}
	return descriptorFrom(out.Clusters[0]), nil
}

func descriptorFrom(cl rstypes.Cluster) *ClusterDescriptor {
	d := &ClusterDescriptor{
		Identifier: aws.ToString(cl.ClusterIdentifier),
		Status:     ClusterStatus(strings.ToLower(aws.ToString(cl.ClusterStatus))),
		VpcID:      aws.ToString(cl.VpcId),
	}
	if cl.Endpoint != nil && cl.Endpoint.Address != nil {
		d.Endpoint = &Endpoint{
			Address: aws.ToString(cl.Endpoint.Address),
			Port:    aws.ToInt32(cl.Endpoint.Port),
		}
	}
	for _, r := range cl.IamRoles {
		d.RoleARNs = append(d.RoleARNs, aws.ToString(r.IamRoleArn))
	}
	return d
}

// DeleteCluster deletes a cluster without taking a final snapshot.
func (c *RealClient) DeleteCluster(ctx context.Context, identifier string) error {
	_, err := c.redshiftClient.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(identifier),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	if err != nil {
		return wrapError(fmt.Sprintf("deleting cluster %s", identifier), err)
	}
	return nil
}

// AuthorizeIngress opens TCP access to port from anywhere on the default
// security group of the VPC.
func (c *RealClient) AuthorizeIngress(ctx context.Context, vpcID string, port int32) error {
	groups, err := c.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{"default"}},
		},
	})
	if err != nil {
		return wrapError(fmt.Sprintf("looking up default security group of %s", vpcID), err)
	}
	if len(groups.SecurityGroups) == 0 {
		return fmt.Errorf("looking up default security group of %s: %w", vpcID, ErrNotFound)
	}
	sg := groups.SecurityGroups[0]

	_, err = c.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: sg.GroupId,
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges: []ec2types.IpRange{{
				CidrIp:      aws.String("0.0.0.0/0"),
				Description: aws.String("dwhctl warehouse access"),
			}},
		}},
	})
	if err != nil {
		return wrapError(fmt.Sprintf("authorizing ingress on %s port %d", aws.ToString(sg.GroupId), port), err)
	}
	return nil
}

type trustPolicy struct {
	Version   string           `json:"Version"`
	Statement []trustStatement `json:"Statement"`
}

type trustStatement struct {
	Action    string            `json:"Action"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
}

// redshiftTrustPolicy lets the Redshift service assume the role.
func redshiftTrustPolicy() (string, error) {
	doc, err := json.Marshal(trustPolicy{
		Version: "2012-10-17",
		Statement: []trustStatement{{
			Action:    "sts:AssumeRole",
			Effect:    "Allow",
			Principal: map[string]string{"Service": "redshift.amazonaws.com"},
		}},
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// CreateRole creates a role the Redshift service can assume.
func (c *RealClient) CreateRole(ctx context.Context, name string) error {
	doc, err := redshiftTrustPolicy()
	if err != nil {
		return fmt.Errorf("building trust policy: %w", err)
	}

	_, err = c.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		Path:                     aws.String("/"),
		RoleName:                 aws.String(name),
		Description:              aws.String("Allows Redshift clusters to call AWS services on your behalf"),
		AssumeRolePolicyDocument: aws.String(doc),
	})
	if err != nil {
		return wrapError(fmt.Sprintf("creating role %s", name), err)
	}
	return nil
}

// AttachRolePolicy attaches a managed policy to a role.
func (c *RealClient) AttachRolePolicy(ctx context.Context, name, policyARN string) error {
	_, err := c.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return wrapError(fmt.Sprintf("attaching %s to role %s", policyARN, name), err)
	}
	return nil
}

// GetRoleARN resolves a role name to its ARN.
func (c *RealClient) GetRoleARN(ctx context.Context, name string) (string, error) {
	out, err := c.iamClient.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return "", wrapError(fmt.Sprintf("getting role %s", name), err)
	}
	if out.Role == nil {
		return "", fmt.Errorf("getting role %s: %w", name, ErrNotFound)
	}
	return aws.ToString(out.Role.Arn), nil
}

// DetachRolePolicy detaches a managed policy from a role.
func (c *RealClient) DetachRolePolicy(ctx context.Context, name, policyARN string) error {
	_, err := c.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return wrapError(fmt.Sprintf("detaching %s from role %s", policyARN, name), err)
	}
	return nil
}

// DeleteRole deletes a role. Policies must be detached first.
func (c *RealClient) DeleteRole(ctx context.Context, name string) error {
	_, err := c.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return wrapError(fmt.Sprintf("deleting role %s", name), err)
	}
	return nil
}

// CountObjects returns how many objects are listed on the first page under
// prefix. It is used to check that a source dataset is not empty.
func (c *RealClient) CountObjects(ctx context.Context, bucket, prefix string) (int, error) {
	out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(10),
	})
	if err != nil {
		return 0, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err)
	}
	return len(out.Contents), nil
}
