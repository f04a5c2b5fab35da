package aws

import (
	"errors"
	"fmt"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/aws/smithy-go"
)

// Error categories callers branch on. Remote errors are wrapped so that both
// the category and the original SDK error stay reachable through errors.Is
// and errors.As.
var (
	ErrAlreadyExists = errors.New("resource already exists")
	ErrNotFound      = errors.New("resource not found")
	ErrRuleExists    = errors.New("security group rule already exists")
)

var errorCodes = map[string]error{
	"ClusterAlreadyExists":        ErrAlreadyExists,
	"EntityAlreadyExists":         ErrAlreadyExists,
	"ClusterNotFound":             ErrNotFound,
	"NoSuchEntity":                ErrNotFound,
	"InvalidGroup.NotFound":       ErrNotFound,
	"InvalidPermission.Duplicate": ErrRuleExists,
}

// classify maps an SDK error onto one of the package categories, or nil when
// the error is not one the workflow can absorb.
func classify(err error) error {
	var (
		clusterExists *rstypes.ClusterAlreadyExistsFault
		clusterAbsent *rstypes.ClusterNotFoundFault
		roleExists    *iamtypes.EntityAlreadyExistsException
		roleAbsent    *iamtypes.NoSuchEntityException
	)
	switch {
	case errors.As(err, &clusterExists), errors.As(err, &roleExists):
		return ErrAlreadyExists
	case errors.As(err, &clusterAbsent), errors.As(err, &roleAbsent):
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return errorCodes[apiErr.ErrorCode()]
	}
	return nil
}

// wrapError annotates err with the operation and, when it can be classified,
// with its category.
func wrapError(op string, err error) error {
	if kind := classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
