package aws

import (
	"context"
	"fmt"
	"sort"
)

// PreflightResult holds the outcome of the pre-provisioning checks.
type PreflightResult struct {
	Identity *CallerIdentity `yaml:"identity,omitempty"`
	Sources  []SourceCheck   `yaml:"sources"`
	Errors   []string        `yaml:"errors,omitempty"`
}

// SourceCheck records whether one S3 dataset is readable and non-empty.
type SourceCheck struct {
	Name      string `yaml:"name"`
	URI       string `yaml:"uri"`
	Reachable bool   `yaml:"reachable"`
	Objects   int    `yaml:"objects"`
}

// OK reports whether every check passed.
func (r *PreflightResult) OK() bool {
	return len(r.Errors) == 0
}

// RunPreflight verifies the credentials and that each named S3 source has at
// least one object. Failed checks are collected in Errors; only a credential
// failure is returned as an error since nothing else can be checked without it.
func RunPreflight(ctx context.Context, client Client, sources map[string]string) (*PreflightResult, error) {
	identity, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}
	result := &PreflightResult{Identity: identity}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := SourceCheck{Name: name, URI: sources[name]}

		loc, err := ParseS3URI(sources[name])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			result.Sources = append(result.Sources, check)
			continue
		}

		n, err := client.CountObjects(ctx, loc.Bucket, loc.Prefix)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		case n == 0:
			check.Reachable = true
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no objects under %s", name, loc.URI()))
		default:
			check.Reachable = true
			check.Objects = n
		}
		result.Sources = append(result.Sources, check)
	}

	return result, nil
}
