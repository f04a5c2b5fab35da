package aws

import (
	"fmt"
	"strings"
)

// S3Location is a bucket and key prefix.
type S3Location struct {
	Bucket string
	Prefix string
}

// URI renders the location back as an s3:// URI.
func (l S3Location) URI() string {
	if l.Prefix == "" {
		return fmt.Sprintf("s3://%s", l.Bucket)
	}
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Prefix)
}

// ParseS3URI parses an s3://bucket/prefix URI. Surrounding single quotes are
// accepted because COPY statements take the location as a quoted literal and
// settings are often stored that way.
func ParseS3URI(uri string) (S3Location, error) {
	trimmed := strings.Trim(strings.TrimSpace(uri), "'")
	rest, ok := strings.CutPrefix(trimmed, "s3://")
	if !ok {
		return S3Location{}, fmt.Errorf("invalid S3 URI %q: missing s3:// scheme", uri)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return S3Location{}, fmt.Errorf("invalid S3 URI %q: missing bucket", uri)
	}
	return S3Location{Bucket: bucket, Prefix: prefix}, nil
}
