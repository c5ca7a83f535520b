package storage

import (
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7/pkg/policy"
	"github.com/minio/minio-go/v7/pkg/set"
)

const policyVersion = "2012-10-17"

// PublicReadPolicy grants anonymous s3:GetObject on every object in bucket
// and nothing else.
func PublicReadPolicy(bucket string) policy.BucketAccessPolicy {
	return policy.BucketAccessPolicy{
		Version: policyVersion,
		Statements: []policy.Statement{
			{
				Sid:       "PublicRead",
				Effect:    "Allow",
				Actions:   set.CreateStringSet("s3:GetObject"),
				Principal: policy.User{AWS: set.CreateStringSet("*")},
				Resources: set.CreateStringSet(fmt.Sprintf("arn:aws:s3:::%s/*", bucket)),
			},
		},
	}
}

// PublicReadPolicyJSON renders PublicReadPolicy in the backend policy language
func PublicReadPolicyJSON(bucket string) (string, error) {
	doc, err := json.Marshal(PublicReadPolicy(bucket))
	if err != nil {
		return "", fmt.Errorf("marshal bucket policy: %w", err)
	}
	return string(doc), nil
}
