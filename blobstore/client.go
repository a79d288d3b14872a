// Package blobstore is the immutable blob substrate for tick batches,
// metadata blobs, and single-message payloads, keyed under a run id. Uses
// github.com/aws/aws-sdk-go-v2's S3 client, grounded on the teacher's
// storage package (AWS SDK v2 config/credentials/manager wiring, an
// S3Client interface for mock injection) but narrowed from a multi-cloud
// sync/upload toolkit down to the five operations the spec actually names:
// writeBatch, readBatch, writeMessage, readMessage, listRunIds.
package blobstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the subset of the AWS SDK v2 S3 client blobstore depends on,
// narrowed from the teacher's S3Client interface (which also carried
// HeadBucket/CreateBucket/HeadObject for its bucket-provisioning helpers)
// down to the read/write/list operations a tick-batch store actually uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}
