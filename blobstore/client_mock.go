package blobstore

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client is an in-memory S3Client fake, narrowed to match the
// PutObject/GetObject/ListObjectsV2 surface client.go declares. ListObjectsV2
// honors Delimiter the way real S3 does (grouping everything past the first
// delimiter after Prefix into CommonPrefixes), since Store.ListRunIds relies
// on that behavior.
type MockS3Client struct {
	Objects map[string]*MockS3Object
	Err     error

	PutObjectCalled     bool
	GetObjectCalled     bool
	ListObjectsV2Called bool
	LastBucket          string
	LastObjectKey       string
}

// MockS3Object is one stored object's content.
type MockS3Object struct {
	Key     string
	Content []byte
}

// NewMockS3Client creates a new mock S3 client.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{Objects: make(map[string]*MockS3Object)}
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}

	var content []byte
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
		content = data
	}

	if params.Key != nil {
		m.LastObjectKey = *params.Key
		m.Objects[*params.Key] = &MockS3Object{Key: *params.Key, Content: content}
	}

	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}

	if params.Key != nil {
		m.LastObjectKey = *params.Key
		if obj, ok := m.Objects[*params.Key]; ok {
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(obj.Content)))}, nil
		}
	}
	return nil, &types.NoSuchKey{}
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.ListObjectsV2Called = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}

	prefix := ""
	if params.Prefix != nil {
		prefix = *params.Prefix
	}
	delimiter := ""
	if params.Delimiter != nil {
		delimiter = *params.Delimiter
	}

	var contents []types.Object
	seenPrefixes := map[string]bool{}
	var commonPrefixes []types.CommonPrefix

	for key := range m.Objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					commonPrefixes = append(commonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		contents = append(contents, types.Object{Key: aws.String(key)})
	}

	return &s3.ListObjectsV2Output{
		Contents:       contents,
		CommonPrefixes: commonPrefixes,
		IsTruncated:    aws.Bool(false),
	}, nil
}
