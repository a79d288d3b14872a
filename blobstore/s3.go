package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/simlattice/indexer/simtypes"
)

// Store is the blob substrate: immutable tick-batch and metadata objects
// under an S3-compatible bucket, addressed by the path-keying scheme in
// paths.go.
type Store struct {
	client       S3Client
	uploader     *manager.Uploader
	bucket       string
	resourceName string
}

// Config configures Open, collapsing the teacher's per-provider
// (MinIO/Hetzner/AWS) endpoint + credential + region parameters into one
// struct, since all three speak the same S3 API surface here.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string // empty uses AWS's default endpoint resolution
	AccessKey    string
	SecretKey    string
	ResourceName string
}

// Open builds an S3 client from cfg, using static credentials when provided
// (for MinIO/Hetzner-style deployments) and the default credential chain
// otherwise (for in-cluster AWS access via IAM roles).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       cfg.Bucket,
		resourceName: cfg.ResourceName,
	}, nil
}

// NewWithClient wraps an already-constructed S3Client, used by tests to
// inject client_mock.go's in-memory fake without a real manager.Uploader.
func NewWithClient(client S3Client, bucket, resourceName string) *Store {
	return &Store{client: client, bucket: bucket, resourceName: resourceName}
}

// WriteBatch JSON-encodes records and writes them as one immutable object,
// returning the StoragePath a BatchInfo notification should carry. Callers
// are responsible for every record's tick number falling in
// [firstTick, lastTick]; WriteBatch only persists.
func (s *Store) WriteBatch(ctx context.Context, runID simtypes.RunID, firstTick, lastTick int64, records []simtypes.TickRecord) (simtypes.StoragePath, error) {
	body, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("blobstore: marshal batch: %w", err)
	}
	key := batchKey(runID, firstTick, lastTick)
	if err := s.put(ctx, key, body); err != nil {
		return "", err
	}
	return simtypes.StoragePath(key), nil
}

// ReadBatch reads and decodes the tick records at path.
func (s *Store) ReadBatch(ctx context.Context, path simtypes.StoragePath) ([]simtypes.TickRecord, error) {
	body, err := s.get(ctx, string(path))
	if err != nil {
		return nil, err
	}
	var records []simtypes.TickRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("blobstore: unmarshal batch %s: %w", path, err)
	}
	return records, nil
}

// WriteMessage writes a single-blob payload (e.g. SimulationMetadata) under
// runID, returning its StoragePath.
func (s *Store) WriteMessage(ctx context.Context, runID simtypes.RunID, name string, payload interface{}) (simtypes.StoragePath, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("blobstore: marshal message: %w", err)
	}
	key := messageKey(runID, name)
	if err := s.put(ctx, key, body); err != nil {
		return "", err
	}
	return simtypes.StoragePath(key), nil
}

// ReadMessage reads the blob at path and decodes it into out.
func (s *Store) ReadMessage(ctx context.Context, path simtypes.StoragePath, out interface{}) error {
	body, err := s.get(ctx, string(path))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("blobstore: unmarshal message %s: %w", path, err)
	}
	return nil
}

// ListRunIds returns every run id with at least one object written, driving
// the indexer base's run-discovery poll (spec §4.2); when since is non-zero,
// run ids that filterOlderThan judges older than since are dropped. Implemented with a
// single delimited ListObjectsV2 query over the "runs/" prefix so discovery
// costs one (paginated) list call regardless of run count, rather than a
// full-bucket scan.
func (s *Store) ListRunIds(ctx context.Context, since time.Time) ([]simtypes.RunID, error) {
	var (
		runIDs            []simtypes.RunID
		continuationToken *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(runsPrefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("blobstore: list run ids: %w", err)
		}
		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			runID, ok := runIDFromPrefix(*cp.Prefix)
			if !ok {
				continue
			}
			runIDs = append(runIDs, runID)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if since.IsZero() {
		return runIDs, nil
	}
	return filterOlderThan(runIDs, since), nil
}

// filterOlderThan drops run ids whose leading YYYYMMDD-HHMMSS.mm timestamp
// segment (the producer's documented run-id format) is older than since.
// Run ids that don't match the convention are kept rather than silently
// dropped, so a non-conforming producer degrades to "always included"
// instead of vanishing from discovery.
func filterOlderThan(runIDs []simtypes.RunID, since time.Time) []simtypes.RunID {
	out := make([]simtypes.RunID, 0, len(runIDs))
	for _, id := range runIDs {
		ts, ok := parseRunTimestamp(id)
		if !ok || !ts.Before(since) {
			out = append(out, id)
		}
	}
	return out
}

func parseRunTimestamp(id simtypes.RunID) (time.Time, bool) {
	const layout = "20060102-150405.00"
	s := string(id)
	if len(s) < len(layout) {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s[:len(layout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) put(ctx context.Context, key string, body []byte) error {
	_, err := s.uploaderOrClient().Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// uploaderFn abstracts manager.Uploader.Upload so put works whether Store
// was built with a real multipart Uploader (Open) or a plain mock client
// (NewWithClient).
type uploaderFn interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

func (s *Store) uploaderOrClient() uploaderFn {
	if s.uploader != nil {
		return s.uploader
	}
	return directPutUploader{client: s.client}
}

// directPutUploader satisfies uploaderFn with a single PutObject call, used
// when Store wraps a mock S3Client that has no multipart-upload manager.
type directPutUploader struct{ client S3Client }

func (d directPutUploader) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	_, err := d.client.PutObject(ctx, input)
	return &manager.UploadOutput{}, err
}
