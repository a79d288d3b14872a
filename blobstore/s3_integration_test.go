//go:build integration

package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simlattice/indexer/simtypes"
)

// createTestBucket provisions the bucket a fresh MinIO container starts
// without. Store itself never creates buckets (spec treats a misconfigured
// bucket as a startup failure, not something to auto-provision), so tests
// reach past it with a minimal direct client that only this test file needs.
func createTestBucket(ctx context.Context, cfg Config) error {
	client, err := rawMinioClient(ctx, cfg)
	if err != nil {
		return err
	}
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	return err
}

func rawMinioClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	}), nil
}

func setupMinioContainer(t *testing.T) (Config, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "testkey",
			"MINIO_ROOT_PASSWORD": "testsecret",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := Config{
		Bucket:       "indexer-test",
		Region:       "us-east-1",
		Endpoint:     "http://" + host + ":" + port.Port(),
		AccessKey:    "testkey",
		SecretKey:    "testsecret",
		ResourceName: "blobs",
	}

	return cfg, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}

func TestIntegration_WriteReadBatchAgainstMinio(t *testing.T) {
	cfg, cleanup := setupMinioContainer(t)
	defer cleanup()
	ctx := context.Background()

	store, err := Open(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, createTestBucket(ctx, cfg))

	records := []simtypes.TickRecord{{RunID: "run1", TickNumber: 5}}
	path, err := store.WriteBatch(ctx, "run1", 5, 5, records)
	require.NoError(t, err)

	got, err := store.ReadBatch(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(5), got[0].TickNumber)
}

func TestIntegration_ListRunIdsAgainstMinio(t *testing.T) {
	cfg, cleanup := setupMinioContainer(t)
	defer cleanup()
	ctx := context.Background()

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, createTestBucket(ctx, cfg))

	_, err = store.WriteMessage(ctx, "run-a", "metadata", simtypes.SimulationMetadata{RunID: "run-a"})
	require.NoError(t, err)
	_, err = store.WriteMessage(ctx, "run-b", "metadata", simtypes.SimulationMetadata{RunID: "run-b"})
	require.NoError(t, err)

	runIDs, err := store.ListRunIds(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, runIDs, 2)
}
