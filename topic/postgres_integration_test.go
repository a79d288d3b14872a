//go:build integration

package topic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simlattice/indexer/simtypes"
)

func setupPostgresContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	return dsn, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}

func TestIntegration_SendPollAck(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pg, err := Open(ctx, dsn, "topic")
	require.NoError(t, err)
	defer pg.Close()

	info := simtypes.BatchInfo{RunID: "run1", StoragePath: "s3://x", TickStart: 0, TickEnd: 99}
	require.NoError(t, pg.Send(ctx, SchemaBatchInfo, "run1", info))

	msg, err := pg.Poll(ctx, SchemaBatchInfo, "env-indexer")
	require.NoError(t, err)
	require.Equal(t, 1, msg.DeliveryCount)

	decoded, err := msg.DecodeBatchInfo()
	require.NoError(t, err)
	require.Equal(t, info.RunID, decoded.RunID)

	require.NoError(t, pg.Ack(ctx, msg.Token))

	_, err = pg.Poll(ctx, SchemaBatchInfo, "env-indexer")
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestIntegration_IndependentConsumerGroupOffsets(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pg, err := Open(ctx, dsn, "topic")
	require.NoError(t, err)
	defer pg.Close()

	require.NoError(t, pg.Send(ctx, SchemaBatchInfo, "run1", simtypes.BatchInfo{RunID: "run1"}))

	msgA, err := pg.Poll(ctx, SchemaBatchInfo, "env-indexer")
	require.NoError(t, err)
	require.NoError(t, pg.Ack(ctx, msgA.Token))

	msgB, err := pg.Poll(ctx, SchemaBatchInfo, "organism-indexer")
	require.NoError(t, err, "a second consumer group must still see the message after the first acked")
	require.NoError(t, pg.Ack(ctx, msgB.Token))
}

func TestIntegration_RedeliveryAfterLeaseExpiry(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pg, err := Open(ctx, dsn, "topic")
	require.NoError(t, err)
	defer pg.Close()

	require.NoError(t, pg.Send(ctx, SchemaBatchInfo, "run1", simtypes.BatchInfo{RunID: "run1"}))

	first, err := pg.PollWithLease(ctx, SchemaBatchInfo, "env-indexer", 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, first.DeliveryCount)

	time.Sleep(100 * time.Millisecond)

	second, err := pg.PollWithLease(ctx, SchemaBatchInfo, "env-indexer", 30*time.Second)
	require.NoError(t, err, "message must be redelivered after its claim lease expires")
	require.Equal(t, 2, second.DeliveryCount)

	require.NoError(t, pg.Ack(ctx, second.Token))
}
