//go:build integration

package simdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simlattice/indexer/organism"
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

func TestIntegration_PrepareSchemaIsIdempotent(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pool, err := Open(ctx, dsn, "db")
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.PrepareSchema(ctx, "run1"))
	require.NoError(t, pool.PrepareSchema(ctx, "run1"))
}

func TestIntegration_MetadataWriteIsUpsert(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pool, err := Open(ctx, dsn, "db")
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pool.PrepareSchema(ctx, "run1"))

	w := &MetadataWriter{pool: pool, runID: "run1"}
	meta := simtypes.SimulationMetadata{RunID: "run1", InitialSeed: 1}
	require.NoError(t, w.WriteMetadata(ctx, meta))
	meta.InitialSeed = 2
	require.NoError(t, w.WriteMetadata(ctx, meta))

	r := &pgReader{pool: pool, runID: "run1"}
	got, err := r.ReadMetadata(ctx, "run1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.InitialSeed)
}

func TestIntegration_EnvironmentFlushIsIdempotentUnderRedelivery(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pool, err := Open(ctx, dsn, "db")
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pool.PrepareSchema(ctx, "run1"))

	w := &EnvironmentWriter{pool: pool, runID: "run1"}
	shape := []int{10, 10}
	ticks := []simtypes.TickRecord{
		{RunID: "run1", TickNumber: 0, Cells: []simtypes.CellState{{FlatIndex: 5, OwnerID: 1, MoleculeType: 2, MoleculeValue: 3}}},
	}

	require.NoError(t, w.FlushTicks(ctx, shape, ticks))
	require.NoError(t, w.FlushTicks(ctx, shape, ticks))

	r := &pgReader{pool: pool, runID: "run1"}
	cells, err := r.ReadEnvironmentRegion(ctx, "run1", 0, 0, 99)
	require.NoError(t, err)
	require.Len(t, cells, 1, "redelivering the same batch must not duplicate rows")
}

func TestIntegration_OrganismFlushUpsertsStaticAndState(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	pool, err := Open(ctx, dsn, "db")
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pool.PrepareSchema(ctx, "run1"))

	w := &OrganismWriter{pool: pool, runID: "run1", codec: organism.LZ4Codec{}}
	ticks := []simtypes.TickRecord{
		{RunID: "run1", TickNumber: 0, Organisms: []simtypes.OrganismState{
			{OrganismID: 1, ProgramID: "p1", BirthTick: 0, InitialPos: []int{1, 2}, RuntimeState: []byte("state-at-tick-0")},
		}},
		{RunID: "run1", TickNumber: 1, Organisms: []simtypes.OrganismState{
			{OrganismID: 1, ProgramID: "p1", BirthTick: 0, InitialPos: []int{1, 2}, RuntimeState: []byte("state-at-tick-1")},
		}},
	}

	require.NoError(t, w.FlushTicks(ctx, ticks))

	r := &pgReader{pool: pool, runID: "run1"}
	got, err := r.ReadOrganismDetails(ctx, "run1", 1, 1)
	require.NoError(t, err)
	require.Equal(t, "p1", got.ProgramID)

	raw, err := organism.LZ4Codec{}.Decode(got.RuntimeState, got.Codec)
	require.NoError(t, err)
	require.Equal(t, "state-at-tick-1", string(raw))
}
