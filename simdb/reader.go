package simdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/simlattice/indexer/resource"
	"github.com/simlattice/indexer/simtypes"
)

// Reader is the read-API surface named in spec §6
// (findLatestRunId/readMetadata/readTickRange/readEnvironmentRegion/
// readOrganismDetails), kept here as an interface so the database shape
// stays compatible with an out-of-scope HTTP read layer without this
// module implementing HTTP itself.
type Reader interface {
	resource.Handle
	FindLatestRunId(ctx context.Context) (simtypes.RunID, error)
	ReadMetadata(ctx context.Context, runID simtypes.RunID) (simtypes.SimulationMetadata, error)
	ReadTickRange(ctx context.Context, runID simtypes.RunID) (minTick, maxTick int64, err error)
	ReadEnvironmentRegion(ctx context.Context, runID simtypes.RunID, tick int64, minFlatIndex, maxFlatIndex int64) ([]simtypes.CellState, error)
	ReadOrganismDetails(ctx context.Context, runID simtypes.RunID, organismID, tick int64) (simtypes.OrganismState, error)
}

// pgReader implements Reader over the same pool writers use, scoped to one
// run at bind time.
type pgReader struct {
	pool  *Pool
	runID simtypes.RunID
}

var _ Reader = (*pgReader)(nil)

func (r *pgReader) Close() error { return nil }

// FindLatestRunId scans every run schema's metadata row for the one with the
// highest StartTimeMs, the "most recently started run" discovery tail mode
// needs when no run id is configured up front.
func (r *pgReader) FindLatestRunId(ctx context.Context) (simtypes.RunID, error) {
	rows, err := r.pool.pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'sim\_%' ESCAPE '\'`)
	if err != nil {
		return "", fmt.Errorf("simdb: list run schemas: %w", err)
	}
	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return "", fmt.Errorf("simdb: scan run schema: %w", err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("simdb: iterate run schemas: %w", err)
	}
	rows.Close()

	var (
		latest      simtypes.RunID
		latestStart int64 = -1
		found       bool
	)
	for _, schema := range schemas {
		sql := fmt.Sprintf(`SELECT value FROM %s.metadata WHERE key = 'simulation_info'`, schema)
		var raw string
		if err := r.pool.pool.QueryRow(ctx, sql).Scan(&raw); err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return "", fmt.Errorf("simdb: read metadata for schema %s: %w", schema, err)
		}
		var meta simtypes.SimulationMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return "", fmt.Errorf("simdb: unmarshal metadata for schema %s: %w", schema, err)
		}
		if meta.StartTimeMs > latestStart {
			latestStart = meta.StartTimeMs
			latest = meta.RunID
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("simdb: find latest run id: no run schemas with metadata")
	}
	return latest, nil
}

// ReadTickRange returns the lowest and highest tick_number recorded for a
// run's environment cells, the bounds a tail reader needs before it can page
// through ReadEnvironmentRegion.
func (r *pgReader) ReadTickRange(ctx context.Context, runID simtypes.RunID) (minTick, maxTick int64, err error) {
	schema := runID.SchemaName()
	sql := fmt.Sprintf(`SELECT min(tick_number), max(tick_number) FROM %s.environment_cells`, schema)

	var min, max *int64
	if err := r.pool.pool.QueryRow(ctx, sql).Scan(&min, &max); err != nil {
		return 0, 0, fmt.Errorf("simdb: read tick range: %w", err)
	}
	if min == nil || max == nil {
		return 0, 0, fmt.Errorf("simdb: read tick range: run %s has no recorded ticks", runID)
	}
	return *min, *max, nil
}

// ReadMetadata loads the simulation_info row written by MetadataWriter.
func (r *pgReader) ReadMetadata(ctx context.Context, runID simtypes.RunID) (simtypes.SimulationMetadata, error) {
	schema := runID.SchemaName()
	sql := fmt.Sprintf(`SELECT value FROM %s.metadata WHERE key = 'simulation_info'`, schema)

	var raw string
	if err := r.pool.pool.QueryRow(ctx, sql).Scan(&raw); err != nil {
		return simtypes.SimulationMetadata{}, fmt.Errorf("simdb: read metadata: %w", err)
	}

	var meta simtypes.SimulationMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return simtypes.SimulationMetadata{}, fmt.Errorf("simdb: unmarshal metadata: %w", err)
	}
	return meta, nil
}

// ReadEnvironmentRegion returns every cell for one tick whose flat index
// falls in [minFlatIndex, maxFlatIndex], the bounded-region query the
// external read API needs without scanning a run's full grid.
func (r *pgReader) ReadEnvironmentRegion(ctx context.Context, runID simtypes.RunID, tick int64, minFlatIndex, maxFlatIndex int64) ([]simtypes.CellState, error) {
	schema := runID.SchemaName()
	sql := fmt.Sprintf(`SELECT flat_index, owner_id, molecule_type, molecule_value
		FROM %s.environment_cells
		WHERE tick_number = $1 AND flat_index BETWEEN $2 AND $3
		ORDER BY flat_index`, schema)

	rows, err := r.pool.pool.Query(ctx, sql, tick, minFlatIndex, maxFlatIndex)
	if err != nil {
		return nil, fmt.Errorf("simdb: read environment region: %w", err)
	}
	defer rows.Close()

	var cells []simtypes.CellState
	for rows.Next() {
		var c simtypes.CellState
		if err := rows.Scan(&c.FlatIndex, &c.OwnerID, &c.MoleculeType, &c.MoleculeValue); err != nil {
			return nil, fmt.Errorf("simdb: scan environment cell: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("simdb: iterate environment region: %w", err)
	}
	return cells, nil
}

// ReadOrganismDetails returns one organism's static info merged with its
// state at a specific tick.
func (r *pgReader) ReadOrganismDetails(ctx context.Context, runID simtypes.RunID, organismID, tick int64) (simtypes.OrganismState, error) {
	schema := runID.SchemaName()
	sql := fmt.Sprintf(`SELECT o.program_id, o.birth_tick, o.initial_position,
			s.failed, s.failure_reason, s.codec, s.state
		FROM %s.organisms o
		JOIN %s.organism_states s ON s.organism_id = o.organism_id
		WHERE o.organism_id = $1 AND s.tick_number = $2`, schema, schema)

	var (
		out           simtypes.OrganismState
		initialPos    []int64
		failureReason *string
	)
	row := r.pool.pool.QueryRow(ctx, sql, organismID, tick)
	if err := row.Scan(&out.ProgramID, &out.BirthTick, &initialPos, &out.Failed, &failureReason, &out.Codec, &out.RuntimeState); err != nil {
		if err == pgx.ErrNoRows {
			return simtypes.OrganismState{}, fmt.Errorf("simdb: organism %d at tick %d: %w", organismID, tick, err)
		}
		return simtypes.OrganismState{}, fmt.Errorf("simdb: read organism details: %w", err)
	}

	out.OrganismID = organismID
	out.InitialPos = make([]int, len(initialPos))
	for i, v := range initialPos {
		out.InitialPos[i] = int(v)
	}
	if failureReason != nil {
		out.FailureReason = *failureReason
	}
	return out, nil
}
