package simdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/simlattice/indexer/organism"
	"github.com/simlattice/indexer/simtypes"
)

// MetadataWriter upserts the single simulation_info row for a run.
// Grounded on spec's MetadataIndexer lifecycle: one row, key='simulation_info'.
type MetadataWriter struct {
	pool   *Pool
	runID  simtypes.RunID
}

func (w *MetadataWriter) WriteMetadata(ctx context.Context, meta simtypes.SimulationMetadata) error {
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("simdb: marshal metadata: %w", err)
	}
	schema := w.runID.SchemaName()
	sql := fmt.Sprintf(`INSERT INTO %s.metadata (key, value) VALUES ('simulation_info', $1)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, schema)
	if _, err := w.pool.pool.Exec(ctx, sql, string(value)); err != nil {
		return fmt.Errorf("simdb: upsert metadata: %w", err)
	}
	return nil
}

// EnvironmentWriter upserts environment_cells rows, keyed by
// (tick_number, flat_index), one transaction per FlushTicks call.
type EnvironmentWriter struct {
	pool  *Pool
	runID simtypes.RunID
}

// FlushTicks translates each cell's FlatIndex into coordinates via shape
// (row-major, dimension-agnostic) and upserts every cell of every tick in
// one transaction, per EnvironmentIndexer's flushTicks contract.
func (w *EnvironmentWriter) FlushTicks(ctx context.Context, shape []int, ticks []simtypes.TickRecord) error {
	if len(ticks) == 0 {
		return nil
	}
	schema := w.runID.SchemaName()
	tx, err := w.pool.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("simdb: begin environment flush: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := fmt.Sprintf(`INSERT INTO %s.environment_cells
		(tick_number, flat_index, coords, owner_id, molecule_type, molecule_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tick_number, flat_index) DO UPDATE SET
			coords = excluded.coords,
			owner_id = excluded.owner_id,
			molecule_type = excluded.molecule_type,
			molecule_value = excluded.molecule_value`, schema)

	batch := &pgx.Batch{}
	for _, tick := range ticks {
		for _, cell := range tick.Cells {
			coords := flatIndexToCoords(cell.FlatIndex, shape)
			batch.Queue(sql, tick.TickNumber, cell.FlatIndex, coords, cell.OwnerID, cell.MoleculeType, cell.MoleculeValue)
		}
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("simdb: upsert environment cell: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("simdb: close environment batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("simdb: commit environment flush: %w", err)
	}
	return nil
}

// flatIndexToCoords converts a row-major flat cell index into per-dimension
// coordinates for an arbitrary-dimensional shape, e.g. shape=[10,10,10],
// flatIndex=205 -> [2,0,5].
func flatIndexToCoords(flatIndex int64, shape []int) []int64 {
	coords := make([]int64, len(shape))
	remaining := flatIndex
	for i := len(shape) - 1; i >= 0; i-- {
		dim := int64(shape[i])
		if dim == 0 {
			coords[i] = 0
			continue
		}
		coords[i] = remaining % dim
		remaining /= dim
	}
	return coords
}

// OrganismWriter upserts organism static rows and per-tick organism_states
// rows, encoding RuntimeState via a pluggable Codec (raw or lz4).
type OrganismWriter struct {
	pool  *Pool
	runID simtypes.RunID
	codec organism.Codec
}

// FlushTicks upserts every organism seen across ticks (static info) and one
// organism_states row per (organism_id, tick_number), in one transaction.
func (w *OrganismWriter) FlushTicks(ctx context.Context, ticks []simtypes.TickRecord) error {
	if len(ticks) == 0 {
		return nil
	}
	schema := w.runID.SchemaName()
	tx, err := w.pool.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("simdb: begin organism flush: %w", err)
	}
	defer tx.Rollback(ctx)

	organismSQL := fmt.Sprintf(`INSERT INTO %s.organisms (organism_id, program_id, birth_tick, initial_position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organism_id) DO UPDATE SET
			program_id = excluded.program_id,
			birth_tick = excluded.birth_tick,
			initial_position = excluded.initial_position`, schema)

	stateSQL := fmt.Sprintf(`INSERT INTO %s.organism_states
		(organism_id, tick_number, failed, failure_reason, codec, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organism_id, tick_number) DO UPDATE SET
			failed = excluded.failed,
			failure_reason = excluded.failure_reason,
			codec = excluded.codec,
			state = excluded.state`, schema)

	seen := map[int64]bool{}
	batch := &pgx.Batch{}
	for _, tick := range ticks {
		for _, org := range tick.Organisms {
			if !seen[org.OrganismID] {
				seen[org.OrganismID] = true
				initialPos := make([]int64, len(org.InitialPos))
				for i, v := range org.InitialPos {
					initialPos[i] = int64(v)
				}
				batch.Queue(organismSQL, org.OrganismID, org.ProgramID, org.BirthTick, initialPos)
			}

			encoded, codecName, err := w.codec.Encode(org.RuntimeState)
			if err != nil {
				return fmt.Errorf("simdb: encode organism state: %w", err)
			}
			var failureReason interface{}
			if org.FailureReason != "" {
				failureReason = org.FailureReason
			}
			batch.Queue(stateSQL, org.OrganismID, tick.TickNumber, org.Failed, failureReason, codecName, encoded)
		}
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("simdb: upsert organism row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("simdb: close organism batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("simdb: commit organism flush: %w", err)
	}
	return nil
}
