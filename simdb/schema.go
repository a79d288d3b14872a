package simdb

import (
	"context"
	"fmt"

	"github.com/simlattice/indexer/simtypes"
)

// PrepareSchema idempotently creates the run's schema and every table a
// specialization writes into. Safe under concurrent start of multiple
// indexers bound to the same run, since every statement uses
// CREATE SCHEMA/TABLE IF NOT EXISTS (spec's "idempotent schema creation"
// design note).
func (p *Pool) PrepareSchema(ctx context.Context, runID simtypes.RunID) error {
	schema := runID.SchemaName()

	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.metadata (
			key text PRIMARY KEY,
			value text NOT NULL
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.environment_cells (
			tick_number bigint NOT NULL,
			flat_index bigint NOT NULL,
			coords bigint[] NOT NULL,
			owner_id bigint NOT NULL,
			molecule_type integer NOT NULL,
			molecule_value integer NOT NULL,
			PRIMARY KEY (tick_number, flat_index)
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.organisms (
			organism_id bigint PRIMARY KEY,
			program_id text NOT NULL,
			birth_tick bigint NOT NULL,
			initial_position bigint[]
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.organism_states (
			organism_id bigint NOT NULL,
			tick_number bigint NOT NULL,
			failed boolean NOT NULL DEFAULT false,
			failure_reason text,
			codec text NOT NULL,
			state bytea NOT NULL,
			PRIMARY KEY (organism_id, tick_number)
		)`, schema),
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("simdb: prepare schema %s: %w", schema, err)
		}
	}
	return nil
}
