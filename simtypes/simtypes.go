// Package simtypes holds the wire and storage data model shared by every
// other package in the indexer: run identifiers, the topic payloads
// (BatchInfo, MetadataInfo), the tick record shape, and the schema-naming
// rule that binds a run to its database schema. Keeping these types in a
// leaf package avoids import cycles between topic, blobstore, and simdb,
// all three of which need to speak the same vocabulary.
package simtypes

import (
	"strings"
	"time"
)

// RunID identifies one simulation execution. Typically formatted
// "YYYYMMDD-HHMMSSmm-<uuid>" by the producer, but this package treats it as
// an opaque string.
type RunID string

// SchemaName returns the per-run PostgreSQL schema name: "sim_" followed by
// the lowercased run id with every non-alphanumeric rune replaced by '_'.
// Two run ids collide under this mapping iff they collide as raw strings
// after the same normalization, which is the invariant simdb relies on to
// keep one run's data under exactly one schema.
func (r RunID) SchemaName() string {
	var b strings.Builder
	b.WriteString("sim_")
	for _, c := range strings.ToLower(string(r)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// StoragePath is an opaque handle to a blob written by blobstore.Store. It is
// propagated verbatim through BatchInfo.StoragePath and MetadataInfo.StorageKey.
type StoragePath string

// BatchInfo is the topic payload announcing a tick batch blob is ready to be
// indexed. Field order is fixed per the wire contract in spec §6.
type BatchInfo struct {
	RunID       RunID       `json:"simulation_run_id"`
	StoragePath StoragePath `json:"storage_path"`
	TickStart   int64       `json:"tick_start"`
	TickEnd     int64       `json:"tick_end"`
	WrittenAtMs int64       `json:"written_at_ms"`
}

// MetadataInfo is the single-message topic payload announcing that a run's
// SimulationMetadata blob is ready to be indexed.
type MetadataInfo struct {
	RunID      RunID       `json:"simulation_run_id"`
	StorageKey StoragePath `json:"storage_key"`
	WrittenAtMs int64      `json:"written_at_ms"`
}

// Environment describes the simulation's spatial grid: the number of
// dimensions, the extent of each, and whether each dimension wraps
// (toroidal). EnvironmentIndexer uses Shape to translate a flat cell index
// into coordinates.
type Environment struct {
	Dimensions int    `json:"dimensions"`
	Shape      []int  `json:"shape"`
	Toroidal   []bool `json:"toroidal"`
}

// SimulationMetadata is written once per run, before any tick data becomes
// queryable.
type SimulationMetadata struct {
	RunID            RunID       `json:"runId"`
	StartTimeMs      int64       `json:"startTimeMs"`
	InitialSeed      int64       `json:"initialSeed"`
	SamplingInterval int         `json:"samplingInterval"`
	Environment      Environment `json:"environment"`
}

// CellState is one environment cell's reading for one tick.
type CellState struct {
	FlatIndex     int64 `json:"flatIndex"`
	OwnerID       int64 `json:"ownerId"`
	MoleculeType  int32 `json:"moleculeType"`
	MoleculeValue int32 `json:"moleculeValue"`
}

// OrganismState is one organism's runtime state for one tick. RuntimeState
// carries the codec-encoded (optionally compressed) payload for everything
// beyond the fields the indexer needs to branch on; see organism.Codec.
type OrganismState struct {
	OrganismID    int64  `json:"organismId"`
	ProgramID     string `json:"programId"`
	BirthTick     int64  `json:"birthTick"`
	InitialPos    []int  `json:"initialPosition"`
	Failed        bool   `json:"failed"`
	FailureReason string `json:"failureReason,omitempty"`
	RuntimeState  []byte `json:"runtimeState"`
	Codec         string `json:"codec"` // "raw" or "lz4"
}

// TickRecord is uniquely keyed by (RunID, TickNumber). Two records sharing a
// key are duplicates under redelivery; flush implementations must upsert.
type TickRecord struct {
	RunID         RunID           `json:"simulation_run_id"`
	TickNumber    int64           `json:"tick_number"`
	CaptureTimeMs int64           `json:"capture_time_ms"`
	Cells         []CellState     `json:"cells"`
	Organisms     []OrganismState `json:"organisms"`
}

// Key returns the (RunID, TickNumber) identity used for idempotent upserts.
func (t TickRecord) Key() (RunID, int64) { return t.RunID, t.TickNumber }

// Age returns how long ago the record was produced, for buffer-age checks.
func (t TickRecord) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(t.CaptureTimeMs))
}
