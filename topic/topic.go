// Package topic implements the durable, at-least-once, competing-consumer
// notification topic the engine polls: BatchInfo and MetadataInfo messages,
// partitioned by message schema and run, with per-consumer-group claim
// leases and redelivery on lease expiry.
//
// The source platform backs this with a dedicated broker; this module
// instead implements it atop the same relational backend simdb already
// requires (see DESIGN.md for the redesign rationale), using
// `SELECT ... FOR UPDATE SKIP LOCKED` for claiming and a `claim_expires_at`
// column for lease-based redelivery — translating the teacher's
// queue/redis claim-lease vocabulary (Dequeue/MarkProcessing/CompleteJob/
// FailJob, ZADD-scored deadlines) onto Postgres rows instead of a Redis
// sorted set.
package topic

import (
	"encoding/json"
	"time"

	"github.com/simlattice/indexer/simtypes"
)

// Token identifies one delivery attempt of one message to one consumer
// group; Ack consumes it. Encodes only (messageID, consumerGroup), so a
// token from an earlier delivery still acks the message after it was
// redelivered under a fresh claim (see Postgres.Ack).
type Token struct {
	MessageID     int64
	ConsumerGroup string
}

// Message is one delivered topic entry: the raw JSON payload plus routing
// metadata the engine needs to ack or inspect redelivery.
type Message struct {
	Token         Token
	RunID         simtypes.RunID
	Schema        string
	Payload       json.RawMessage
	DeliveryCount int
	EnqueuedAt    time.Time
}

// DecodeBatchInfo unmarshals Payload as simtypes.BatchInfo.
func (m Message) DecodeBatchInfo() (simtypes.BatchInfo, error) {
	var b simtypes.BatchInfo
	err := json.Unmarshal(m.Payload, &b)
	return b, err
}

// DecodeMetadataInfo unmarshals Payload as simtypes.MetadataInfo.
func (m Message) DecodeMetadataInfo() (simtypes.MetadataInfo, error) {
	var b simtypes.MetadataInfo
	err := json.Unmarshal(m.Payload, &b)
	return b, err
}

// Schema names for the two message types the topic carries, per spec §6.
const (
	SchemaBatchInfo    = "batch_info"
	SchemaMetadataInfo = "metadata_info"
)
