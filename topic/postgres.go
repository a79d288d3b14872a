package topic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simlattice/indexer/simtypes"
)

// ErrNoMessage is returned by Poll when no message is claimable before ctx
// or the poll timeout elapses. Callers treat it exactly like a blocking
// dequeue timing out: loop back to the next poll rather than an error path.
var ErrNoMessage = errors.New("topic: no message available")

const schemaDDL = `
CREATE TABLE IF NOT EXISTS topic_messages (
	id BIGSERIAL PRIMARY KEY,
	message_schema TEXT NOT NULL,
	run_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS topic_messages_schema_idx ON topic_messages (message_schema, id);

CREATE TABLE IF NOT EXISTS topic_claims (
	message_id BIGINT NOT NULL REFERENCES topic_messages(id),
	consumer_group TEXT NOT NULL,
	claimed_by TEXT NOT NULL,
	claim_expires_at TIMESTAMPTZ NOT NULL,
	delivery_count INT NOT NULL DEFAULT 0,
	acked BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (message_id, consumer_group)
);
`

// Postgres is the relational topic substrate: one table of immutable
// messages and one table of per-(message, consumer-group) claim state.
type Postgres struct {
	pool         *pgxpool.Pool
	resourceName string
	defaultTTL   time.Duration
}

// DefaultLeaseTTL is the claim lease duration used by Poll when the caller
// does not specify one, matching config.Config.TopicLeaseTTL's default.
const DefaultLeaseTTL = 30 * time.Second

// Open connects to dsn and ensures the topic tables exist. resourceName is
// this backend's identity in ResourceBinding.resourceName (e.g. "topic").
func Open(ctx context.Context, dsn, resourceName string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("topic: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("topic: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("topic: create schema: %w", err)
	}
	return &Postgres{pool: pool, resourceName: resourceName, defaultTTL: DefaultLeaseTTL}, nil
}

// Close shuts down the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Send publishes one message under the given schema and run id. Every
// registered consumer group will independently be offered the message on
// its next Poll, per the per-consumer-group-offset requirement in §2.
func (p *Postgres) Send(ctx context.Context, schema string, runID simtypes.RunID, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("topic: marshal payload: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO topic_messages (message_schema, run_id, payload) VALUES ($1, $2, $3)`,
		schema, string(runID), body)
	if err != nil {
		return fmt.Errorf("topic: send: %w", err)
	}
	return nil
}

// Poll claims the next unacked, unclaimed-or-lease-expired message for
// schema under consumerGroup, atomically extending its claim by leaseTTL.
// Returns ErrNoMessage if none is claimable right now.
//
// Grounded on the teacher's redis Queue.Dequeue + MarkProcessing pair,
// collapsed into one round trip using SELECT ... FOR UPDATE SKIP LOCKED so
// concurrent pollers of the same consumer group never double-claim a row.
func (p *Postgres) Poll(ctx context.Context, schema, consumerGroup string) (Message, error) {
	return p.PollWithLease(ctx, schema, consumerGroup, p.defaultTTL)
}

// PollWithLease is Poll with an explicit lease TTL, used when a binding's
// Options carries a claimTimeoutMs distinct from the configured default.
func (p *Postgres) PollWithLease(ctx context.Context, schema, consumerGroup string, leaseTTL time.Duration) (Message, error) {
	claimant := uuid.NewString()
	leaseExpiry := time.Now().Add(leaseTTL)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("topic: begin poll tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		messageID int64
		runID     string
		payload   json.RawMessage
		createdAt time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT m.id, m.run_id, m.payload, m.created_at
		FROM topic_messages m
		LEFT JOIN topic_claims c
			ON c.message_id = m.id AND c.consumer_group = $2
		WHERE m.message_schema = $1
			AND (c.message_id IS NULL OR (c.acked = false AND c.claim_expires_at < now()))
		ORDER BY m.id
		LIMIT 1
		FOR UPDATE OF m SKIP LOCKED
	`, schema, consumerGroup).Scan(&messageID, &runID, &payload, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNoMessage
	}
	if err != nil {
		return Message{}, fmt.Errorf("topic: poll select: %w", err)
	}

	var deliveryCount int
	err = tx.QueryRow(ctx, `
		INSERT INTO topic_claims (message_id, consumer_group, claimed_by, claim_expires_at, delivery_count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (message_id, consumer_group) DO UPDATE
			SET claimed_by = EXCLUDED.claimed_by,
				claim_expires_at = EXCLUDED.claim_expires_at,
				delivery_count = topic_claims.delivery_count + 1
		RETURNING delivery_count
	`, messageID, consumerGroup, claimant, leaseExpiry).Scan(&deliveryCount)
	if err != nil {
		return Message{}, fmt.Errorf("topic: poll claim: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("topic: commit poll tx: %w", err)
	}

	return Message{
		Token:         Token{MessageID: messageID, ConsumerGroup: consumerGroup},
		RunID:         simtypes.RunID(runID),
		Schema:        schema,
		Payload:       payload,
		DeliveryCount: deliveryCount,
		EnqueuedAt:    createdAt,
	}, nil
}

// Ack marks a delivered message as acknowledged for its consumer group. A
// stale token (claim since reassigned to a different claimant after lease
// expiry) still acks successfully — acked is keyed by (message, group), not
// by claimant — matching at-least-once semantics where only one delivery
// ultimately needs to succeed.
func (p *Postgres) Ack(ctx context.Context, token Token) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE topic_claims SET acked = true WHERE message_id = $1 AND consumer_group = $2`,
		token.MessageID, token.ConsumerGroup)
	if err != nil {
		return fmt.Errorf("topic: ack: %w", err)
	}
	return nil
}
