package indexers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/simtypes"
	"github.com/simlattice/indexer/topic"
	"github.com/simlattice/indexer/xerrors"
)

type fakeTopicReader struct {
	msg      topic.Message
	hasMsg   bool
	pollErr  error
	acked    []topic.Token
}

func (f *fakeTopicReader) Poll(ctx context.Context) (topic.Message, error) {
	if f.hasMsg {
		f.hasMsg = false
		return f.msg, nil
	}
	if f.pollErr != nil {
		return topic.Message{}, f.pollErr
	}
	return topic.Message{}, topic.ErrNoMessage
}

func (f *fakeTopicReader) Ack(ctx context.Context, token topic.Token) error {
	f.acked = append(f.acked, token)
	return nil
}

func (f *fakeTopicReader) Close() error { return nil }

type fakeBlobReader struct{}

func (fakeBlobReader) ReadBatch(ctx context.Context, path simtypes.StoragePath) ([]simtypes.TickRecord, error) {
	return nil, nil
}
func (fakeBlobReader) ReadMessage(ctx context.Context, path simtypes.StoragePath, out interface{}) error {
	return nil
}
func (fakeBlobReader) ListRunIds(ctx context.Context, since time.Time) ([]simtypes.RunID, error) {
	return nil, nil
}
func (fakeBlobReader) Close() error { return nil }

func TestMetadataIndexerPollTimeoutFailsWithNoAck(t *testing.T) {
	b := indexer.NewBase("metadata", indexer.NewRunDiscoverer(nil, indexer.DiscoveryConfig{RunID: "r1"}))
	b.BeginStart()
	b.MarkRunning()

	top := &fakeTopicReader{}
	mi := &MetadataIndexer{
		Base:              b,
		Topic:             top,
		Storage:           fakeBlobReader{},
		PollTimeout:       10 * time.Millisecond,
		PollRetryInterval: time.Millisecond,
	}

	err := mi.IndexRun(context.Background(), "r1")
	if err == nil {
		t.Fatal("expected error on poll timeout")
	}
	if xerrors.KindOf(err) != xerrors.MetadataTimeout {
		t.Fatalf("expected MetadataTimeout, got %v", xerrors.KindOf(err))
	}
	if b.State() != "ERROR" {
		t.Fatalf("expected ERROR state, got %s", b.State())
	}
	if len(top.acked) != 0 {
		t.Fatalf("expected no ack on timeout, got %v", top.acked)
	}
	if got := b.Metrics.Get("metadata_failed"); got != 1 {
		t.Fatalf("expected metadata_failed=1, got %v", got)
	}
}

func TestMetadataIndexerInvalidPayloadFailsWithNoAck(t *testing.T) {
	b := indexer.NewBase("metadata", indexer.NewRunDiscoverer(nil, indexer.DiscoveryConfig{RunID: "r1"}))
	b.BeginStart()
	b.MarkRunning()

	top := &fakeTopicReader{hasMsg: true, msg: topic.Message{
		Token:   topic.Token{MessageID: 1, ConsumerGroup: "g1"},
		Schema:  topic.SchemaMetadataInfo,
		Payload: json.RawMessage(`not json`),
	}}
	mi := &MetadataIndexer{
		Base:              b,
		Topic:             top,
		Storage:           fakeBlobReader{},
		PollTimeout:       10 * time.Millisecond,
		PollRetryInterval: time.Millisecond,
	}

	err := mi.IndexRun(context.Background(), "r1")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if xerrors.KindOf(err) != xerrors.InvalidBatch {
		t.Fatalf("expected InvalidBatch, got %v", xerrors.KindOf(err))
	}
	if len(top.acked) != 0 {
		t.Fatalf("expected no ack on decode failure, got %v", top.acked)
	}
}

func TestMetadataIndexerPollErrorPropagates(t *testing.T) {
	b := indexer.NewBase("metadata", indexer.NewRunDiscoverer(nil, indexer.DiscoveryConfig{RunID: "r1"}))
	b.BeginStart()
	b.MarkRunning()

	top := &fakeTopicReader{pollErr: errors.New("connection reset")}
	mi := &MetadataIndexer{
		Base:              b,
		Topic:             top,
		Storage:           fakeBlobReader{},
		PollTimeout:       5 * time.Millisecond,
		PollRetryInterval: 50 * time.Millisecond,
	}

	err := mi.IndexRun(context.Background(), "r1")
	if err == nil {
		t.Fatal("expected poll error to propagate")
	}
}
