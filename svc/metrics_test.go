package svc

import "testing"

func TestMetricsIncAccumulates(t *testing.T) {
	m := NewMetrics()
	m.Inc("batches_processed", 1)
	m.Inc("batches_processed", 1)
	m.Inc("batches_processed", 1)

	if got := m.Get("batches_processed"); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.Set("x", 1)

	snap := m.Snapshot()
	snap["x"] = 99

	if got := m.Get("x"); got != 1 {
		t.Fatalf("mutating a snapshot must not affect the live map, got %v", got)
	}
}
