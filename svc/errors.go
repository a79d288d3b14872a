package svc

import (
	"container/ring"
	"sync"
	"time"

	"github.com/simlattice/indexer/xerrors"
)

// DefaultErrorRingCapacity matches the spec's "N=50 typical" recent-error
// ring size.
const DefaultErrorRingCapacity = 50

// OperationalError is one entry in a service's recent-error ring.
type OperationalError struct {
	ErrorType   string    `json:"errorType"`
	Message     string    `json:"message"`
	TimestampMs int64     `json:"timestampMs"`
	at          time.Time `json:"-"`
}

// ErrorRing is a bounded, thread-safe FIFO of OperationalError values,
// built on container/ring the way a fixed-capacity circular buffer should
// be, rather than a slice the caller must truncate by hand.
type ErrorRing struct {
	mu   sync.Mutex
	r    *ring.Ring
	size int
	cap  int
}

// NewErrorRing creates a ring of the given capacity (DefaultErrorRingCapacity
// if cap <= 0).
func NewErrorRing(cap int) *ErrorRing {
	if cap <= 0 {
		cap = DefaultErrorRingCapacity
	}
	return &ErrorRing{r: ring.New(cap), cap: cap}
}

// Add appends an OperationalError, evicting the oldest entry once the ring
// is full. Fatal errors (xerrors.Kind.Fatal()) must NOT be passed here per
// spec §4.1 — callers route those to the *_failed counter instead.
func (e *ErrorRing) Add(kind xerrors.Kind, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	e.r.Value = OperationalError{
		ErrorType:   string(kind),
		Message:     message,
		TimestampMs: now.UnixMilli(),
		at:          now,
	}
	e.r = e.r.Next()
	if e.size < e.cap {
		e.size++
	}
}

// Snapshot returns the ring's entries oldest-first, as copies.
func (e *ErrorRing) Snapshot() []OperationalError {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.size == 0 {
		return nil
	}

	out := make([]OperationalError, 0, e.size)
	// e.r currently points at the next write slot, i.e. one past the
	// oldest live entry once the ring has wrapped; start there.
	start := e.r
	if e.size < e.cap {
		start = e.r.Move(-e.size)
	}
	start.Do(func(v interface{}) {
		if v == nil {
			return
		}
		out = append(out, v.(OperationalError))
	})
	return out
}
