// Package audit captures structured events for throttling violations so
// operators can see demand that verification turned away.
package audit

import (
	"context"
	"sync"
	"time"
)

// Actions emitted by the verification path.
const (
	ActionRateLimited   = "verify.rate_limited"
	ActionQuotaExceeded = "verify.quota_exceeded"
)

// Event is a single audit record. Identity is the caller-supplied key; it
// is never enriched with registry detail the caller did not already present.
type Event struct {
	Action    string    `json:"action"`
	Identity  string    `json:"identity"`
	Zone      string    `json:"zone"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the sink contract. Implementations must treat Emit as
// best-effort from the caller's point of view: verification never fails a
// request because an audit event could not be delivered.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// MemoryPublisher buffers events in process. Used by tests and as the
// default sink when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
