package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Policy bounds the registry. A conversation idle longer than MaxIdle is
// forgotten, and the registry never holds more than MaxEntries
// conversations; the least recently touched one makes room. Zero values
// disable the respective bound.
type Policy struct {
	MaxIdle    time.Duration
	MaxEntries int
}

// DefaultPolicy keeps a conversation for half an hour of silence and caps
// the arena at 1024 conversations, plenty for a single household and
// small enough to never matter.
func DefaultPolicy() Policy {
	return Policy{
		MaxIdle:    30 * time.Minute,
		MaxEntries: 1024,
	}
}

// Record is the per-conversation state.
type Record struct {
	SessionID string
	StartedAt time.Time
	LastTouch time.Time
	Turn      int
}

// Registry is the stateful tracker. Session ids are minted on first touch
// and stay stable for as long as the conversation is resident; the turn
// counter is monotonic per residency. After eviction a returning
// conversation starts over with a fresh session id at turn 1.
type Registry struct {
	mu      sync.Mutex
	policy  Policy
	records map[string]*Record
	now     func() time.Time
}

type RegistryOption func(*Registry)

func WithPolicy(policy Policy) RegistryOption {
	return func(r *Registry) {
		r.policy = policy
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		policy:  DefaultPolicy(),
		records: map[string]*Record{},
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Touch returns the lease for the next turn of the conversation, minting
// a record when none is resident. Concurrent first touches of the same
// conversation resolve to a single record; the returned turn numbers are
// a permutation of 1..n.
func (r *Registry) Touch(conversationID string) Lease {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	rec, ok := r.records[conversationID]
	if !ok {
		r.makeRoomLocked()
		rec = &Record{
			SessionID: "sess_" + uuid.NewString(),
			StartedAt: now,
		}
		r.records[conversationID] = rec
		log.Debug().
			Str("conversation_id", conversationID).
			Str("session_id", rec.SessionID).
			Msg("new session")
	}

	rec.Turn++
	rec.LastTouch = now
	return Lease{SessionID: rec.SessionID, Turn: rec.Turn}
}

// Peek returns the current lease without counting a turn.
func (r *Registry) Peek(conversationID string) (Lease, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[conversationID]
	if !ok {
		return Lease{}, false
	}
	return Lease{SessionID: rec.SessionID, Turn: rec.Turn}, true
}

// Len returns the number of resident conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Prune drops conversations idle past the policy bound and returns how
// many were dropped. Touch prunes lazily already; hosts that want a hard
// upper bound on memory between conversations can drive this from a
// ticker.
func (r *Registry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked(now)
}

func (r *Registry) pruneLocked(now time.Time) int {
	if r.policy.MaxIdle <= 0 {
		return 0
	}

	evicted := 0
	for id, rec := range r.records {
		if now.Sub(rec.LastTouch) > r.policy.MaxIdle {
			delete(r.records, id)
			evicted++
			log.Debug().
				Str("conversation_id", id).
				Str("session_id", rec.SessionID).
				Int("turns", rec.Turn).
				Msg("evicted idle session")
		}
	}
	return evicted
}

// makeRoomLocked evicts least-recently-touched records until one slot is
// free.
func (r *Registry) makeRoomLocked() {
	if r.policy.MaxEntries <= 0 {
		return
	}

	for len(r.records) >= r.policy.MaxEntries {
		oldestID := ""
		var oldest time.Time
		for id, rec := range r.records {
			if oldestID == "" || rec.LastTouch.Before(oldest) {
				oldestID = id
				oldest = rec.LastTouch
			}
		}
		if oldestID == "" {
			return
		}
		log.Debug().
			Str("conversation_id", oldestID).
			Msg("evicted session over capacity")
		delete(r.records, oldestID)
	}
}

var _ Tracker = (*Registry)(nil)
