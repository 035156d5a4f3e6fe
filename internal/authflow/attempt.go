package authflow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridfront/grid-front/internal/admission"
)

// attemptTTL bounds how long an abandoned login attempt is kept
const attemptTTL = 30 * time.Minute

// MFAChallenge is the pending verification-code demand on an attempt.
// Message carries whatever explanation the remote API sent along.
type MFAChallenge struct {
	Pending bool
	Message string
}

// Attempt is one in-progress credential login. It survives across
// submissions so a rejected password or a pending MFA challenge keeps
// its context (the email entered, the navigation to resume).
type Attempt struct {
	ID        string
	Intent    *admission.Intent
	Email     string
	MFA       MFAChallenge
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// attemptRegistry holds live attempts keyed by ID. Stale entries are
// swept opportunistically on writes.
type attemptRegistry struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

func newAttemptRegistry() *attemptRegistry {
	return &attemptRegistry{attempts: make(map[string]*Attempt)}
}

func (r *attemptRegistry) create(intent *admission.Intent) *Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	now := time.Now()
	attempt := &Attempt{
		ID:        uuid.NewString(),
		Intent:    intent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.attempts[attempt.ID] = attempt
	return attempt
}

// get returns a copy so callers cannot mutate registry state without
// going through update
func (r *attemptRegistry) get(id string) (Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[id]
	if !ok || time.Since(attempt.UpdatedAt) > attemptTTL {
		return Attempt{}, false
	}
	return *attempt, true
}

func (r *attemptRegistry) update(id string, fn func(*Attempt)) (Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[id]
	if !ok {
		return Attempt{}, false
	}
	fn(attempt)
	attempt.UpdatedAt = time.Now()
	return *attempt, true
}

func (r *attemptRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, id)
}

func (r *attemptRegistry) sweepLocked() {
	for id, attempt := range r.attempts {
		if time.Since(attempt.UpdatedAt) > attemptTTL {
			delete(r.attempts, id)
		}
	}
}
