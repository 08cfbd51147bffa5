package qr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTooManySessions is returned by Mount when the registry is full.
var ErrTooManySessions = errors.New("too many sessions")

type sessionEntry struct {
	sess     *Session
	lastSeen time.Time
}

// Sessions tracks the widgets currently mounted, keyed by a random id.
type Sessions struct {
	defaults Defaults
	max      int
	now      func() time.Time
	mu       sync.Mutex
	m        map[string]*sessionEntry
}

// NewSessions returns an empty registry whose sessions start from d. At most
// max sessions are mounted at once; max <= 0 means no limit.
func NewSessions(d Defaults, max int) *Sessions {
	return &Sessions{
		defaults: d,
		max:      max,
		now:      time.Now,
		m:        make(map[string]*sessionEntry),
	}
}

// Mount creates a session with the registry defaults.
func (r *Sessions) Mount() (string, *Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.m) >= r.max {
		return "", nil, ErrTooManySessions
	}

	id := uuid.NewString()
	s := NewSession(r.defaults)
	r.m[id] = &sessionEntry{sess: s, lastSeen: r.now()}
	return id, s, nil
}

// Get returns the session for id and marks it as recently used.
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.sess, true
}

// Unmount discards the session for id. It reports whether one existed.
func (r *Sessions) Unmount(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return false
	}
	delete(r.m, id)
	return true
}

// Len returns the number of mounted sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Max returns the mount limit, 0 meaning unlimited.
func (r *Sessions) Max() int {
	if r.max < 0 {
		return 0
	}
	return r.max
}

// Sweep unmounts sessions not used for longer than maxIdle and returns how
// many were removed. A download already running on a swept session still
// completes; it holds its own copy of the URL.
func (r *Sessions) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, e := range r.m {
		if e.lastSeen.Before(cutoff) {
			delete(r.m, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled. A
// non-positive maxIdle disables expiry.
func StartSweeper(ctx context.Context, r *Sessions, interval, maxIdle time.Duration, log *slog.Logger) {
	if maxIdle <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(maxIdle); n > 0 {
					log.Info("expired idle sessions", "count", n, "remaining", r.Len())
				}
			}
		}
	}()
}
