package session

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Registry holds every live session in a bounded LRU. When the gateway serves
// more users than the capacity allows, the least recently active session is
// evicted; that user just starts from a fresh view next request.
type Registry struct {
	cache   *lru.Cache[string, *Session]
	idleTTL time.Duration
	onDrop  func(userID string)
	log     *zap.Logger
}

// NewRegistry creates a registry. onDrop, if non-nil, runs for every session
// that is evicted or swept (used to clear the user's toasts).
func NewRegistry(capacity int, idleTTL time.Duration, onDrop func(userID string), log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{idleTTL: idleTTL, onDrop: onDrop, log: log}

	cache, err := lru.NewWithEvict(capacity, func(userID string, _ *Session) {
		r.log.Debug("session dropped", zap.String("user_id", userID))
		if r.onDrop != nil {
			r.onDrop(userID)
		}
	})
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Get returns the user's session, creating one on first access, and marks it
// as recently used.
func (r *Registry) Get(userID string) *Session {
	if s, ok := r.cache.Get(userID); ok {
		s.Touch()
		return s
	}
	s := New(userID)
	r.cache.Add(userID, s)
	return s
}

// Drop removes a user's session immediately.
func (r *Registry) Drop(userID string) {
	r.cache.Remove(userID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Sweep removes every session idle longer than the TTL and reports how many
// went away.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-r.idleTTL)
	swept := 0
	for _, userID := range r.cache.Keys() {
		s, ok := r.cache.Peek(userID)
		if !ok {
			continue
		}
		if s.IdleSince().Before(cutoff) {
			r.cache.Remove(userID)
			swept++
		}
	}
	if swept > 0 {
		r.log.Info("swept idle sessions", zap.Int("count", swept))
	}
	return swept
}

// ScheduleSweep registers the periodic sweep on the given scheduler.
func (r *Registry) ScheduleSweep(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() { r.Sweep() })
}
