package call

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/calllog"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/realtime"
)

// Registry is the process-wide map from stream SID to Session. Every map
// operation takes the one lock, so two near-simultaneous first contacts for
// the same call can never produce two Sessions.
type Registry struct {
	dialer  ModelDialer
	store   calllog.Store
	metrics *observability.Metrics
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(dialer ModelDialer, store calllog.Store, metrics *observability.Metrics, logger *zap.Logger) *Registry {
	return &Registry{
		dialer:   dialer,
		store:    store,
		metrics:  metrics,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for a stream SID, if any.
func (r *Registry) Get(streamSid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[streamSid]
	return s, ok
}

// GetOrCreate returns the existing session for a stream SID untouched, or
// creates one seeded with the default session configuration. The second
// return reports whether a session was created.
func (r *Registry) GetOrCreate(streamSid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[streamSid]; ok {
		return s, false
	}

	s := NewSession(streamSid, realtime.DefaultSessionConfig(), r.dialer, r.store, r.metrics, r.log)
	r.sessions[streamSid] = s
	r.metrics.ActiveCalls.Set(float64(len(r.sessions)))
	r.metrics.CallEvents.WithLabelValues("started").Inc()
	return s, true
}

// Remove pops the session and runs its teardown to completion before
// returning. Removing an unknown stream SID is a no-op.
func (r *Registry) Remove(streamSid, reason string) {
	r.mu.Lock()
	s, ok := r.sessions[streamSid]
	delete(r.sessions, streamSid)
	r.metrics.ActiveCalls.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if !ok {
		return
	}
	s.End(reason)
	r.metrics.CallEvents.WithLabelValues("ended").Inc()
}

// ActiveCount reports how many calls are currently registered.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
