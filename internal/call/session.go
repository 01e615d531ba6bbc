package call

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/calllog"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/realtime"
)

// ModelDialer opens the AI-model leg for a call.
type ModelDialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Session owns the three legs of one phone call and the model sub-session
// that feeds them. Slot mutation and liveness transitions are serialized; the
// telephony and model read loops otherwise run independently so a stalled leg
// never blocks the other.
type Session struct {
	StreamSid string
	StartedAt time.Time

	cfg     realtime.SessionConfig
	dialer  ModelDialer
	store   calllog.Store
	metrics *observability.Metrics
	log     *zap.Logger

	slots map[Role]*slot

	// ctx spans the session's lifetime. End cancels it, which abandons an
	// in-flight model dial and stops any listener, registered or not.
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	ended          bool
	modelLive      bool
	state          ModelState
	listenerCancel context.CancelFunc
	listenerDone   <-chan struct{}
}

func NewSession(
	streamSid string,
	cfg realtime.SessionConfig,
	dialer ModelDialer,
	store calllog.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		StreamSid: streamSid,
		StartedAt: time.Now().UTC(),
		cfg:       cfg,
		dialer:    dialer,
		store:     store,
		metrics:   metrics,
		log:       logger.With(zap.String("stream_sid", streamSid)),
		slots:     make(map[Role]*slot, len(Roles)),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
	}
	for _, role := range Roles {
		s.slots[role] = &slot{}
	}
	return s
}

// Config returns the session configuration snapshot taken at call start. The
// stored value is never mutated after the model sub-session has sent it; a
// behavior change is expressed as a fresh partial session.update instead.
func (s *Session) Config() realtime.SessionConfig {
	return s.cfg
}

// ModelLive reports whether the model leg is currently usable for sends. It
// is the sole source of truth for routing decisions toward the model.
func (s *Session) ModelLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelLive
}

func (s *Session) setModelLive(live bool) {
	s.mu.Lock()
	s.modelLive = live
	s.mu.Unlock()
}

// Attach installs a connection for a role, displacing (and best-effort
// closing) any previous one. Attaching the telephony leg fires model
// bring-up in the background; failures there surface only in logs, never to
// this caller.
func (s *Session) Attach(role Role, conn Conn) {
	s.slots[role].set(conn)
	if role == RoleTelephony {
		go s.BringUp(s.ctx)
	}
}

// Detach closes and empties a role's slot.
func (s *Session) Detach(role Role) {
	s.slots[role].clear()
}

// Send writes one payload to a leg. An empty slot is a no-op. Telephony and
// observer writes are best-effort. A model write that fails on a closed
// connection flips the liveness flag; any other model write failure is logged
// and the flag stands.
func (s *Session) Send(role Role, v any) {
	conn := s.slots[role].get()
	if conn == nil {
		return
	}

	if role != RoleModel {
		_ = conn.WriteJSON(v)
		return
	}

	if !s.ModelLive() {
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		if isClosedConn(err) {
			s.setModelLive(false)
			s.log.Warn("model connection closed while sending", zap.Error(err))
		} else {
			s.log.Warn("model send failed", zap.Error(err))
		}
	}
}

// Route forwards one chunk of caller audio to the model leg. Audio arriving
// while the model is down is dropped silently: degraded, not fatal.
func (s *Session) Route(payload string) {
	if payload == "" {
		return
	}
	if !s.ModelLive() {
		s.metrics.MediaDropped.Inc()
		return
	}
	s.Send(RoleModel, realtime.InputAudioBufferAppend{
		Type:  realtime.TypeInputAudioBufferAppend,
		Audio: payload,
	})
	s.metrics.MediaForwarded.WithLabelValues("inbound").Inc()
}

// End tears the session down: mark the session ended and cancel its context
// so an in-flight bring-up cannot install a connection afterwards, cancel the
// model listener and wait for it to observe the cancellation, then close
// every slot (observer, telephony, model) swallowing individual close
// failures. Safe to call repeatedly and with any subset of slots populated.
func (s *Session) End(reason string) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.cancel()

	s.log.Info("closing connections", zap.String("reason", reason))

	s.stopListener()

	for _, role := range Roles {
		s.slots[role].clear()
	}

	s.mu.Lock()
	s.modelLive = false
	s.state = StateDisconnected
	s.mu.Unlock()

	s.log.Info("all connections closed")
}

func (s *Session) stopListener() {
	s.mu.Lock()
	cancel := s.listenerCancel
	done := s.listenerDone
	s.listenerCancel = nil
	s.listenerDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("model listener cancelled")
}
