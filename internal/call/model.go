package call

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/realtime"
	"github.com/ent0n29/callbridge/internal/telephony"
)

// ModelState tracks the model sub-session lifecycle. No state is terminal: a
// later telephony attach or explicit retry drives disconnected → connecting
// again on the same Session.
type ModelState string

const (
	StateDisconnected ModelState = "disconnected"
	StateConnecting   ModelState = "connecting"
	StateConfiguring  ModelState = "configuring"
	StateLive         ModelState = "live"
)

// ModelState returns the sub-session's current lifecycle state.
func (s *Session) ModelState() ModelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state ModelState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// BringUp connects and configures the model leg, then starts its listener.
// Every failure is terminal for this attempt and leaves the sub-session
// disconnected; nothing retries automatically. Overlapping invocations are
// tolerated: the stale listener is cancelled before the new one starts. A
// bring-up that loses the race against End discards whatever the dial
// produced instead of installing it.
func (s *Session) BringUp(ctx context.Context) {
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return
	}

	if err := s.store.CreateCall(ctx, s.StreamSid, s.cfg); err != nil {
		s.metrics.StoreErrors.WithLabelValues("create").Inc()
		s.log.Warn("create call record failed", zap.Error(err))
	}

	s.setState(StateConnecting)
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		s.metrics.CallEvents.WithLabelValues("model_dial_failed").Inc()
		s.log.Warn("model connect failed", zap.Error(err))
		return
	}

	// Install before configuring: the configure step itself goes through the
	// model slot, and displacing any previous connection here is what unblocks
	// a stale listener. The ended check and the install share one critical
	// section so teardown can never complete between them.
	s.mu.Lock()
	if s.ended {
		s.state = StateDisconnected
		s.mu.Unlock()
		_ = conn.Close()
		s.log.Info("session ended during model connect, discarding connection")
		return
	}
	s.slots[RoleModel].set(conn)
	s.modelLive = true
	s.state = StateConfiguring
	s.mu.Unlock()

	s.Send(RoleModel, realtime.NewSessionUpdate(s.cfg))
	if !s.ModelLive() {
		s.slots[RoleModel].clearIf(conn)
		s.setState(StateDisconnected)
		s.log.Warn("model configure failed, discarding connection")
		return
	}

	s.startListener(conn)

	s.mu.Lock()
	if s.ended {
		s.state = StateDisconnected
		s.mu.Unlock()
		return
	}
	s.state = StateLive
	s.mu.Unlock()

	s.metrics.CallEvents.WithLabelValues("model_connected").Inc()
	s.log.Info("model session live")
}

// startListener swaps in a listener for conn, cancelling and awaiting any
// previous one so at most a single listener runs per session. The listener
// context descends from the session context, so a listener registered while
// End is racing the bring-up still dies with the session.
func (s *Session) startListener(conn Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.mu.Lock()
	prevCancel := s.listenerCancel
	prevDone := s.listenerDone
	s.listenerCancel = cancel
	s.listenerDone = done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	go func() {
		defer close(done)
		s.listenLoop(ctx, conn)
	}()
}

// listenLoop consumes inbound model events until the connection closes, a
// read fails, or the listener is cancelled. One malformed message never ends
// the loop. The exit cleanup runs exactly once whatever caused the exit:
// liveness drops and the slot is cleared only if this listener still owns the
// current model connection.
func (s *Session) listenLoop(ctx context.Context, conn Conn) {
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			// Cancellation is observed as a closed connection by the read
			// loop below.
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	defer func() {
		if s.slots[RoleModel].clearIf(conn) {
			s.setModelLive(false)
			s.setState(StateDisconnected)
		} else {
			_ = conn.Close()
		}
		s.log.Info("model listener stopped")
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("model connection closed", zap.Error(err))
			}
			return
		}

		ev, err := realtime.ParseServerEvent(data)
		if err != nil {
			s.log.Warn("model listener: dropping malformed event", zap.Error(err))
			continue
		}
		s.handleModelEvent(ctx, ev)
	}
}

func (s *Session) handleModelEvent(ctx context.Context, ev realtime.ServerEvent) {
	switch ev.Type {
	case realtime.TypeResponseAudioDelta:
		s.metrics.ModelEvents.WithLabelValues("audio_delta").Inc()
		s.Send(RoleTelephony, telephony.NewMediaMessage(s.StreamSid, ev.Delta))
		s.Send(RoleTelephony, telephony.NewMarkMessage(s.StreamSid))
		s.metrics.MediaForwarded.WithLabelValues("outbound").Inc()

	case realtime.TypeResponseDone, realtime.TypeInputTranscriptionCompleted:
		label := "response_done"
		if ev.Type == realtime.TypeInputTranscriptionCompleted {
			label = "transcription_completed"
		}
		s.metrics.ModelEvents.WithLabelValues(label).Inc()

		event := ev.Raw
		if event == nil {
			event = map[string]any{"type": ev.Type}
		}
		event["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
		if err := s.store.AppendEvent(ctx, s.StreamSid, event); err != nil {
			s.metrics.StoreErrors.WithLabelValues("append").Inc()
			s.log.Warn("append call event failed", zap.Error(err))
		}
		// Mirror log-bound events to a connected observer.
		s.Send(RoleObserver, event)

	default:
		s.metrics.ModelEvents.WithLabelValues("ignored").Inc()
	}
}
