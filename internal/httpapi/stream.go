package httpapi

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/call"
	"github.com/ent0n29/callbridge/internal/telephony"
)

// handshakeFrameWindow bounds how many frames the handler inspects while
// waiting for the stream's start event.
const handshakeFrameWindow = 10

// handleCall drives the telephony leg: wait for the start event, attach the
// connection to its session, then pump media frames until the stream ends.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wrapped := call.NewConn(conn)

	// Handshake: the start event must arrive within the frame window and the
	// handshake timeout, otherwise the stream is refused.
	var sess *call.Session
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	for i := 0; i < handshakeFrameWindow && sess == nil; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		frame, err := telephony.ParseFrame(data)
		if err != nil {
			s.log.Warn("telephony handshake: ignoring frame", zap.Error(err))
			continue
		}
		if start, ok := frame.(telephony.StartFrame); ok {
			sess, _ = s.registry.GetOrCreate(start.StreamSid)
			sess.Attach(call.RoleTelephony, wrapped)
		}
	}
	if sess == nil {
		s.log.Warn("no start event within handshake window, refusing stream")
		closeWith(conn, websocket.ClosePolicyViolation, "no start event")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	s.metrics.CallEvents.WithLabelValues("telephony_attached").Inc()

	streamSid := sess.StreamSid
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isDisconnect(err) {
				s.registry.Remove(streamSid, "disconnected")
			} else {
				closeWith(conn, websocket.CloseInternalServerErr, "internal error")
				s.registry.Remove(streamSid, err.Error())
			}
			return
		}

		frame, err := telephony.ParseFrame(data)
		if err != nil {
			// One undecodable or unknown frame never ends the call.
			continue
		}

		switch f := frame.(type) {
		case telephony.MediaFrame:
			sess.Route(f.Media.Payload)
		case telephony.StopFrame:
			s.registry.Remove(streamSid, "call ended")
			return
		}
	}
}

// handleLogs attaches an observer to an active call. The observer receives
// the same model events that reach the durable log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	streamSid := strings.TrimSpace(r.URL.Query().Get("streamSid"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if streamSid == "" {
		closeWith(conn, websocket.ClosePolicyViolation, "streamSid is required")
		return
	}
	sess, ok := s.registry.Get(streamSid)
	if !ok {
		closeWith(conn, websocket.CloseInternalServerErr, "no active call session found")
		return
	}

	sess.Attach(call.RoleObserver, call.NewConn(conn))
	s.metrics.CallEvents.WithLabelValues("observer_attached").Inc()

	// The observer is write-only from the session's point of view; this loop
	// only notices disconnection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			sess.Detach(call.RoleObserver)
			return
		}
	}
}

// isDisconnect reports whether a telephony read error means the peer went
// away (close frame, torn connection, EOF), as opposed to a failure
// processing the leg.
func isDisconnect(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
