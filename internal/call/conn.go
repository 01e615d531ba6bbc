package call

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal connection surface a Session needs from any leg. A
// gorilla websocket satisfies it through wsConn; tests plug in fakes.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() ([]byte, error)
	Close() error
}

// wsConn adapts a gorilla connection.  Writes are serialized because a leg can
// be written from more than one goroutine (the configure step and the
// telephony routing path both write the model leg).
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps a websocket connection for use in a Session slot.
func NewConn(ws *websocket.Conn) Conn {
	return &wsConn{ws: ws}
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	// Best-effort orderly close; the peer may already be gone.
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

// isClosedConn reports whether a write failed because the connection is gone,
// as opposed to a transient encoding or transport error.
func isClosedConn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
