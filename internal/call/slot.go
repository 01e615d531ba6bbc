package call

import "sync"

// Role names one of the three legs a Session manages.
type Role string

const (
	RoleTelephony Role = "telephony"
	RoleObserver  Role = "observer"
	RoleModel     Role = "model"
)

// Roles lists every leg in teardown order: observer first, model last.
var Roles = []Role{RoleObserver, RoleTelephony, RoleModel}

// slot holds at most one live connection for a role. Displaced or cleared
// connections are closed best-effort; a close failure never blocks the swap,
// since the old connection may already be half-closed.
type slot struct {
	mu   sync.Mutex
	conn Conn
}

func (s *slot) set(c Conn) {
	s.mu.Lock()
	old := s.conn
	s.conn = c
	s.mu.Unlock()

	if old != nil && old != c {
		_ = old.Close()
	}
}

func (s *slot) clear() {
	s.mu.Lock()
	old := s.conn
	s.conn = nil
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// clearIf empties the slot only when it still holds c. A stale model listener
// uses this so its cleanup never evicts a newer connection.
func (s *slot) clearIf(c Conn) bool {
	s.mu.Lock()
	match := s.conn == c
	if match {
		s.conn = nil
	}
	s.mu.Unlock()

	if match {
		_ = c.Close()
	}
	return match
}

func (s *slot) get() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
