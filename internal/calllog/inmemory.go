package calllog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ent0n29/callbridge/internal/realtime"
)

// InMemoryStore is a simple in-process call log for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) CreateCall(_ context.Context, streamSid string, cfg realtime.SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-creating an existing record refreshes the config snapshot but keeps
	// already-appended events.
	if rec, ok := s.records[streamSid]; ok {
		rec.Config = cfg
		return nil
	}
	s.records[streamSid] = &Record{
		StreamSid: streamSid,
		Config:    cfg,
		Events:    []map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *InMemoryStore) AppendEvent(_ context.Context, streamSid string, event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[streamSid]
	if !ok {
		return fmt.Errorf("no call record for %s", streamSid)
	}
	rec.Events = append(rec.Events, event)
	return nil
}

// Get returns a copy of one call's record.
func (s *InMemoryStore) Get(streamSid string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[streamSid]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Events = append([]map[string]any(nil), rec.Events...)
	return out, true
}

func (s *InMemoryStore) Close() error { return nil }
