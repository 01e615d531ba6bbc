package calllog

import (
	"context"
	"time"

	"github.com/ent0n29/callbridge/internal/realtime"
)

// Record is one call's durable log document: the configuration snapshot taken
// at call start plus every model event appended during the call.
type Record struct {
	StreamSid string
	Config    realtime.SessionConfig
	Events    []map[string]any
	CreatedAt time.Time
}

// Store is the append-only per-call event sink. Both operations are
// best-effort from the relay's point of view: callers log failures and move
// on, they never fail the call.
type Store interface {
	CreateCall(ctx context.Context, streamSid string, cfg realtime.SessionConfig) error
	AppendEvent(ctx context.Context, streamSid string, event map[string]any) error
	Close() error
}
