package call

import (
	"context"

	"github.com/ent0n29/callbridge/internal/realtime"
)

type realtimeDialer struct {
	client *realtime.Client
}

// NewRealtimeDialer adapts the realtime API client into a ModelDialer.
func NewRealtimeDialer(client *realtime.Client) ModelDialer {
	return realtimeDialer{client: client}
}

func (d realtimeDialer) Dial(ctx context.Context) (Conn, error) {
	ws, err := d.client.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}
