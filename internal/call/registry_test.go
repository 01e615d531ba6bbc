package call

import (
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/calllog"
	"github.com/ent0n29/callbridge/internal/realtime"
)

func newTestRegistry(dialer ModelDialer) *Registry {
	return NewRegistry(dialer, calllog.NewInMemoryStore(), testMetrics, zap.NewNop())
}

func TestGetOrCreateSeedsDefaultConfig(t *testing.T) {
	r := newTestRegistry(&fakeDialer{})

	s, created := r.GetOrCreate("MZ1")
	if !created {
		t.Fatalf("first GetOrCreate should create")
	}
	cfg := s.Config()
	if cfg.Voice != realtime.VoiceAlloy || cfg.InputAudioFormat != realtime.AudioFormatG711ULaw {
		t.Fatalf("unexpected default config: %+v", cfg)
	}

	again, created := r.GetOrCreate("MZ1")
	if created {
		t.Fatalf("second GetOrCreate should not create")
	}
	if again != s {
		t.Fatalf("GetOrCreate returned a different session for the same call")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := newTestRegistry(&fakeDialer{})

	const workers = 16
	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = r.GetOrCreate("MZ-race")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("concurrent GetOrCreate produced distinct sessions")
		}
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", r.ActiveCount())
	}
}

func TestRemoveWaitsForTeardown(t *testing.T) {
	dialer := &fakeDialer{}
	r := newTestRegistry(dialer)

	s, _ := r.GetOrCreate("MZ1")
	telephonyConn := newFakeConn()
	s.Attach(RoleTelephony, telephonyConn)
	waitFor(t, func() bool { return s.ModelState() == StateLive }, "model to go live")
	modelConn := dialer.lastConn()

	r.Remove("MZ1", "call ended")

	// Remove has returned: teardown must already be complete.
	if _, ok := r.Get("MZ1"); ok {
		t.Fatalf("session still registered after Remove")
	}
	if s.ModelLive() {
		t.Fatalf("liveness flag still true after Remove")
	}
	if !modelConn.isClosed() || !telephonyConn.isClosed() {
		t.Fatalf("connections left open after Remove")
	}
	s.mu.Lock()
	listening := s.listenerCancel != nil
	s.mu.Unlock()
	if listening {
		t.Fatalf("model listener still registered after Remove")
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	r := newTestRegistry(&fakeDialer{})
	r.Remove("never-seen", "whatever")

	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", r.ActiveCount())
	}
}
