package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
)

// fakeConn records subscriptions and lets tests deliver messages by hand.
type fakeConn struct {
	mu       sync.Mutex
	handlers map[string]nats.MsgHandler
	subCalls int
	err      error
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[string]nats.MsgHandler{}}
}

func (f *fakeConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	if f.err != nil {
		return nil, f.err
	}
	f.handlers[subj] = cb
	return &nats.Subscription{}, nil
}

func (f *fakeConn) deliver(subj string, data []byte) {
	f.mu.Lock()
	cb := f.handlers[subj]
	f.mu.Unlock()
	if cb != nil {
		cb(&nats.Msg{Subject: subj, Data: data})
	}
}

// recordingHandler counts forwarded notifications.
type recordingHandler struct {
	mu     sync.Mutex
	chunks []string
	ends   int
	errs   []string
}

func (h *recordingHandler) HandleChunk(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, text)
}

func (h *recordingHandler) HandleEnd() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends++
}

func (h *recordingHandler) HandleError(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, text)
}

func newTestSubscriber(fc *fakeConn, h Handler) *Subscriber {
	return &Subscriber{conn: fc, sessionID: "s1", handler: h}
}

func TestActivate_RegistersThreeListeners(t *testing.T) {
	fc := newFakeConn()
	sub := newTestSubscriber(fc, &recordingHandler{})

	if _, err := sub.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if fc.subCalls != 3 {
		t.Errorf("expected 3 subscriptions, got %d", fc.subCalls)
	}
	for _, subj := range []string{ChunkSubject("s1"), EndSubject("s1"), ErrorSubject("s1")} {
		if fc.handlers[subj] == nil {
			t.Errorf("expected subscription on %s", subj)
		}
	}
}

func TestActivate_SecondCallIsNoop(t *testing.T) {
	fc := newFakeConn()
	h := &recordingHandler{}
	sub := newTestSubscriber(fc, h)

	if _, err := sub.Activate(); err != nil {
		t.Fatalf("first activate: %v", err)
	}
	dispose, err := sub.Activate()
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	dispose() // disposer from the no-op call must not tear down the live set

	if fc.subCalls != 3 {
		t.Errorf("expected 3 subscriptions total, got %d", fc.subCalls)
	}

	// A chunk notification must be applied exactly once.
	fc.deliver(ChunkSubject("s1"), []byte("hi"))
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.chunks) != 1 {
		t.Errorf("expected 1 chunk applied, got %d", len(h.chunks))
	}
}

func TestForwarding(t *testing.T) {
	fc := newFakeConn()
	h := &recordingHandler{}
	sub := newTestSubscriber(fc, h)

	if _, err := sub.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	fc.deliver(ChunkSubject("s1"), []byte("Hel"))
	fc.deliver(ChunkSubject("s1"), []byte("lo"))
	fc.deliver(EndSubject("s1"), nil)
	fc.deliver(ErrorSubject("s1"), []byte("boom"))

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.chunks) != 2 || h.chunks[0] != "Hel" || h.chunks[1] != "lo" {
		t.Errorf("unexpected chunks: %v", h.chunks)
	}
	if h.ends != 1 {
		t.Errorf("expected 1 end, got %d", h.ends)
	}
	if len(h.errs) != 1 || h.errs[0] != "boom" {
		t.Errorf("unexpected errors: %v", h.errs)
	}
}

func TestDeactivate_Idempotent(t *testing.T) {
	fc := newFakeConn()
	sub := newTestSubscriber(fc, &recordingHandler{})

	dispose, err := sub.Activate()
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	dispose()
	dispose() // must be safe to call again
	sub.Deactivate()

	// After teardown a fresh Activate registers a new listener set.
	if _, err := sub.Activate(); err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if fc.subCalls != 6 {
		t.Errorf("expected 6 subscribe calls after re-activation, got %d", fc.subCalls)
	}
}

func TestActivate_SubscribeFailureResetsGuard(t *testing.T) {
	fc := newFakeConn()
	fc.err = fmt.Errorf("connection closed")
	sub := newTestSubscriber(fc, &recordingHandler{})

	if _, err := sub.Activate(); err == nil {
		t.Fatal("expected activate to fail")
	}

	// The guard must not stay set after a failed activation.
	fc.err = nil
	if _, err := sub.Activate(); err != nil {
		t.Fatalf("retry activate: %v", err)
	}
	if len(fc.handlers) != 3 {
		t.Errorf("expected 3 live handlers after retry, got %d", len(fc.handlers))
	}
}
