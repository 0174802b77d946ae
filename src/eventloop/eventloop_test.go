package eventloop

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"a9i/src/messages"
	"a9i/src/resident"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	accept bool
	modes  []messages.Mode
	waited bool
	calls  chan messages.Mode
}

func newFakeDispatcher(accept bool) *fakeDispatcher {
	return &fakeDispatcher{accept: accept, calls: make(chan messages.Mode, 8)}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, mode messages.Mode) bool {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	f.calls <- mode
	return f.accept
}

func (f *fakeDispatcher) Wait() {
	f.mu.Lock()
	f.waited = true
	f.mu.Unlock()
}

type blockingUI struct{ err error }

func (u blockingUI) Run(ctx context.Context) error {
	if u.err != nil {
		return u.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func runLoop(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitCall(t *testing.T, d *fakeDispatcher) messages.Mode {
	t.Helper()
	select {
	case m := <-d.calls:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not called")
		return ""
	}
}

func TestHotkeyDispatches(t *testing.T) {
	d := newFakeDispatcher(true)
	l := New(Options{Dispatcher: d, UI: blockingUI{}})
	cancel, done := runLoop(t, l)

	l.OnHotkey(messages.ModeDefine)
	if got := waitCall(t, d); got != messages.ModeDefine {
		t.Errorf("expected define, got %q", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.waited {
		t.Error("expected Run to wait for in-flight sessions")
	}
}

func TestOnHotkeyNeverBlocks(t *testing.T) {
	l := New(Options{Dispatcher: newFakeDispatcher(true)})
	for i := 0; i < 100; i++ {
		l.OnHotkey(messages.ModeTranslate)
	}
	if len(l.hotkeyCh) != cap(l.hotkeyCh) {
		t.Errorf("expected the queue to be full, got %d", len(l.hotkeyCh))
	}
}

func TestUIFailureStopsLoop(t *testing.T) {
	boom := errors.New("no display")
	l := New(Options{Dispatcher: newFakeDispatcher(true), UI: blockingUI{err: boom}})
	_, done := runLoop(t, l)

	select {
	case err := <-done:
		var ce *ComponentError
		if !errors.As(err, &ce) || ce.Component != "popup" || !errors.Is(err, boom) {
			t.Fatalf("expected popup ComponentError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func freePorts(t *testing.T) resident.PortRange {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	_ = lis.Close()
	return resident.PortRange{Start: port, End: port}
}

func TestResidentTrigger(t *testing.T) {
	tests := []struct {
		name    string
		accept  bool
		wantErr error
	}{
		{"accepted", true, nil},
		{"busy", false, resident.ErrBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ports := freePorts(t)
			d := newFakeDispatcher(tt.accept)
			l := New(Options{Dispatcher: d, UI: blockingUI{}, Server: resident.NewServer(ports)})
			runLoop(t, l)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var (
				delegated bool
				err       error
			)
			// The server starts asynchronously with Run.
			for i := 0; i < 50; i++ {
				if delegated, err = resident.NewClient(ports).Trigger(ctx, messages.ModeTranslate); delegated {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			if !delegated {
				t.Fatal("resident never answered")
			}
			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Fatalf("Trigger err = %v, want %v", err, tt.wantErr)
			}
			if got := waitCall(t, d); got != messages.ModeTranslate {
				t.Errorf("expected translate, got %q", got)
			}
		})
	}
}
