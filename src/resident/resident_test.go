package resident

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"a9i/src/messages"
)

// freePort returns a loopback port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func startServer(t *testing.T) (Server, PortRange, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	port := freePort(t)
	ports := PortRange{Start: port, End: port}
	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("tcp listener unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, ports, ctx
}

func TestServerClientRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		respond func(Conn) error
		wantErr error
	}{
		{"accepted", func(c Conn) error { return c.RespondAccepted() }, nil},
		{"busy", func(c Conn) error { return c.RespondBusy() }, ErrBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ports, ctx := startServer(t)

			errCh := make(chan error, 1)
			go func() {
				delegated, err := NewClient(ports).Trigger(ctx, messages.ModeDefine)
				if !delegated {
					err = errors.New("expected delegation")
				}
				errCh <- err
			}()

			conn, err := srv.Next(ctx)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if conn.Mode() != messages.ModeDefine {
				t.Errorf("expected define request, got %q", conn.Mode())
			}
			if err := tt.respond(conn); err != nil {
				t.Fatalf("respond: %v", err)
			}
			_ = conn.Close()

			if err := <-errCh; !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("client err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientReceivesErrorMessage(t *testing.T) {
	srv, ports, ctx := startServer(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := NewClient(ports).Trigger(ctx, messages.ModeTranslate)
		errCh <- err
	}()
	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	_ = conn.RespondError("backend offline")
	_ = conn.Close()

	if err := <-errCh; err == nil || err.Error() != "backend offline" {
		t.Errorf("expected resident error message, got %v", err)
	}
}

func TestServerRejectsUnknownMode(t *testing.T) {
	_, ports, ctx := startServer(t)
	_, err := NewClient(ports).Trigger(ctx, messages.Mode("summarise"))
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestSecondServerCannotBind(t *testing.T) {
	_, ports, ctx := startServer(t)
	if err := NewServer(ports).Start(ctx); err == nil {
		t.Fatal("expected second server on the same port to fail")
	}
	if port, ok := DetectResidentPort(ctx, ports); !ok || port != ports.Start {
		t.Errorf("DetectResidentPort = %d, %v", port, ok)
	}
}

func TestTriggerWithoutResident(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	delegated, err := NewClient(PortRange{Start: port, End: port}).Trigger(ctx, messages.ModeDefault)
	if delegated || err != nil {
		t.Fatalf("expected no delegation, got delegated=%v err=%v", delegated, err)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		line    string
		want    messages.Mode
		wantErr bool
	}{
		{"TRIGGER translate\n", messages.ModeTranslate, false},
		{"TRIGGER\n", messages.ModeDefault, false},
		{"TRIGGER define extra\n", "", true},
		{"STDOUT\n", "", true},
		{"\n", "", true},
	}
	for _, tt := range tests {
		got, err := parseTrigger(tt.line)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTrigger(%q) = %q, %v", tt.line, got, err)
		}
	}
}

func TestPortRangeNormalize(t *testing.T) {
	tests := []struct {
		in, want PortRange
	}{
		{PortRange{}, PortRange{Start: DefaultPortStart, End: DefaultPortEnd}},
		{PortRange{Start: 80, End: 2000}, PortRange{Start: 1024, End: 2000}},
		{PortRange{Start: 50000, End: 49000}, PortRange{Start: 49000, End: 50000}},
		{PortRange{Start: 2000, End: 70000}, PortRange{Start: 2000, End: 65535}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
