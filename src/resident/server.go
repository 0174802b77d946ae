package resident

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"a9i/src/messages"
)

const handshakeTimeout = 3 * time.Second

type tcpServer struct {
	ports    PortRange
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	port     int
	log      *slog.Logger
}

func newTCPServer(ports PortRange) *tcpServer {
	return &tcpServer{
		ports:    ports,
		incoming: make(chan *tcpConn, 8),
		log:      slog.Default().With("component", "resident"),
	}
}

func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", residentHost, s.ports.Start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.lis = lis
	s.port = lis.Addr().(*net.TCPAddr).Port
	s.log.Info("resident listening", "addr", lis.Addr().String())
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		s.handle(ctx, c)
	}
}

func (s *tcpServer) handle(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, err := br.ReadString('\n')
	if err != nil {
		_ = c.Close()
		return
	}

	if line == pingRequest {
		s.log.Debug("PING", "remote", remote)
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	tc := &tcpConn{c: c, w: bw}
	mode, err := parseTrigger(line)
	if err != nil {
		s.log.Warn("bad resident request", "remote", remote, "err", err)
		_ = tc.RespondError(err.Error())
		_ = c.Close()
		return
	}
	tc.mode = mode
	s.log.Debug("trigger request", "remote", remote, "mode", mode)

	select {
	case s.incoming <- tc:
	case <-ctx.Done():
		_ = c.Close()
	}
}

func parseTrigger(line string) (messages.Mode, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != triggerVerb || len(fields) > 2 {
		return "", fmt.Errorf("unsupported request %q", strings.TrimSpace(line))
	}
	arg := ""
	if len(fields) == 2 {
		arg = fields[1]
	}
	return messages.ParseMode(arg)
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis = nil
	s.port = 0
	return err
}

type tcpConn struct {
	c    net.Conn
	w    *bufio.Writer
	mode messages.Mode
}

func (tc *tcpConn) Mode() messages.Mode { return tc.mode }

func (tc *tcpConn) RespondAccepted() error { return tc.write(statusAccepted) }

func (tc *tcpConn) RespondBusy() error { return tc.write(statusBusy) }

func (tc *tcpConn) RespondError(msg string) error { return tc.write(statusError + msg) }

func (tc *tcpConn) write(s string) error {
	if _, err := tc.w.WriteString(s); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
