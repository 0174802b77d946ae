package resident

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"a9i/src/messages"
)

type tcpClient struct {
	ports PortRange
}

func (c *tcpClient) Trigger(ctx context.Context, mode messages.Mode) (bool, error) {
	timeout := dialTimeout(ctx, 2*time.Second)
	for port := c.ports.Start; port <= c.ports.End; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, timeout) {
			continue
		}
		return true, sendTrigger(addr, mode, timeout)
	}
	return false, nil
}

func sendTrigger(addr string, mode messages.Mode, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(w, "%s %s\n", triggerVerb, mode); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read resident reply: %w", err)
	}
	switch status {
	case statusAccepted:
		return nil
	case statusBusy:
		return ErrBusy
	case statusError:
		msg, _ := io.ReadAll(br)
		return errors.New(string(msg))
	default:
		return fmt.Errorf("unexpected resident reply %q", status)
	}
}

// DetectResidentPort scans the port range and returns (port, true) if a
// resident responds to PING.
func DetectResidentPort(ctx context.Context, ports PortRange) (int, bool) {
	ports = ports.Normalize()
	timeout := dialTimeout(ctx, 300*time.Millisecond)
	for port := ports.Start; port <= ports.End; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if ping(addr, timeout) {
			return port, true
		}
	}
	return 0, false
}

func dialTimeout(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return def
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
