package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"treksafer/internal/config"
	"treksafer/internal/router"
)

// maxRequestBytes bounds one socket request; satellite messages are tiny.
const maxRequestBytes = 4096

const readTimeout = 30 * time.Second

// socketTransport serves one request per TCP connection: read, route, reply,
// close.
type socketTransport struct {
	addr   string
	svc    router.Service
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

func newSocketTransport(cfg config.TransportConfig, svc router.Service, logger *slog.Logger) (Transport, error) {
	return &socketTransport{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		svc:    svc,
		logger: logger.With("component", "socket-transport"),
	}, nil
}

func (t *socketTransport) Name() string { return "socket" }

func (t *socketTransport) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("socket transport listen on %s: %w", t.addr, err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	t.logger.Info("listening", "addr", t.addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			t.logger.Warn("accept failed", "error", err)
			continue
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handle(conn)
		}()
	}
}

func (t *socketTransport) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		t.logger.Warn("read failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	message := strings.TrimSpace(string(buf[:n]))
	response := t.svc.Handle(message)

	if _, err := conn.Write([]byte(response + "\n")); err != nil {
		t.logger.Warn("write failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

func (t *socketTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("socket transport drain: %w", ctx.Err())
	}
}
