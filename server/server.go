// Package server accepts JSON requests over TCP or vsock and executes them
// against the content collection, one transaction at a time.
//
// Requests are not authenticated: the acting account is whatever the
// request's "from" field names, including the owner on admin requests and
// any buyer whose quote allowance is approved to the content account. Only
// expose the listener to trusted clients, e.g. over vsock or a loopback
// address behind an authenticating proxy.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/content"
	"github.com/cloudx-io/contentauction/ledger"
	"github.com/cloudx-io/contentauction/rewarder"
)

const (
	// DefaultReadTimeout bounds how long a client may take to send its request.
	DefaultReadTimeout = 30 * time.Second

	maxRequestBytes = 1 << 20
)

// Config configures a Server.
type Config struct {
	// MaxWorkers is the number of connections served concurrently. Further
	// connections are closed immediately.
	MaxWorkers  int
	ReadTimeout time.Duration
}

// Deps are the components a Server executes requests against. Every state
// change goes through Executor, so the components must share its journal.
type Deps struct {
	Executor *ledger.Executor
	Content  *content.Content
	Quote    *ledger.Token
	Unit     *ledger.Token
	Rewarder *rewarder.Rewarder
	Keys     *KeyManager
	Clock    ledger.Clock
	Logger   *zap.Logger
}

// Server serves the content wire protocol.
type Server struct {
	cfg Config
	Deps
	log *zap.Logger
}

// New returns a Server. A zero ReadTimeout selects DefaultReadTimeout.
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if deps.Executor == nil || deps.Content == nil || deps.Quote == nil || deps.Unit == nil ||
		deps.Rewarder == nil || deps.Keys == nil {
		return nil, errors.New("server: missing dependency")
	}
	if deps.Clock == nil {
		deps.Clock = ledger.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		cfg:  cfg,
		Deps: deps,
		log:  logger.With(zap.String("module", "server")),
	}, nil
}

// Listen opens the listener selected by network: "tcp" listens on address,
// "vsock" on the given vsock port.
func Listen(network, address string, vsockPort uint32) (net.Listener, error) {
	switch network {
	case "tcp":
		l, err := net.Listen("tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return l, nil
	case "vsock":
		l, err := vsock.Listen(vsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown listen network %q", network)
	}
}

// Serve accepts connections on l until ctx is cancelled. It closes l.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("failed to close listener", zap.Error(err))
		}
	})
	defer stop()

	s.log.Info("server listening",
		zap.String("address", l.Addr().String()),
		zap.Int("max_workers", s.cfg.MaxWorkers),
	)

	semaphore := make(chan struct{}, s.cfg.MaxWorkers)

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("server stopped")
				return nil
			}
			s.log.Error("failed to accept connection", zap.Error(err))
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			s.log.Info("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.log.Error("failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil {
			s.log.Error("failed to close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(conn, maxRequestBytes)); err != nil {
		s.log.Error("failed to read request", zap.Error(err))
		return
	}

	response := s.Handle(buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}
