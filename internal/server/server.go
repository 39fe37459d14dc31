package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oblq/fanctl/internal/state"
)

// ErrTransport wraps read and write failures on the active connection.
var ErrTransport = errors.New("transport error")

const (
	DefaultAddr         = ":4242"
	DefaultIdleTimeout  = 60 * time.Second
	DefaultPollInterval = 50 * time.Millisecond

	writeTimeout = 5 * time.Second
	acceptPause  = 100 * time.Millisecond
)

// Fan is the fan control surface the commands act on.
type Fan interface {
	SetManual(duty uint8)
	SetAuto()
}

// StateReader exposes the shared system state.
type StateReader interface {
	Snapshot() state.Snapshot
}

type Config struct {
	Addr         string
	FrameSize    int
	IdleTimeout  time.Duration
	PollInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Server is the single client command channel.
//
// The per-connection state machine (listening, connected, awaiting frame,
// dispatching, closed) only advances inside Poll. Serve drives Poll from its
// own goroutine; a cooperative caller can drive it between other work instead.
type Server struct {
	mutex sync.Mutex

	cfg   Config
	fan   Fan
	state StateReader
	log   *zap.Logger

	ln     *net.TCPListener
	active *connection
	closed bool
}

type connection struct {
	id           string
	conn         *net.TCPConn
	frame        *frame
	lastActivity time.Time
	log          *zap.Logger
}

func New(cfg Config, fan Fan, st StateReader, logger *zap.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		fan:   fan,
		state: st,
		log:   logger.Named("server"),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	addr, err := net.ResolveTCPAddr("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", s.cfg.Addr, err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.mutex.Lock()
	s.ln = ln
	s.mutex.Unlock()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Int("frame_size", s.cfg.FrameSize))
	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve polls until ctx is done, then closes the server.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()

	for {
		if err := s.Poll(ctx, s.cfg.PollInterval); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Poll advances the connection state machine for at most budget.
// It only returns an error when ctx is done or the listener is gone.
func (s *Server) Poll(ctx context.Context, budget time.Duration) error {
	if budget <= 0 {
		budget = s.cfg.PollInterval
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || s.ln == nil {
		return net.ErrClosed
	}

	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.active == nil {
			if err := s.accept(deadline); err != nil {
				return err
			}
			continue
		}

		s.service(deadline)
	}

	return nil
}

// Close drops the active connection and the listener.
func (s *Server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.active != nil {
		s.closeConn("shutdown")
	}
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// accept waits for a client until deadline. Further clients stay in the
// backlog until the active connection closes.
func (s *Server) accept(deadline time.Time) error {
	if err := s.ln.SetDeadline(deadline); err != nil {
		return err
	}

	conn, err := s.ln.AcceptTCP()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		s.log.Warn("accept failed", zap.Error(err))
		pause := time.Until(deadline)
		if pause > acceptPause {
			pause = acceptPause
		}
		time.Sleep(pause)
		return nil
	}

	id := uuid.NewString()
	s.active = &connection{
		id:           id,
		conn:         conn,
		frame:        newFrame(s.cfg.FrameSize),
		lastActivity: time.Now(),
		log:          s.log.With(zap.String("session", id), zap.Stringer("remote", conn.RemoteAddr())),
	}
	s.active.log.Info("client connected")

	// handshake: one empty frame
	s.active.frame.load("")
	if err := s.flush(); err != nil {
		s.abortConn(err)
	}
	return nil
}

// service reads what is available until deadline and dispatches full frames.
func (s *Server) service(deadline time.Time) {
	c := s.active

	if time.Since(c.lastActivity) > s.cfg.IdleTimeout {
		s.closeConn("idle timeout")
		return
	}

	readDeadline := deadline
	if idle := c.lastActivity.Add(s.cfg.IdleTimeout); idle.Before(readDeadline) {
		readDeadline = idle
	}
	if err := c.conn.SetReadDeadline(readDeadline); err != nil {
		s.abortConn(fmt.Errorf("%w: %v", ErrTransport, err))
		return
	}

	n, err := c.conn.Read(c.frame.free())
	if n > 0 {
		c.frame.advance(n)
		c.lastActivity = time.Now()
		c.log.Debug("segment received", zap.Int("bytes", n), zap.Int("recv_len", c.frame.recvLen))
	}

	if c.frame.complete() {
		s.dispatch()
		if s.active == nil {
			return
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
		if time.Since(c.lastActivity) > s.cfg.IdleTimeout {
			s.closeConn("idle timeout")
		}
	case errors.Is(err, io.EOF):
		s.closeConn("peer closed")
	default:
		s.abortConn(fmt.Errorf("%w: read: %v", ErrTransport, err))
	}
}

func (s *Server) dispatch() {
	c := s.active
	line := c.frame.line()

	cmd, err := parseCommand(line)
	resp := s.execute(cmd, err)

	c.frame.exchanges++
	c.log.Info("command",
		zap.String("line", line),
		zap.Int("exchange", c.frame.exchanges),
		zap.NamedError("result", err),
	)

	c.frame.resetRecv()
	c.frame.load(resp)
	if err := s.flush(); err != nil {
		s.abortConn(err)
	}
}

// flush writes the pending part of the send buffer.
func (s *Server) flush() error {
	c := s.active
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	for len(c.frame.pending()) > 0 {
		n, err := c.conn.Write(c.frame.pending())
		c.frame.sentLen += n
		if err != nil {
			return fmt.Errorf("%w: write: %v", ErrTransport, err)
		}
	}
	c.lastActivity = time.Now()
	return nil
}

// closeConn closes gracefully, falling back to an abort when the orderly
// shutdown of the write side fails.
func (s *Server) closeConn(reason string) {
	c := s.active
	s.active = nil

	if err := c.conn.CloseWrite(); err != nil {
		c.log.Warn("orderly close failed, aborting", zap.String("reason", reason), zap.Error(err))
		abort(c.conn)
		return
	}
	if err := c.conn.Close(); err != nil {
		c.log.Warn("close failed", zap.Error(err))
	}
	c.log.Info("client disconnected", zap.String("reason", reason), zap.Int("exchanges", c.frame.exchanges))
}

func (s *Server) abortConn(err error) {
	c := s.active
	s.active = nil

	c.log.Warn("connection aborted", zap.Error(err), zap.Int("exchanges", c.frame.exchanges))
	abort(c.conn)
}

// abort resets the connection instead of the FIN handshake.
func abort(conn *net.TCPConn) {
	_ = conn.SetLinger(0)
	_ = conn.Close()
}
