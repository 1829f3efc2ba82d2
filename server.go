package slip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/slip/transport"
	"github.com/rs/zerolog"
)

// ErrServerClosed is returned by [Server.Serve] after [Server.Close]
// has been called.
var ErrServerClosed = errors.New("slip: server closed")

// A Handler serves one SLIP connection.
//
// ServeSLIP should exchange messages with c until the conversation
// is over, typically until c.ReadMsg returns io.EOF. The server
// closes c when ServeSLIP returns.
//
// ctx is canceled when the server shuts down, at which point c is
// also closed. ctx carries the server's logger, see [zerolog.Ctx].
type Handler interface {
	ServeSLIP(ctx context.Context, c *Conn)
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(ctx context.Context, c *Conn)

// ServeSLIP calls f(ctx, c).
func (f HandlerFunc) ServeSLIP(ctx context.Context, c *Conn) {
	f(ctx, c)
}

// Server accepts SLIP connections and hands each one to a Handler,
// in its own goroutine.
type Server struct {
	// Handler serves accepted connections. It must be set.
	Handler Handler
	// Logger receives connection lifecycle logs. If nil, nothing is
	// logged.
	Logger *zerolog.Logger

	mu        sync.Mutex
	closed    bool
	listeners mapset.Set[*Listener]
	conns     mapset.Set[*Conn]
	handlers  sync.WaitGroup
}

func (s *Server) logger() zerolog.Logger {
	if s.Logger == nil {
		return zerolog.Nop()
	}
	return *s.Logger
}

// ListenAndServe listens on the named network and address, and
// serves connections until ctx is done or the server is closed.
func (s *Server) ListenAndServe(ctx context.Context, network, address string, opts *Options) error {
	ln, err := Listen(ctx, network, address, opts)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done, the listener
// fails, or the server is closed. Serve always closes ln before
// returning.
//
// Connections that are still being served when Serve returns are not
// affected, unless ctx is done. Use [Server.Close] to stop all
// connections.
func (s *Server) Serve(ctx context.Context, ln *Listener) error {
	if s.Handler == nil {
		ln.Close()
		return errors.New("slip: Server.Handler is nil")
	}
	if !s.trackListener(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	log := s.logger().With().Str("listen", ln.Addr().String()).Logger()
	log.Info().Msg("serving SLIP")

	for {
		c, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("accept failed")
			return fmt.Errorf("accepting connection: %w", err)
		}
		if !s.trackConn(c) {
			c.Close()
			return ErrServerClosed
		}
		go s.serveConn(ctx, c, log)
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn, log zerolog.Logger) {
	defer s.handlers.Done()
	defer s.untrackConn(c)
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	logCtx := log.With().Str("remote", c.RemoteAddr().String())
	if cred, err := transport.PeerCredentials(c.NetConn()); err == nil {
		logCtx = logCtx.Str("peer", cred.String())
	}
	log = logCtx.Logger()

	log.Debug().Msg("connection accepted")
	s.Handler.ServeSLIP(log.WithContext(ctx), c)
	log.Debug().Msg("connection finished")
}

// Close stops all listeners passed to [Server.Serve], closes all
// active connections, and waits for their handlers to return.
func (s *Server) Close() error {
	var (
		lns   mapset.Set[*Listener]
		conns mapset.Set[*Conn]
	)
	{
		s.mu.Lock()
		s.closed = true
		lns, s.listeners = s.listeners, nil
		conns, s.conns = s.conns, nil
		s.mu.Unlock()
	}

	var errs []error
	for ln := range lns {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	for c := range conns {
		c.Close()
	}
	s.handlers.Wait()
	return errors.Join(errs...)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln *Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.listeners == nil {
		s.listeners = mapset.New[*Listener]()
	}
	s.listeners.Add(ln)
	return true
}

func (s *Server) untrackListener(ln *Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// trackConn registers c as active. It must be called before the
// handler goroutine starts, so that Close waits for it.
func (s *Server) trackConn(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.conns == nil {
		s.conns = mapset.New[*Conn]()
	}
	s.conns.Add(c)
	s.handlers.Add(1)
	return true
}

func (s *Server) untrackConn(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
