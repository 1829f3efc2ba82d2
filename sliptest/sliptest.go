// Package sliptest provides helpers for testing code that uses SLIP.
package sliptest

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danderson/slip"
	"github.com/rs/zerolog"
)

// Chunks returns a reader that returns each chunk from a separate
// call to Read, in order, and then io.EOF.
//
// A chunk larger than the caller's buffer is returned over several
// reads. Empty chunks are skipped.
func Chunks(chunks ...[]byte) io.Reader {
	return &chunkReader{chunks}
}

type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(bs []byte) (int, error) {
	for len(c.chunks) > 0 && len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(bs, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	return n, nil
}

// SplitEvery splits data into chunks of n bytes. The last chunk may
// be shorter.
func SplitEvery(data []byte, n int) [][]byte {
	if n <= 0 {
		panic("sliptest: SplitEvery chunk size must be positive")
	}
	var ret [][]byte
	for len(data) > n {
		ret = append(ret, data[:n])
		data = data[n:]
	}
	if len(data) > 0 {
		ret = append(ret, data)
	}
	return ret
}

// ShortWriter is an io.Writer that writes at most Max bytes to W per
// call, to exercise partial write handling.
type ShortWriter struct {
	W   io.Writer
	Max int
	// Calls counts the calls to Write.
	Calls int
}

func (s *ShortWriter) Write(bs []byte) (int, error) {
	s.Calls++
	if len(bs) > s.Max {
		bs = bs[:s.Max]
	}
	return s.W.Write(bs)
}

// Logger returns a logger that writes to t.Log.
func Logger(t testing.TB) *zerolog.Logger {
	ret := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return &ret
}

// Pipe returns both ends of a synchronous, in-memory SLIP
// connection. Both ends are closed when the test completes.
//
// As with net.Pipe, a WriteMsg blocks until the other end reads the
// data.
func Pipe(t testing.TB, opts *slip.Options) (*slip.Conn, *slip.Conn) {
	a, b := net.Pipe()
	ca, cb := slip.NewConn(a, opts), slip.NewConn(b, opts)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

// Server is a SLIP server running on the loopback interface for the
// duration of a test.
type Server struct {
	srv  *slip.Server
	addr string
	done chan error
}

// NewServer starts a server that serves connections with h. The
// server is shut down when the test completes.
func NewServer(t testing.TB, h slip.Handler, opts *slip.Options) *Server {
	t.Helper()
	ln, err := slip.Listen(context.Background(), "tcp", "127.0.0.1:0", opts)
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	ret := &Server{
		srv: &slip.Server{
			Handler: h,
			Logger:  Logger(t),
		},
		addr: ln.Addr().String(),
		done: make(chan error, 1),
	}
	go func() {
		ret.done <- ret.srv.Serve(context.Background(), ln)
	}()
	t.Cleanup(func() {
		if err := ret.srv.Close(); err != nil {
			t.Errorf("closing server: %v", err)
		}
		select {
		case err := <-ret.done:
			if !errors.Is(err, slip.ErrServerClosed) {
				t.Errorf("server stopped with unexpected error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("timed out waiting for server to stop")
		}
	})
	return ret
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// MustConn returns a connection to the server. It causes an
// immediate test failure with t.Fatal if it is unable to connect.
func (s *Server) MustConn(t testing.TB, opts *slip.Options) *slip.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ret, err := slip.Dial(ctx, "tcp", s.addr, opts)
	if err != nil {
		t.Fatalf("connecting to test server: %v", err)
	}
	t.Cleanup(func() { ret.Close() })
	return ret
}
