package slip

import (
	"context"
	"iter"
	"net"
	"sync"
	"time"

	"github.com/danderson/slip/transport"
)

// Dial connects to the SLIP peer at address on the named network.
//
// Only stream networks are supported: "tcp", "tcp4", "tcp6" and
// "unix". The remote end must also speak SLIP, Dial does no
// negotiation.
func Dial(ctx context.Context, network, address string, opts *Options) (*Conn, error) {
	c, err := transport.Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewConn(c, opts), nil
}

// NewConn returns a Conn that exchanges SLIP messages over c.
//
// The caller must not read from or write to c directly after calling
// NewConn, as that would corrupt the framing.
func NewConn(c net.Conn, opts *Options) *Conn {
	var sopts StreamOptions
	if opts != nil {
		sopts.Options = *opts
	}
	return &Conn{
		c:      c,
		stream: NewStream(c, &sopts),
	}
}

// Conn is a SLIP connection over a stream socket.
//
// ReadMsg must not be called concurrently. WriteMsg is safe for
// concurrent use, and each message is written atomically with
// respect to other WriteMsg calls.
type Conn struct {
	c      net.Conn
	stream *Stream

	writeMu sync.Mutex
}

// ReadMsg returns the next message received on the connection. See
// [Stream.ReadMsg] for details.
func (c *Conn) ReadMsg() ([]byte, error) {
	return c.stream.ReadMsg()
}

// WriteMsg sends msg on the connection.
func (c *Conn) WriteMsg(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.WriteMsg(msg)
}

// Messages returns an iterator over the messages received on the
// connection. See [Stream.Messages] for details.
func (c *Conn) Messages() iter.Seq2[[]byte, error] {
	return c.stream.Messages()
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.c.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

// SetDeadline sets the read and write deadlines of the underlying
// connection.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.c.SetDeadline(t)
}

// SetReadDeadline sets the read deadline of the underlying
// connection. A ReadMsg that times out can be retried, partially
// received packets are kept.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline of the underlying
// connection.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.c.SetWriteDeadline(t)
}

// NetConn returns the underlying connection. It must not be used to
// read or write data.
func (c *Conn) NetConn() net.Conn {
	return c.c
}

// Listen listens for SLIP connections on the named network. See
// [Dial] for the supported networks.
func Listen(ctx context.Context, network, address string, opts *Options) (*Listener, error) {
	ln, err := transport.Listen(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewListener(ln, opts), nil
}

// NewListener returns a Listener that accepts SLIP connections from
// ln.
func NewListener(ln net.Listener, opts *Options) *Listener {
	ret := &Listener{ln: ln}
	if opts != nil {
		ret.opts = *opts
	}
	return ret
}

// A Listener accepts SLIP connections.
type Listener struct {
	ln   net.Listener
	opts Options
}

// Accept waits for and returns the next connection. The returned
// Conn uses the same Options as the listener.
func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	opts := l.opts
	return NewConn(c, &opts), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops listening. Already accepted connections are not
// closed.
func (l *Listener) Close() error {
	return l.ln.Close()
}
