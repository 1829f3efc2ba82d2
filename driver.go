package slip

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/creachadair/mds/queue"
)

// Options configures a [Driver], and the adapters that embed one.
//
// A nil *Options is equivalent to the zero value.
type Options struct {
	// OmitLeadingEnd, if true, makes the driver encode packets with
	// only a trailing End byte, as in the plain RFC 1055 framing. By
	// default packets also start with an End byte, which flushes any
	// line noise accumulated by the receiver.
	//
	// OmitLeadingEnd does not affect decoding: runs of End bytes are
	// always accepted.
	OmitLeadingEnd bool
}

func (o *Options) leadingEnd() bool {
	return o == nil || !o.OmitLeadingEnd
}

// A Driver encodes messages to SLIP packets, and decodes a stream of
// raw bytes back into messages.
//
// Bytes are fed to the driver with [Driver.Receive], in chunks of any
// size. Complete packets are decoded as soon as their terminating End
// byte arrives, and queued until retrieved with [Driver.Get]. Invalid
// packets are queued as [*ProtocolError] in the same order, so one
// bad packet does not prevent decoding of the ones after it.
//
// A Driver is safe for concurrent use, so that one goroutine can
// feed received data while another blocks in [Driver.Get] or
// [Driver.Wait].
type Driver struct {
	leadingEnd bool

	mu      sync.Mutex
	buf     []byte
	seps    int
	closed  bool
	results queue.Queue[result]
	// changed is closed and replaced whenever results are queued or
	// the driver is closed.
	changed chan struct{}
}

// result is a decoded message, or the error that prevented decoding
// it.
type result struct {
	msg []byte
	err error
}

// NewDriver returns a new Driver.
func NewDriver(opts *Options) *Driver {
	return &Driver{
		leadingEnd: opts.leadingEnd(),
		changed:    make(chan struct{}),
	}
}

// Send returns the SLIP packet for msg.
//
// Send does not change the state of the driver.
func (d *Driver) Send(msg []byte) []byte {
	n := encodedLen(msg) + 1
	if d.leadingEnd {
		n++
	}
	return AppendEncode(make([]byte, 0, n), msg, d.leadingEnd)
}

// Receive processes a chunk of raw bytes received from the
// transport.
//
// Every packet completed by data is decoded and queued for
// [Driver.Get]. Trailing bytes of an unfinished packet are buffered
// until a later call completes the packet.
//
// An End byte with nothing before it is an empty separator. Empty
// separators are skipped, except that every second consecutive one
// after a packet (or the start of the stream) completes the encoded
// empty message End End, and yields a zero length message. So one
// or two End bytes between packets are a single delimiter, but a run
// of three or four also yields one empty message.
//
// The driver does not limit how much it buffers while waiting for
// an End byte. Callers reading untrusted input should bound it
// themselves, for example with io.LimitReader or deadlines.
//
// Receive does nothing once the driver is closed.
func (d *Driver) Receive(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(data) == 0 {
		return
	}

	// The buffered bytes held no End, so only the new data needs
	// scanning for the first one.
	scan := len(d.buf)
	d.buf = append(d.buf, data...)
	queued := false
	start := 0
	for {
		i := bytes.IndexByte(d.buf[scan:], End)
		if i < 0 {
			break
		}
		body := d.buf[start : scan+i]
		start = scan + i + 1
		scan = start

		if len(body) == 0 {
			d.seps++
			if d.seps < 2 {
				continue
			}
			d.seps = 0
			d.results.Add(result{msg: []byte{}})
			queued = true
			continue
		}

		d.seps = 0
		msg, err := Decode(body)
		if err != nil {
			d.results.Add(result{err: err})
		} else {
			d.results.Add(result{msg: msg})
		}
		queued = true
	}
	if start > 0 {
		d.buf = append(d.buf[:0], d.buf[start:]...)
	}

	if queued {
		d.notifyLocked()
	}
}

func (d *Driver) notifyLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}

// Get returns the oldest decoded message.
//
// If the oldest queued packet failed to decode, Get returns its
// [*ProtocolError] instead. Each error is returned exactly once, and
// in order relative to the messages around it.
//
// When no message is queued and block is false, Get returns
// [ErrNoMessage]. When block is true, Get waits until another
// goroutine's call to [Driver.Receive] queues a message, or the
// driver is closed. Once the driver is closed and all queued messages
// have been retrieved, Get returns [io.EOF].
func (d *Driver) Get(block bool) ([]byte, error) {
	if block {
		return d.Wait(context.Background())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.results.Pop(); ok {
		return r.msg, r.err
	}
	if d.closed {
		return nil, io.EOF
	}
	return nil, ErrNoMessage
}

// Wait is like Get(true), but gives up and returns ctx.Err() when ctx
// is done.
func (d *Driver) Wait(ctx context.Context) ([]byte, error) {
	for {
		d.mu.Lock()
		if r, ok := d.results.Pop(); ok {
			d.mu.Unlock()
			return r.msg, r.err
		}
		if d.closed {
			d.mu.Unlock()
			return nil, io.EOF
		}
		changed := d.changed
		d.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close tells the driver that no more data will arrive.
//
// Messages that are already queued remain available from
// [Driver.Get]. If the stream ended partway through a packet, the
// incomplete packet is discarded, and Close returns a
// [*ProtocolError] with reason [ErrUnterminated].
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.notifyLocked()

	if len(d.buf) == 0 {
		return nil
	}
	err := protoErr(d.buf, len(d.buf), ErrUnterminated)
	d.buf = nil
	return err
}

// Buffered returns the number of received bytes that do not yet form
// a complete packet.
func (d *Driver) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

// Len returns the number of decoded messages and errors waiting to
// be retrieved with [Driver.Get].
func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results.Len()
}
