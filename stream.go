package slip

import (
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the number of bytes a [Stream] requests per
// read when StreamOptions.ChunkSize is not set.
const DefaultChunkSize = 4096

// ErrNotWritable is returned by [Stream.WriteMsg] on a stream
// created with [NewReader].
var ErrNotWritable = errors.New("slip stream is not writable")

// StreamOptions configures a [Stream].
type StreamOptions struct {
	Options

	// ChunkSize is the maximum number of bytes to read from the
	// underlying reader at once. If zero or negative,
	// DefaultChunkSize is used.
	//
	// Low bandwidth or bursty links such as serial ports may want a
	// ChunkSize of 1, so that readers which block until the buffer is
	// full hand over each byte as it arrives.
	ChunkSize int
}

// A Stream sends and receives SLIP encoded messages over a byte
// stream.
//
// Stream is not safe for concurrent use. Reading and writing from
// separate goroutines is fine if the underlying io.ReadWriter allows
// it.
type Stream struct {
	r   io.Reader
	w   io.Writer
	drv *Driver
	buf []byte
	// truncated is the error for an unterminated packet at the end
	// of the stream, returned once the driver's queue is drained.
	truncated error
}

// NewStream returns a Stream that reads and writes messages over rw.
func NewStream(rw io.ReadWriter, opts *StreamOptions) *Stream {
	return newStream(rw, rw, opts)
}

// NewReader returns a Stream that only reads messages from r.
func NewReader(r io.Reader, opts *StreamOptions) *Stream {
	return newStream(r, nil, opts)
}

func newStream(r io.Reader, w io.Writer, opts *StreamOptions) *Stream {
	var (
		dopts *Options
		chunk = DefaultChunkSize
	)
	if opts != nil {
		dopts = &opts.Options
		if opts.ChunkSize > 0 {
			chunk = opts.ChunkSize
		}
	}
	return &Stream{
		r:   r,
		w:   w,
		drv: NewDriver(dopts),
		buf: make([]byte, chunk),
	}
}

// Driver returns the stream's Driver.
func (s *Stream) Driver() *Driver {
	return s.drv
}

// WriteMsg encodes msg and writes the packet to the stream.
//
// Partial writes are retried until the whole packet is written. A
// write that makes no progress and reports no error fails with
// io.ErrShortWrite.
func (s *Stream) WriteMsg(msg []byte) error {
	if s.w == nil {
		return ErrNotWritable
	}
	return writeAll(s.w, s.drv.Send(msg))
}

func writeAll(w io.Writer, packet []byte) error {
	for len(packet) > 0 {
		n, err := w.Write(packet)
		packet = packet[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// ReadMsg returns the next message from the stream.
//
// ReadMsg reads from the underlying stream as needed until a
// complete packet is available. If the packet is invalid, ReadMsg
// returns a [*ProtocolError], and the next call returns the message
// from the following packet.
//
// When the stream ends, ReadMsg returns any remaining messages, then
// a [*ProtocolError] with reason [ErrUnterminated] if the stream
// stopped partway through a packet, then io.EOF.
//
// A zero length message is a valid message, distinct from the end of
// the stream.
func (s *Stream) ReadMsg() ([]byte, error) {
	for {
		msg, err := s.drv.Get(false)
		switch {
		case errors.Is(err, ErrNoMessage):
		case errors.Is(err, io.EOF):
			if s.truncated != nil {
				err, s.truncated = s.truncated, nil
			}
			return nil, err
		default:
			return msg, err
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.drv.Receive(s.buf[:n])
		}
		if errors.Is(err, io.EOF) {
			// Queued messages are returned before the error for
			// the truncated packet, which came after them.
			s.truncated = s.drv.Close()
		} else if err != nil {
			return nil, err
		}
	}
}

// Messages returns an iterator over the stream's messages.
//
// Protocol errors are yielded alongside messages, and iteration
// continues after them. Iteration stops at the end of the stream, or
// after yielding any other read error.
func (s *Stream) Messages() iter.Seq2[[]byte, error] {
	return messages(s.ReadMsg)
}

func messages(read func() ([]byte, error)) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			msg, err := read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(msg, err) {
				return
			}
			if err != nil && !IsProtocolError(err) {
				return
			}
		}
	}
}
