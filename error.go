package slip

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrBadEscape is the reason for a ProtocolError where an Esc
	// byte is followed by something other than EscEnd or EscEsc.
	ErrBadEscape = errors.New("invalid escape sequence")
	// ErrTrailingEscape is the reason for a ProtocolError where a
	// packet ends with an Esc byte.
	ErrTrailingEscape = errors.New("packet ends with escape byte")
	// ErrUnescapedEnd is the reason for a ProtocolError where an End
	// byte appears inside a packet body.
	ErrUnescapedEnd = errors.New("unescaped END byte inside packet")
	// ErrUnterminated is the reason for a ProtocolError where the
	// stream ended partway through a packet.
	ErrUnterminated = errors.New("unterminated packet at end of stream")

	// ErrNoMessage is returned by a non-blocking [Driver.Get] when no
	// decoded message is available.
	ErrNoMessage = errors.New("no message available")
)

// ProtocolError is the error returned when received bytes violate
// the SLIP protocol.
//
// Protocol errors are scoped to a single packet, and are not fatal:
// the packets that follow a ProtocolError are decoded normally.
type ProtocolError struct {
	// Packet is the offending packet, without delimiters.
	Packet []byte
	// Offset is the index in Packet where the violation was found.
	Offset int
	// Reason is one of ErrBadEscape, ErrTrailingEscape,
	// ErrUnescapedEnd or ErrUnterminated.
	Reason error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("slip protocol error at offset %d of packet % x: %s", e.Offset, e.Packet, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Reason
}

// Is reports whether target is a ProtocolError for the same packet
// and reason.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Offset == t.Offset && e.Reason == t.Reason && bytes.Equal(e.Packet, t.Packet)
}

func protoErr(packet []byte, offset int, reason error) *ProtocolError {
	return &ProtocolError{
		Packet: bytes.Clone(packet),
		Offset: offset,
		Reason: reason,
	}
}

// IsProtocolError reports whether err is, or wraps, a
// [*ProtocolError].
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
