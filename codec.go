package slip

import "bytes"

// Reserved SLIP byte values, as defined by RFC 1055.
const (
	// End delimits packets.
	End = 0xC0
	// Esc starts an escape sequence.
	Esc = 0xDB
	// EscEnd follows Esc to encode an End byte in the message.
	EscEnd = 0xDC
	// EscEsc follows Esc to encode an Esc byte in the message.
	EscEsc = 0xDD
)

// Encode returns the SLIP packet for msg.
//
// The packet starts and ends with an End byte, and every End or Esc
// byte in msg is replaced by the corresponding two byte escape
// sequence. Any byte sequence can be encoded, including an empty
// one.
func Encode(msg []byte) []byte {
	return AppendEncode(make([]byte, 0, encodedLen(msg)+2), msg, true)
}

// AppendEncode appends the SLIP packet for msg to dst and returns the
// extended slice.
//
// If leadingEnd is false, the packet is not prefixed with an End
// byte. RFC 1055 only requires the trailing End, the leading one
// helps receivers discard line noise that arrived before the packet.
func AppendEncode(dst, msg []byte, leadingEnd bool) []byte {
	if leadingEnd {
		dst = append(dst, End)
	}
	for _, b := range msg {
		switch b {
		case End:
			dst = append(dst, Esc, EscEnd)
		case Esc:
			dst = append(dst, Esc, EscEsc)
		default:
			dst = append(dst, b)
		}
	}
	return append(dst, End)
}

// encodedLen returns the length of msg once escaped, excluding
// delimiters.
func encodedLen(msg []byte) int {
	return len(msg) + bytes.Count(msg, []byte{End}) + bytes.Count(msg, []byte{Esc})
}

// Decode returns the message carried by packet.
//
// packet must contain exactly one packet. Leading and trailing End
// bytes are ignored, so both a bare packet body and a complete
// delimited packet are accepted. Decode does no buffering, see
// [Driver] for decoding a byte stream.
//
// If packet contains an invalid byte sequence, Decode returns a
// [*ProtocolError].
func Decode(packet []byte) ([]byte, error) {
	body := trimEnd(packet)
	ret := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		switch b := body[i]; b {
		case End:
			return nil, protoErr(body, i, ErrUnescapedEnd)
		case Esc:
			if i+1 == len(body) {
				return nil, protoErr(body, i, ErrTrailingEscape)
			}
			i++
			switch body[i] {
			case EscEnd:
				ret = append(ret, End)
			case EscEsc:
				ret = append(ret, Esc)
			default:
				return nil, protoErr(body, i-1, ErrBadEscape)
			}
		default:
			ret = append(ret, b)
		}
	}
	return ret, nil
}

// IsValid reports whether packet is a well formed SLIP packet, that
// is whether [Decode] would succeed on it.
func IsValid(packet []byte) bool {
	body := trimEnd(packet)
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case End:
			return false
		case Esc:
			if i+1 == len(body) {
				return false
			}
			i++
			if body[i] != EscEnd && body[i] != EscEsc {
				return false
			}
		}
	}
	return true
}

// trimEnd strips leading and trailing End bytes from packet.
func trimEnd(packet []byte) []byte {
	for len(packet) > 0 && packet[0] == End {
		packet = packet[1:]
	}
	for len(packet) > 0 && packet[len(packet)-1] == End {
		packet = packet[:len(packet)-1]
	}
	return packet
}
