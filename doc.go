// Package slip implements the SLIP framing protocol described in RFC
// 1055, which delimits messages within a byte stream.
//
// A message is an arbitrary sequence of bytes. To send it, it is
// encoded into a packet: every End byte (0xC0) in the message is
// replaced by the two bytes Esc EscEnd (0xDB 0xDC), every Esc byte
// (0xDB) by Esc EscEsc (0xDB 0xDD), and the result is terminated by
// an End byte. By default packets also start with an End byte, so
// that a receiver discards any noise it picked up before the packet.
//
// Receivers skip a lone End byte between packets. Two consecutive
// End bytes that directly follow a complete packet, or start the
// stream, are the encoding of an empty message. Longer runs are read
// the same way, pair by pair, so a run of three End bytes after a
// packet yields one empty message.
//
// SLIP provides framing and nothing else: there is no error
// detection, acknowledgement or retransmission. Packets with invalid
// escape sequences are reported as [*ProtocolError], and do not
// affect the decoding of other packets.
//
// # Layers
//
// [Encode] and [Decode] convert single messages and packets.
//
// A [Driver] decodes a stream of bytes delivered in chunks of any
// size, and queues the decoded messages.
//
// A [Stream] combines a Driver with an [io.ReadWriter], such as a
// file or serial port. [Conn], [Listener] and [Server] do the same for
// TCP and Unix domain sockets.
package slip
