// Package transport provides the stream connections that SLIP runs
// over.
//
// SLIP delimits packets within a continuous byte stream, so only
// stream oriented networks are supported. Datagram networks are
// rejected: a datagram transport already delimits messages, and does
// not guarantee the ordered delivery that SLIP relies on.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotStream is returned when dialing or listening on a network
// that does not provide a byte stream.
var ErrNotStream = errors.New("not a stream network")

// ErrNoCredentials is returned by [PeerCredentials] when the peer's
// credentials cannot be determined.
var ErrNoCredentials = errors.New("peer credentials not available")

// Credentials identifies the process at the other end of a Unix
// domain socket.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

func (c Credentials) String() string {
	return fmt.Sprintf("pid=%d uid=%d gid=%d", c.PID, c.UID, c.GID)
}

// CheckNetwork returns an error wrapping [ErrNotStream] if network
// is not one of "tcp", "tcp4", "tcp6" or "unix".
func CheckNetwork(network string) error {
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
		return nil
	default:
		return fmt.Errorf("network %q: %w", network, ErrNotStream)
	}
}

// Dial connects to address on the named stream network.
func Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := CheckNetwork(network); err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// Listen listens for connections on the named stream network.
func Listen(ctx context.Context, network, address string) (net.Listener, error) {
	if err := CheckNetwork(network); err != nil {
		return nil, err
	}
	var lc net.ListenConfig
	return lc.Listen(ctx, network, address)
}
