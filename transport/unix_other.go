//go:build !linux

package transport

import "net"

// PeerCredentials returns the credentials of the process at the
// other end of c. It is only supported on Linux, other platforms
// always return ErrNoCredentials.
func PeerCredentials(c net.Conn) (Credentials, error) {
	return Credentials{}, ErrNoCredentials
}
