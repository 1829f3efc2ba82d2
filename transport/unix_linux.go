package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials returns the credentials of the process at the
// other end of c, which must be a Unix domain socket connection.
func PeerCredentials(c net.Conn) (Credentials, error) {
	uc, ok := c.(*net.UnixConn)
	if !ok {
		return Credentials{}, ErrNoCredentials
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return Credentials{}, err
	}

	var (
		cred    *unix.Ucred
		credErr error
	)
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return Credentials{}, err
	}
	if credErr != nil {
		return Credentials{}, fmt.Errorf("getting SO_PEERCRED: %w", credErr)
	}
	return Credentials{
		PID: cred.Pid,
		UID: cred.Uid,
		GID: cred.Gid,
	}, nil
}
