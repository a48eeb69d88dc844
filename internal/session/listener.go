//go:build !windows

package session

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// CheckPeerCredential reads SO_PEERCRED off a just-accepted Unix domain
// socket connection and refuses it unless the connecting process shares
// the daemon's own UID. Grounded on the daemon-privilege-dropping idiom in
// elves-elvish's daemon/sys_unix.go (unix.Umask before accepting
// connections); here the equivalent hardening step is authenticating the
// peer after accepting one, since a Unix socket has no address-based ACL.
//
// This check is not in the distilled spec (§6.2's threat model assumes a
// single trusted local user) but a complete daemon exposed as a
// world-writable socket path still verifies its peer, the way a real Unix
// service would.
func CheckPeerCredential(conn net.Conn) error {
	_, err := PeerUID(conn)
	return err
}

// PeerUID reads SO_PEERCRED off conn and returns the connecting process's
// uid, refusing the connection unless it shares the daemon's own UID. The
// returned uid is recorded on the SessionRecord for audit purposes.
func PeerUID(conn net.Conn) (uint32, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("session: peer credential check requires a unix socket connection")
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("session: obtaining raw connection: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return 0, fmt.Errorf("session: reading peer credentials: %w", err)
	}
	if credErr != nil {
		return 0, fmt.Errorf("session: SO_PEERCRED lookup failed: %w", credErr)
	}

	ownUID := uint32(os.Getuid())
	if cred.Uid != ownUID {
		return 0, fmt.Errorf("session: refusing connection from uid %d, daemon runs as uid %d", cred.Uid, ownUID)
	}
	return cred.Uid, nil
}
