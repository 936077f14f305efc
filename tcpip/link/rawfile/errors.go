//go:build linux
// +build linux

package rawfile

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/impact-eintr/bootnet/tcpip"
)

const maxErrno = 134

var translations [maxErrno]*tcpip.Error

// TranslateErrno translate an errno from the unix package into a
// *tcpip.Error.
//
// Valid, but unreconigized errnos will be translated to
// tcpip.ErrInvalidEndpointState (EINVAL).
func TranslateErrno(e unix.Errno) *tcpip.Error {
	if int(e) < len(translations) {
		if err := translations[e]; err != nil {
			return err
		}
	}
	return tcpip.ErrInvalidEndpointState
}

func addTranslation(host unix.Errno, trans *tcpip.Error) {
	if translations[host] != nil {
		panic(fmt.Sprintf("duplicate translation for host errno %q (%d)", host.Error(), host))
	}
	translations[host] = trans
}

func init() {
	addTranslation(unix.EEXIST, tcpip.ErrDuplicateAddress)
	addTranslation(unix.ENETUNREACH, tcpip.ErrNetworkUnreachable)
	addTranslation(unix.EHOSTUNREACH, tcpip.ErrNoRoute)
	addTranslation(unix.EINVAL, tcpip.ErrInvalidEndpointState)
	addTranslation(unix.EADDRNOTAVAIL, tcpip.ErrBadLocalAddress)
	addTranslation(unix.EPIPE, tcpip.ErrClosedForSend)
	addTranslation(unix.EWOULDBLOCK, tcpip.ErrWouldBlock)
	addTranslation(unix.ETIMEDOUT, tcpip.ErrTimeout)
	addTranslation(unix.ENOTSUP, tcpip.ErrNotSupported)
	addTranslation(unix.ENOTCONN, tcpip.ErrNotConnected)
	addTranslation(unix.ECONNRESET, tcpip.ErrConnectionReset)
	addTranslation(unix.ECONNABORTED, tcpip.ErrAborted)
	addTranslation(unix.EMSGSIZE, tcpip.ErrMessageTooLong)
	addTranslation(unix.ENOBUFS, tcpip.ErrNoBufferSpace)
	addTranslation(unix.EFAULT, tcpip.ErrBadAddress)
}
