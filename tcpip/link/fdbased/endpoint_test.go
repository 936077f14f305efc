//go:build linux
// +build linux

package fdbased

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

var laddr = tcpip.LinkAddress{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

func newPair(t *testing.T) (*Endpoint, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	require.NoError(t, unix.SetNonblock(fds[1], true))
	return New(&Options{FD: fds[1], Address: laddr}), fds[0]
}

func TestReceiveWouldBlock(t *testing.T) {
	ep, _ := newPair(t)
	_, err := ep.Receive(make([]byte, 100))
	assert.Equal(t, tcpip.ErrWouldBlock, err)
	assert.Equal(t, laddr, ep.LinkAddress())
}

func TestReceiveAndTransmit(t *testing.T) {
	ep, peer := newPair(t)

	frame := make([]byte, header.EthernetMinimumSize+4)
	header.Ethernet(frame).Encode(&header.EthernetFields{
		SrcAddr: tcpip.LinkAddress{0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc},
		DstAddr: laddr,
		Type:    header.IPv4ProtocolNumber,
	})
	_, err := unix.Write(peer, frame)
	require.NoError(t, err)

	buf := make([]byte, 3000)
	n, terr := ep.Receive(buf)
	require.Nil(t, terr)
	assert.Equal(t, frame, buf[:n])

	require.Nil(t, ep.Transmit([]byte{9, 8, 7}))
	n, err = unix.Read(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, buf[:n])
}
