package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

func TestFramePayloadSize(t *testing.T) {
	f := NewFrame()
	assert.Equal(t, 0, f.PayloadSize())
	assert.Equal(t, header.EthernetMinimumSize, f.Len())

	require.Nil(t, f.SetPayloadSize(PayloadCapacity))
	assert.Equal(t, FrameCapacity, f.Len())
	assert.Len(t, f.Payload(), PayloadCapacity)

	assert.Equal(t, tcpip.ErrMessageTooLong, f.SetPayloadSize(PayloadCapacity+1))
	assert.Equal(t, PayloadCapacity, f.PayloadSize(), "size unchanged after rejection")
	assert.Equal(t, tcpip.ErrMessageTooLong, f.SetPayloadSize(-1))
}

func TestFrameSetReceived(t *testing.T) {
	f := NewFrame()
	assert.Equal(t, tcpip.ErrMalformedHeader, f.SetReceived(header.EthernetMinimumSize-1))
	require.Nil(t, f.SetReceived(60))
	assert.Equal(t, 60-header.EthernetMinimumSize, f.PayloadSize())
}

func TestFrameSharesBacking(t *testing.T) {
	f := NewFrame()
	require.Nil(t, f.SetPayloadSize(3))
	copy(f.Payload(), []byte{1, 2, 3})
	f.Header().SetType(header.IPv4ProtocolNumber)

	b := f.Bytes()
	assert.Equal(t, []byte{0x08, 0x00, 1, 2, 3}, []byte(b[12:]))

	c := f.Clone()
	c.Payload()[0] = 9
	assert.Equal(t, byte(1), f.Payload()[0])
}

func TestViewTrimAndCap(t *testing.T) {
	v := NewViewFromBytes([]byte("hello world"))
	v.TrimFront(6)
	assert.Equal(t, "world", string(v))
	v.CapLength(3)
	assert.Equal(t, "wor", string(v))
	assert.Equal(t, 3, cap(v))
}
