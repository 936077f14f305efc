package buffer

import (
	"fmt"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

const (
	// FrameCapacity 是一个以太网帧缓冲区的固定大小
	FrameCapacity = 3000

	// PayloadCapacity 是去掉以太网头部后可用的负载空间
	PayloadCapacity = FrameCapacity - header.EthernetMinimumSize
)

// Frame 是固定大小的以太网帧缓冲区：14字节头部加负载。
// payloadSize 记录逻辑负载长度，永远不会超过缓冲区容量。
type Frame struct {
	buf         [FrameCapacity]byte
	payloadSize int
}

// NewFrame returns a zeroed frame with an empty payload.
func NewFrame() *Frame {
	return &Frame{}
}

// Header returns a view of the ethernet header.
func (f *Frame) Header() header.Ethernet {
	return header.Ethernet(f.buf[:header.EthernetMinimumSize])
}

// Payload returns the logical payload.
func (f *Frame) Payload() View {
	return View(f.buf[header.EthernetMinimumSize : header.EthernetMinimumSize+f.payloadSize])
}

// PayloadSize returns the logical payload length.
func (f *Frame) PayloadSize() int {
	return f.payloadSize
}

// SetPayloadSize 设置负载长度，超出容量时返回 ErrMessageTooLong 并保持原值
func (f *Frame) SetPayloadSize(n int) *tcpip.Error {
	if n < 0 || n > PayloadCapacity {
		return tcpip.ErrMessageTooLong
	}
	f.payloadSize = n
	return nil
}

// Len is the number of bytes that go on the wire.
func (f *Frame) Len() int {
	return header.EthernetMinimumSize + f.payloadSize
}

// Bytes returns header plus payload, ready for transmission.
func (f *Frame) Bytes() View {
	return View(f.buf[:f.Len()])
}

// Raw exposes the whole backing array so a NIC can receive into it.
func (f *Frame) Raw() []byte {
	return f.buf[:]
}

// SetReceived 根据网卡实际写入的字节数设置负载长度
func (f *Frame) SetReceived(n int) *tcpip.Error {
	if n < header.EthernetMinimumSize {
		return tcpip.ErrMalformedHeader
	}
	return f.SetPayloadSize(n - header.EthernetMinimumSize)
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}

func (f *Frame) String() string {
	return fmt.Sprintf("%v payload=%d", f.Header(), f.payloadSize)
}
