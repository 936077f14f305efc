package ipv4

import (
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/buffer"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

// DefaultTTL 新建报文的生存时间
const DefaultTTL = 255

// Packet 是装在以太网帧里的 IPv4 报文，拥有这个帧
type Packet struct {
	frame *buffer.Frame
}

// NewPacket 返回一个只有20字节首部的报文：版本4，标识0，TTL 255
func NewPacket() *Packet {
	f := buffer.NewFrame()
	f.SetPayloadSize(header.IPv4MinimumSize)
	f.Header().SetType(header.IPv4ProtocolNumber)
	header.IPv4(f.Payload()).Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: header.IPv4MinimumSize,
		TTL:         DefaultTTL,
	})
	return &Packet{frame: f}
}

// FromFrame wraps a received frame. The header is not validated.
func FromFrame(f *buffer.Frame) *Packet {
	return &Packet{frame: f}
}

// Frame returns the carrying ethernet frame.
func (p *Packet) Frame() *buffer.Frame {
	return p.frame
}

// Header returns a view of the IPv4 header and everything after it.
func (p *Packet) Header() header.IPv4 {
	return header.IPv4(p.frame.Payload())
}

// Payload 返回首部之后、总长度以内的数据
func (p *Packet) Payload() buffer.View {
	h := p.Header()
	v := p.frame.Payload()
	v.TrimFront(int(h.HeaderLength()))
	v.CapLength(int(h.PayloadLength()))
	return v
}

// SetPayloadSize 调整负载长度并同步总长度字段
func (p *Packet) SetPayloadSize(n int) *tcpip.Error {
	h := p.Header()
	total := int(h.HeaderLength()) + n
	if n < 0 || total > 0xffff {
		return tcpip.ErrMessageTooLong
	}
	if err := p.frame.SetPayloadSize(total); err != nil {
		return err
	}
	p.Header().SetTotalLength(uint16(total))
	return nil
}

func (p *Packet) String() string {
	return p.Header().String()
}
