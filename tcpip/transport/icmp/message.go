package icmp

import (
	"fmt"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/network/ipv4"
)

// Message 是装在 IPv4 报文里的 ICMP 报文，拥有这个报文
type Message struct {
	pkt *ipv4.Packet
}

// NewEcho 构造一个回显报文（请求或应答），校验和尚未计算
func NewEcho(typ header.ICMPv4Type, ident, seq uint16, data []byte) (*Message, *tcpip.Error) {
	p := ipv4.NewPacket()
	if err := p.SetPayloadSize(header.ICMPv4EchoMinimumSize + len(data)); err != nil {
		return nil, err
	}
	h := header.ICMPv4(p.Payload())
	h.SetType(typ)
	h.SetCode(0)
	h.SetIdent(ident)
	h.SetSequence(seq)
	copy(h.Data(), data)
	return &Message{pkt: p}, nil
}

// FromPacket wraps a received packet. The message is not validated.
func FromPacket(p *ipv4.Packet) *Message {
	return &Message{pkt: p}
}

// Packet returns the carrying IPv4 packet.
func (m *Message) Packet() *ipv4.Packet {
	return m.pkt
}

// Header returns a view over the whole ICMP message.
func (m *Message) Header() header.ICMPv4 {
	return header.ICMPv4(m.pkt.Payload())
}

// IsEcho 报文长度足够容纳标识符和序号
func (m *Message) IsEcho() bool {
	return len(m.pkt.Payload()) >= header.ICMPv4EchoMinimumSize
}

// Data returns the echo payload.
func (m *Message) Data() []byte {
	return m.Header().Data()
}

// Source returns the IPv4 source address.
func (m *Message) Source() tcpip.Address {
	return m.pkt.Header().SourceAddress()
}

// SetDestination sets the IPv4 destination address.
func (m *Message) SetDestination(addr tcpip.Address) {
	m.pkt.Header().SetDestinationAddress(addr)
}

func (m *Message) String() string {
	h := m.pkt.Header()
	return fmt.Sprintf("%v %v -> %v", m.Header(), h.SourceAddress(), h.DestinationAddress())
}
