package header_test

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	localMAC  = tcpip.LinkAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	remoteMAC = tcpip.LinkAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	localIP   = tcpip.Address{172, 23, 71, 108}
	remoteIP  = tcpip.Address{172, 23, 71, 14}
)

func TestEthernetEncode(t *testing.T) {
	b := header.Ethernet(make([]byte, header.EthernetMinimumSize))
	b.Encode(&header.EthernetFields{
		SrcAddr: localMAC,
		DstAddr: remoteMAC,
		Type:    header.ARPProtocolNumber,
	})

	assert.Equal(t, localMAC, b.SourceAddress())
	assert.Equal(t, remoteMAC, b.DestinationAddress())
	assert.Equal(t, header.ARPProtocolNumber, b.Type())
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0, 0x02, 0x02, 0, 0, 0, 0, 0x01, 0x08, 0x06}, []byte(b))
}

func TestARPRoundTripThroughGopacket(t *testing.T) {
	buf := make([]byte, header.EthernetMinimumSize+header.ARPSize)
	eth := header.Ethernet(buf)
	eth.Encode(&header.EthernetFields{SrcAddr: localMAC, DstAddr: tcpip.BroadcastLinkAddress, Type: header.ARPProtocolNumber})

	a := header.ARP(buf[header.EthernetMinimumSize:])
	a.SetIPv4OverEthernet()
	a.SetOp(header.ARPRequest)
	a.SetHardwareAddressSender(localMAC)
	a.SetProtocolAddressSender(localIP)
	a.SetProtocolAddressTarget(remoteIP)
	require.True(t, a.IsValid())

	pkt := gopacket.NewPacket(buf, layers.LayerTypeEthernet, gopacket.Default)
	l := pkt.Layer(layers.LayerTypeARP)
	require.NotNil(t, l)
	arp := l.(*layers.ARP)
	assert.Equal(t, layers.LinkTypeEthernet, arp.AddrType)
	assert.Equal(t, layers.EthernetTypeIPv4, arp.Protocol)
	assert.Equal(t, uint16(layers.ARPRequest), arp.Operation)
	assert.Equal(t, localMAC[:], arp.SourceHwAddress)
	assert.Equal(t, localIP[:], arp.SourceProtAddress)
	assert.Equal(t, remoteIP[:], arp.DstProtAddress)
}

func TestARPIsValidRejects(t *testing.T) {
	good := func() header.ARP {
		a := header.ARP(make([]byte, header.ARPSize))
		a.SetIPv4OverEthernet()
		return a
	}

	assert.True(t, good().IsValid())
	assert.False(t, header.ARP(make([]byte, header.ARPSize-1)).IsValid())

	a := good()
	a[1] = 6 // IEEE 802
	assert.False(t, a.IsValid())

	a = good()
	a[2] = 0x86
	a[3] = 0xdd
	assert.False(t, a.IsValid())

	a = good()
	a[4] = 8
	assert.False(t, a.IsValid())

	a = good()
	a[5] = 16
	assert.False(t, a.IsValid())
}

func newIPv4(payload []byte) header.IPv4 {
	b := header.IPv4(make([]byte, header.IPv4MinimumSize+len(payload)))
	b.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(len(b)),
		TTL:         255,
		Protocol:    header.ICMPv4ProtocolNumber,
		SrcAddr:     localIP,
		DstAddr:     remoteIP,
	})
	copy(b[header.IPv4MinimumSize:], payload)
	b.CalculateChecksum()
	return b
}

func TestIPv4EncodeMatchesGopacket(t *testing.T) {
	b := newIPv4([]byte{1, 2, 3})
	require.True(t, b.IsValid(len(b)))
	require.True(t, b.ChecksumValid())

	pkt := gopacket.NewPacket(b, layers.LayerTypeIPv4, gopacket.Default)
	l := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, l)
	ip := l.(*layers.IPv4)
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, uint8(255), ip.TTL)
	assert.Equal(t, layers.IPProtocolICMPv4, ip.Protocol)
	assert.Equal(t, b.Checksum(), ip.Checksum)
	assert.Equal(t, localIP[:], []byte(ip.SrcIP.To4()))
	assert.Equal(t, remoteIP[:], []byte(ip.DstIP.To4()))
	assert.Equal(t, []byte{1, 2, 3}, b.Payload())
}

func TestIPv4SetVersionAndHeaderLength(t *testing.T) {
	b := header.IPv4(make([]byte, header.IPv4MinimumSize))
	b.SetVersion(4)
	b.SetHeaderLength(24)
	assert.Equal(t, uint8(4), b.Version())
	assert.Equal(t, uint8(24), b.HeaderLength())

	b.SetVersion(6)
	assert.Equal(t, uint8(24), b.HeaderLength())
	assert.Equal(t, uint8(6), b.Version())
}

func TestIPv4IsValid(t *testing.T) {
	b := newIPv4(nil)
	assert.True(t, b.IsValid(len(b)))
	assert.False(t, b.IsValid(header.IPv4MinimumSize-1))

	b = newIPv4(nil)
	b.SetVersion(6)
	assert.False(t, b.IsValid(len(b)), "wrong version")

	b = newIPv4(nil)
	b.SetHeaderLength(16)
	assert.False(t, b.IsValid(len(b)), "header shorter than minimum")

	b = newIPv4(nil)
	b.SetHeaderLength(24)
	assert.False(t, b.IsValid(len(b)), "header longer than total length")

	b = newIPv4([]byte{1, 2, 3, 4})
	b.SetTotalLength(uint16(len(b) + 1))
	assert.False(t, b.IsValid(len(b)), "total length beyond data")
}

func TestIPv4ChecksumDetectsCorruption(t *testing.T) {
	b := newIPv4([]byte{9})
	require.True(t, b.ChecksumValid())
	b.SetTTL(b.TTL() - 1)
	assert.False(t, b.ChecksumValid())
	b.CalculateChecksum()
	assert.True(t, b.ChecksumValid())
}

func TestICMPv4Echo(t *testing.T) {
	b := header.ICMPv4(make([]byte, header.ICMPv4EchoMinimumSize+3))
	b.SetType(header.ICMPv4Echo)
	b.SetCode(0)
	b.SetIdent(5)
	b.SetSequence(1)
	copy(b.Data(), []byte{1, 2, 3})
	b.CalculateChecksum()

	require.True(t, b.ChecksumValid())
	assert.Equal(t, header.ICMPv4Echo, b.Type())
	assert.Equal(t, uint16(5), b.Ident())
	assert.Equal(t, uint16(1), b.Sequence())
	assert.Equal(t, []byte{1, 2, 3}, b.Data())

	pkt := gopacket.NewPacket(b, layers.LayerTypeICMPv4, gopacket.Default)
	l := pkt.Layer(layers.LayerTypeICMPv4)
	require.NotNil(t, l)
	icmp := l.(*layers.ICMPv4)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), icmp.TypeCode.Type())
	assert.Equal(t, uint16(5), icmp.Id)
	assert.Equal(t, uint16(1), icmp.Seq)
	assert.Equal(t, b.Checksum(), icmp.Checksum)
}

func TestICMPv4TypeString(t *testing.T) {
	assert.Equal(t, "echo-request", header.ICMPv4Echo.String())
	assert.Equal(t, "echo-reply", header.ICMPv4EchoReply.String())
	assert.Equal(t, "type(42)", header.ICMPv4Type(42).String())
}
