package stack_test

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/faketime"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/link/channel"
	"github.com/impact-eintr/bootnet/tcpip/stack"
)

var (
	localMAC   = tcpip.LinkAddress{0x02, 0, 0, 0, 0, 0x01}
	gatewayMAC = tcpip.LinkAddress{0x02, 0, 0, 0, 0, 0xfe}

	opts = stack.Options{
		Address: tcpip.Address{172, 23, 71, 108},
		Netmask: tcpip.Address{255, 255, 255, 0},
		Gateway: tcpip.Address{172, 23, 71, 1},
	}
)

func TestBootSpawnsServicesThenReady(t *testing.T) {
	nic := channel.New(32, localMAC)
	e := async.NewSimpleExecutor(0)

	var s *stack.Stack
	require.Nil(t, stack.Boot(e, nic, opts, func(st *stack.Stack) *tcpip.Error {
		s = st
		return nil
	}))
	e.RunUntil(func() bool { return s != nil })
	require.NotNil(t, s)
	// 初始化任务完成后只剩五个常驻任务
	assert.Equal(t, 5, e.Len())
	assert.Equal(t, localMAC, s.Ethernet.LinkAddress())
	assert.Equal(t, opts.Address, s.IP.Config().Address)
}

// 经网关 ping 外网：先解析网关，再发出回显请求，收到应答
func TestPingThroughGateway(t *testing.T) {
	nic := channel.New(32, localMAC)
	e := async.NewSimpleExecutor(0)
	clock := faketime.NewManualClock()
	o := opts
	o.Clock = clock

	s := async.BlockOn(stack.New(nic, o))
	require.Nil(t, s.Start(e))

	target := tcpip.Address{8, 8, 8, 8}
	sk := async.BlockOn(s.Ping(target))
	assert.False(t, async.BlockOn(sk.Send([]byte{1, 2, 3})))
	for i := 0; i < 10; i++ {
		e.Step()
	}

	// 网关应答 ARP 请求
	pkt := gopacket.NewPacket(<-nic.C, layers.LayerTypeEthernet, gopacket.Default)
	req, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	require.True(t, ok)
	assert.Equal(t, opts.Gateway[:], req.DstProtAddress)

	reply := make([]byte, header.ARPSize)
	h := header.ARP(reply)
	h.SetIPv4OverEthernet()
	h.SetOp(header.ARPReply)
	h.SetHardwareAddressSender(gatewayMAC)
	h.SetProtocolAddressSender(opts.Gateway)
	h.SetHardwareAddressTarget(localMAC)
	h.SetProtocolAddressTarget(opts.Address)
	require.True(t, nic.InjectFrame(gatewayMAC, localMAC, header.ARPProtocolNumber, reply))
	for i := 0; i < 10; i++ {
		e.Step()
	}

	assert.True(t, async.BlockOn(sk.Send([]byte{1, 2, 3})))
	for i := 0; i < 10; i++ {
		e.Step()
	}
	out := <-nic.C
	eth := header.Ethernet(out)
	assert.Equal(t, gatewayMAC, eth.DestinationAddress())
	ip := header.IPv4(out[header.EthernetMinimumSize:])
	assert.Equal(t, target, ip.DestinationAddress())
	icmp := header.ICMPv4(ip.Payload())
	assert.Equal(t, header.ICMPv4Echo, icmp.Type())
	assert.Equal(t, uint16(1), icmp.Sequence())

	// 回显应答由网关转回
	echo := make([]byte, header.IPv4MinimumSize+len(ip.Payload()))
	eh := header.IPv4(echo)
	eh.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(len(echo)),
		TTL:         60,
		Protocol:    header.ICMPv4ProtocolNumber,
		SrcAddr:     target,
		DstAddr:     opts.Address,
	})
	copy(eh.Payload(), ip.Payload())
	ih := header.ICMPv4(eh.Payload())
	ih.SetType(header.ICMPv4EchoReply)
	ih.CalculateChecksum()
	eh.CalculateChecksum()
	require.True(t, nic.InjectFrame(gatewayMAC, localMAC, header.IPv4ProtocolNumber, echo))

	f := sk.Receive(time.Second)
	cx := async.NewContext(async.NoopWaker)
	for i := 0; i < 10; i++ {
		e.Step()
	}
	res, ok := f.Poll(cx)
	require.True(t, ok)
	require.True(t, res.Ok)
	assert.Equal(t, target, res.Value.Source())
	assert.Equal(t, []byte{1, 2, 3}, res.Value.Data())
}

func TestResolveTimesOut(t *testing.T) {
	nic := channel.New(32, localMAC)
	e := async.NewSimpleExecutor(0)
	clock := faketime.NewManualClock()
	o := opts
	o.Clock = clock
	s := async.BlockOn(stack.New(nic, o))
	require.Nil(t, s.Start(e))

	cx := async.NewContext(async.NoopWaker)
	f := s.Resolve(tcpip.Address{172, 23, 71, 99}, 100*time.Millisecond, time.Second)
	for i := 0; i < 10; i++ {
		_, ok := f.Poll(cx)
		require.False(t, ok)
		clock.Advance(100 * time.Millisecond)
		e.Step()
		e.Step()
	}
	res, ok := f.Poll(cx)
	require.True(t, ok)
	assert.False(t, res.Ok)
}
