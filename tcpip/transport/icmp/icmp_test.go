package icmp_test

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xicmp "golang.org/x/net/icmp"
	xipv4 "golang.org/x/net/ipv4"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/faketime"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/link/channel"
	"github.com/impact-eintr/bootnet/tcpip/link/ethernet"
	"github.com/impact-eintr/bootnet/tcpip/network/arp"
	"github.com/impact-eintr/bootnet/tcpip/network/ipv4"
	"github.com/impact-eintr/bootnet/tcpip/transport/icmp"
)

var (
	localMAC  = tcpip.LinkAddress{0x02, 0, 0, 0, 0, 0x01}
	remoteMAC = tcpip.LinkAddress{0x02, 0, 0, 0, 0, 0x02}

	cfg = ipv4.Config{
		Address: tcpip.Address{172, 23, 71, 108},
		Netmask: tcpip.Address{255, 255, 255, 0},
		Gateway: tcpip.Address{172, 23, 71, 1},
	}
	remoteIP = tcpip.Address{172, 23, 71, 14}
)

type testContext struct {
	t     *testing.T
	nic   *channel.Endpoint
	e     *async.SimpleExecutor
	clock *faketime.ManualClock
	arp   *arp.Service
	icmp  *icmp.Service
}

func newTestContext(t *testing.T) *testContext {
	nic := channel.New(32, localMAC)
	e := async.NewSimpleExecutor(0)
	clock := faketime.NewManualClock()

	eth := ethernet.NewService(nic, ethernet.Options{})
	require.Nil(t, eth.Start(e))
	a := async.BlockOn(arp.New(cfg.Address, eth))
	require.Nil(t, a.Start(e))
	ip := async.BlockOn(ipv4.New(eth, a, cfg))
	require.Nil(t, ip.Start(e))
	svc := async.BlockOn(icmp.New(ip, icmp.Options{Clock: clock}))
	require.Nil(t, svc.Start(e))

	return &testContext{t: t, nic: nic, e: e, clock: clock, arp: a, icmp: svc}
}

func (c *testContext) steps(n int) {
	for i := 0; i < n; i++ {
		c.e.Step()
	}
}

// injectEcho 从 remoteIP 注入一个 ICMP 报文
func (c *testContext) injectEcho(typ xipv4.ICMPType, id, seq int, data []byte, corrupt bool) {
	body, err := (&xicmp.Message{
		Type: typ,
		Body: &xicmp.Echo{ID: id, Seq: seq, Data: data},
	}).Marshal(nil)
	require.NoError(c.t, err)
	if corrupt {
		body[len(body)-1] ^= 0xff
	}

	b := make([]byte, header.IPv4MinimumSize+len(body))
	h := header.IPv4(b)
	h.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(len(b)),
		TTL:         64,
		Protocol:    header.ICMPv4ProtocolNumber,
		SrcAddr:     remoteIP,
		DstAddr:     cfg.Address,
	})
	copy(b[header.IPv4MinimumSize:], body)
	h.CalculateChecksum()
	require.True(c.t, c.nic.InjectFrame(remoteMAC, localMAC, header.IPv4ProtocolNumber, b))
}

// sent 解析网卡发出的下一帧
func (c *testContext) sent() (*layers.Ethernet, *layers.IPv4, *xicmp.Message) {
	require.NotEmpty(c.t, c.nic.C)
	pkt := gopacket.NewPacket(<-c.nic.C, layers.LayerTypeEthernet, gopacket.Default)
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(c.t, ok)
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(c.t, ok)
	assert.True(c.t, header.ChecksumValid(ip.Payload), "icmp checksum")
	m, err := xicmp.ParseMessage(1, ip.Payload)
	require.NoError(c.t, err)
	return eth, ip, m
}

func TestEchoRequestIsAnswered(t *testing.T) {
	c := newTestContext(t)
	c.injectEcho(xipv4.ICMPTypeEcho, 5, 1, []byte{1, 2, 3}, false)
	c.steps(15)

	eth, ip, m := c.sent()
	assert.Equal(t, remoteMAC[:], []byte(eth.DstMAC))
	assert.Equal(t, cfg.Address[:], []byte(ip.SrcIP.To4()))
	assert.Equal(t, remoteIP[:], []byte(ip.DstIP.To4()))
	assert.Equal(t, xipv4.ICMPTypeEchoReply, m.Type)
	assert.Equal(t, 0, m.Code)
	echo, ok := m.Body.(*xicmp.Echo)
	require.True(t, ok)
	assert.Equal(t, 5, echo.ID)
	assert.Equal(t, 1, echo.Seq)
	assert.Equal(t, []byte{1, 2, 3}, echo.Data)
}

func TestBadChecksumIsDropped(t *testing.T) {
	std := logger.Std()
	hook := logtest.NewLocal(std)
	flags, level := logger.Flags(), std.GetLevel()
	logger.SetFlags(logger.ICMP)
	std.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logger.SetFlags(flags)
		std.SetLevel(level)
		std.ReplaceHooks(make(logrus.LevelHooks))
	})

	c := newTestContext(t)
	c.injectEcho(xipv4.ICMPTypeEcho, 5, 1, []byte{1, 2, 3}, true)
	c.steps(15)
	assert.Equal(t, 0, c.nic.Drain())

	var dropped *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "message dropped" {
			dropped = entry
		}
	}
	require.NotNil(t, dropped)
	assert.Equal(t, tcpip.ErrBadChecksum, dropped.Data[logrus.ErrorKey])
	assert.Equal(t, remoteIP, dropped.Data["from"])
}

func TestPingRoundTrip(t *testing.T) {
	c := newTestContext(t)
	async.BlockOn(c.arp.Learn(remoteIP, remoteMAC))
	sk := async.BlockOn(c.icmp.Open(remoteIP))
	assert.Equal(t, remoteIP, sk.Address())
	assert.Equal(t, uint16(0), sk.Sequence())

	assert.True(t, async.BlockOn(sk.Send([]byte{1, 2, 3})))
	assert.Equal(t, uint16(1), sk.Sequence())
	c.steps(5)

	eth, ip, m := c.sent()
	assert.Equal(t, remoteMAC[:], []byte(eth.DstMAC))
	assert.Equal(t, remoteIP[:], []byte(ip.DstIP.To4()))
	assert.Equal(t, xipv4.ICMPTypeEcho, m.Type)
	echo := m.Body.(*xicmp.Echo)
	assert.Equal(t, int(sk.Identifier()), echo.ID)
	assert.Equal(t, 0, echo.Seq)
	assert.Equal(t, []byte{1, 2, 3}, echo.Data)

	c.injectEcho(xipv4.ICMPTypeEchoReply, echo.ID, echo.Seq, echo.Data, false)
	c.steps(10)

	got, ok := sk.Receive(time.Second).Poll(async.NewContext(async.NoopWaker))
	require.True(t, ok)
	require.True(t, got.Ok)
	assert.Equal(t, sk.Identifier(), got.Value.Header().Ident())
	assert.Equal(t, []byte{1, 2, 3}, got.Value.Data())
	assert.Equal(t, remoteIP, got.Value.Source())

	assert.True(t, async.BlockOn(sk.Send([]byte{4})))
	c.steps(5)
	_, _, m = c.sent()
	assert.Equal(t, 1, m.Body.(*xicmp.Echo).Seq)
}

func TestReplyDispatchByAddressAndIdentifier(t *testing.T) {
	c := newTestContext(t)
	sk := async.BlockOn(c.icmp.Open(remoteIP))
	other := async.BlockOn(c.icmp.Open(tcpip.Address{8, 8, 8, 8}))
	assert.NotEqual(t, sk.Identifier(), other.Identifier())

	// 标识符对得上但地址不对的应答不会送到 other
	c.injectEcho(xipv4.ICMPTypeEchoReply, int(other.Identifier()), 0, nil, false)
	// 没有套接字的标识符
	c.injectEcho(xipv4.ICMPTypeEchoReply, int(sk.Identifier())+100, 0, nil, false)
	c.steps(20)

	cx := async.NewContext(async.NoopWaker)
	_, ok := other.Receive(time.Second).Poll(cx)
	assert.False(t, ok)
	_, ok = sk.Receive(time.Second).Poll(cx)
	assert.False(t, ok)
}

func TestReceiveTimeout(t *testing.T) {
	c := newTestContext(t)
	sk := async.BlockOn(c.icmp.Open(remoteIP))
	cx := async.NewContext(async.NoopWaker)

	f := sk.Receive(time.Second)
	_, ok := f.Poll(cx)
	assert.False(t, ok)

	c.clock.Advance(999 * time.Millisecond)
	_, ok = f.Poll(cx)
	assert.False(t, ok, "must not give up before the timeout")

	c.clock.Advance(time.Millisecond)
	got, ok := f.Poll(cx)
	require.True(t, ok)
	assert.False(t, got.Ok)
}

func TestIdentifiersIncrease(t *testing.T) {
	c := newTestContext(t)
	a := async.BlockOn(c.icmp.Open(remoteIP))
	b := async.BlockOn(c.icmp.Open(remoteIP))
	assert.Equal(t, a.Identifier()+1, b.Identifier())
}

func TestNewEchoTooLarge(t *testing.T) {
	_, err := icmp.NewEcho(header.ICMPv4Echo, 1, 1, make([]byte, 3000))
	assert.Equal(t, tcpip.ErrMessageTooLong, err)
}
