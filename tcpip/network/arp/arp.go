// 主机的链路层寻址是通过 arp 表来实现的
package arp

import (
	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/buffer"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/link/ethernet"
)

const (
	ProtocolName   = "arp"
	ProtocolNumber = header.ARPProtocolNumber
)

// Service 负责地址解析：维护 arp 表，应答询问本机地址的请求
type Service struct {
	addr  tcpip.Address
	sock  *ethernet.Socket
	cache *async.Mutex[Cache]
	log   logrus.FieldLogger
}

// New 打开以太网的 ARP 套接字并返回服务，addr 是本机 IPv4 地址
func New(addr tcpip.Address, eth *ethernet.Service) async.Future[*Service] {
	return async.Map(eth.Open(ProtocolNumber), func(sk *ethernet.Socket) *Service {
		return &Service{
			addr:  addr,
			sock:  sk,
			cache: async.NewMutex(NewCache()),
			log:   logger.Layer(logger.ARP),
		}
	})
}

// Address returns the local protocol address.
func (s *Service) Address() tcpip.Address {
	return s.addr
}

// LinkAddress returns the local MAC.
func (s *Service) LinkAddress() tcpip.LinkAddress {
	return s.sock.LinkAddress()
}

// Start 启动接收任务
func (s *Service) Start(e async.Executor) *tcpip.Error {
	return e.Spawn(async.NewTask("arp-rx", &receiver{s: s}))
}

// Lookup 查询 addr 的 MAC。命中直接返回；未命中时广播一个请求并返回 None，
// 由调用方稍后重试，应答到达后表里就有了。
func (s *Service) Lookup(addr tcpip.Address) async.Future[async.Option[tcpip.LinkAddress]] {
	hit := async.WithLock(s.cache, func(c *Cache) async.Option[tcpip.LinkAddress] {
		if l, ok := c.Resolve(addr); ok {
			return async.Some(l)
		}
		return async.None[tcpip.LinkAddress]()
	})
	return async.Then(hit, func(o async.Option[tcpip.LinkAddress]) async.Future[async.Option[tcpip.LinkAddress]] {
		if o.Ok {
			return async.Ready(o)
		}
		return async.Map(s.Request(addr), func(bool) async.Option[tcpip.LinkAddress] {
			return async.None[tcpip.LinkAddress]()
		})
	})
}

// Learn 记录一条映射，IP 层用它学习同网段发送方的地址
func (s *Service) Learn(addr tcpip.Address, linkAddr tcpip.LinkAddress) async.Future[struct{}] {
	return async.WithLock(s.cache, func(c *Cache) struct{} {
		c.Add(addr, linkAddr)
		return struct{}{}
	})
}

// Entries returns a snapshot of the table.
func (s *Service) Entries() async.Future[map[tcpip.Address]tcpip.LinkAddress] {
	return async.WithLock(s.cache, func(c *Cache) map[tcpip.Address]tcpip.LinkAddress {
		return c.Snapshot()
	})
}

// Request 广播一个询问 addr 的 ARP 请求
func (s *Service) Request(addr tcpip.Address) async.Future[bool] {
	f := s.newFrame(tcpip.BroadcastLinkAddress)
	h := header.ARP(f.Payload())
	h.SetOp(header.ARPRequest)
	h.SetHardwareAddressSender(s.LinkAddress())
	h.SetProtocolAddressSender(s.addr)
	h.SetHardwareAddressTarget(tcpip.BroadcastLinkAddress)
	h.SetProtocolAddressTarget(addr)
	logger.GetInstance().Info(logger.ARP, func() {
		s.log.WithField("target", addr).Debug("arp发起广播")
	})
	return s.sock.Send(f)
}

func (s *Service) reply(req header.ARP) async.Future[bool] {
	f := s.newFrame(req.HardwareAddressSender())
	h := header.ARP(f.Payload())
	h.SetOp(header.ARPReply)
	// 倒置目标与源 作为回应
	h.SetHardwareAddressSender(s.LinkAddress())
	h.SetProtocolAddressSender(s.addr)
	h.SetHardwareAddressTarget(req.HardwareAddressSender())
	h.SetProtocolAddressTarget(req.ProtocolAddressSender())
	logger.GetInstance().Info(logger.ARP, func() {
		s.log.WithField("to", req.ProtocolAddressSender()).Debug("arp reply")
	})
	return s.sock.Send(f)
}

func (s *Service) newFrame(dst tcpip.LinkAddress) *buffer.Frame {
	f := buffer.NewFrame()
	f.SetPayloadSize(header.ARPSize)
	f.Header().SetDestinationAddress(dst)
	header.ARP(f.Payload()).SetIPv4OverEthernet()
	return f
}

// receiver 处理收到的 ARP 报文：记录发送方映射，应答询问本机的请求
type receiver struct {
	s     *Service
	frame *buffer.Frame
	reply async.Future[bool]
}

func (r *receiver) Poll(cx *async.Context) (struct{}, bool) {
	s := r.s
	if r.reply != nil {
		if _, ok := r.reply.Poll(cx); ok {
			r.reply = nil
		}
		return struct{}{}, false
	}

	if r.frame == nil {
		f, ok := s.sock.Receive().Poll(cx)
		if !ok {
			return struct{}{}, false
		}
		if h := header.ARP(f.Payload()); !h.IsValid() {
			logger.GetInstance().Info(logger.ARP, func() {
				s.log.WithField("len", f.PayloadSize()).Debug("invalid arp packet dropped")
			})
			return struct{}{}, false
		}
		r.frame = f
	}

	g, ok := s.cache.TryLock()
	if !ok {
		return struct{}{}, false
	}
	h := header.ARP(r.frame.Payload())
	// 这里记录ip和mac对应关系，也就是arp表
	g.Value().Add(h.ProtocolAddressSender(), h.HardwareAddressSender())
	g.Unlock()
	r.frame = nil

	logger.GetInstance().Info(logger.ARP, func() {
		s.log.WithField("packet", h).Debug("recv")
	})

	if h.Op() == header.ARPRequest && h.ProtocolAddressTarget() == s.addr {
		reply := s.reply(h)
		if _, ok := reply.Poll(cx); !ok {
			r.reply = reply
		}
	}
	return struct{}{}, false
}
