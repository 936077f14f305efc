// Package ipv4 实现 IPv4 首部的校验、按协议号分用，以及经 ARP 决定下一跳的发送路径。
package ipv4

import (
	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/link/ethernet"
	"github.com/impact-eintr/bootnet/tcpip/network/arp"
)

const (
	ProtocolName   = "ipv4"
	ProtocolNumber = header.IPv4ProtocolNumber
)

type registry = map[tcpip.TransportProtocolNumber]*async.Queue[*Packet]

// Service 是 IP 层：一个接收任务加上共享的发送路径
type Service struct {
	cfg     Config
	eth     *ethernet.Socket
	arp     *arp.Service
	opts    ethernet.Options
	sockets *async.Mutex[registry]
	log     logrus.FieldLogger
}

// New 打开以太网的 IPv4 套接字
func New(eth *ethernet.Service, a *arp.Service, cfg Config) async.Future[*Service] {
	return async.Map(eth.Open(ProtocolNumber), func(sk *ethernet.Socket) *Service {
		return &Service{
			cfg:     cfg,
			eth:     sk,
			arp:     a,
			opts:    eth.Options(),
			sockets: async.NewMutex(registry{}),
			log:     logger.Layer(logger.IP),
		}
	})
}

// Config returns the address configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Route exposes the next-hop decision for dst.
func (s *Service) Route(dst tcpip.Address) Route {
	return s.cfg.Route(dst)
}

// Start 启动接收任务
func (s *Service) Start(e async.Executor) *tcpip.Error {
	return e.Spawn(async.NewTask("ip-rx", &receiver{s: s}))
}

// Open 为一个传输层协议号注册接收队列，后注册的覆盖先注册的
func (s *Service) Open(proto tcpip.TransportProtocolNumber) async.Future[*Socket] {
	return async.WithLock(s.sockets, func(m *registry) *Socket {
		sk := &Socket{
			svc:   s,
			proto: proto,
			rx:    async.NewQueue[*Packet]("ip-rx-"+proto.String(), s.opts.QueueCapacity, s.opts.FullPolicy),
		}
		(*m)[proto] = sk.rx
		return sk
	})
}

// send 填源地址、重算校验和，必要时经 ARP 决定目的MAC，然后交给以太网。
// 下一跳无法解析时丢弃报文，完成值为 false。
func (s *Service) send(p *Packet) async.Future[bool] {
	h := p.Header()
	if h.SourceAddress().Unspecified() {
		h.SetSourceAddress(s.cfg.Address)
	}
	h.CalculateChecksum()

	eh := p.frame.Header()
	if !eh.DestinationAddress().Unspecified() {
		return s.eth.Send(p.frame)
	}

	r := s.Route(h.DestinationAddress())
	return async.Then(s.arp.Lookup(r.NextHop), func(o async.Option[tcpip.LinkAddress]) async.Future[bool] {
		if !o.Ok {
			logger.NOTICE("no link address for", r.NextHop.String(), "packet to", r.RemoteAddress.String(), "dropped")
			return async.Ready(false)
		}
		eh.SetDestinationAddress(o.Value)
		logger.GetInstance().Info(logger.IP, func() {
			s.log.WithFields(logrus.Fields{
				"dst":     r.RemoteAddress,
				"nexthop": r.NextHop,
				"direct":  r.Direct,
			}).Debug("send")
		})
		return s.eth.Send(p.frame)
	})
}

// Socket 是某个传输层协议在 IP 层的端点
type Socket struct {
	svc   *Service
	proto tcpip.TransportProtocolNumber
	rx    *async.Queue[*Packet]
}

// Protocol returns the bound protocol number.
func (sk *Socket) Protocol() tcpip.TransportProtocolNumber {
	return sk.proto
}

// Address returns the local IPv4 address.
func (sk *Socket) Address() tcpip.Address {
	return sk.svc.cfg.Address
}

// Send 写入协议号后走 IP 层的发送路径
func (sk *Socket) Send(p *Packet) async.Future[bool] {
	p.Header().SetProtocol(sk.proto)
	return sk.svc.send(p)
}

// Receive resolves with the next packet for this protocol.
func (sk *Socket) Receive() async.Future[*Packet] {
	return sk.rx.Pop()
}

// receiver 校验入站报文，学习同网段发送方的MAC，再按协议号投递
type receiver struct {
	s     *Service
	pkt   *Packet
	learn async.Future[struct{}]
	push  async.Future[bool]
}

func (r *receiver) Poll(cx *async.Context) (struct{}, bool) {
	s := r.s
	if r.push != nil {
		if _, ok := r.push.Poll(cx); ok {
			r.push = nil
		}
		return struct{}{}, false
	}

	if r.pkt == nil {
		f, ok := s.eth.Receive().Poll(cx)
		if !ok {
			return struct{}{}, false
		}
		h := header.IPv4(f.Payload())
		if !h.IsValid(f.PayloadSize()) {
			logger.GetInstance().Info(logger.IP, func() {
				s.log.WithField("len", f.PayloadSize()).Debug("malformed packet dropped")
			})
			return struct{}{}, false
		}
		if !h.ChecksumValid() {
			logger.GetInstance().Info(logger.IP, func() {
				s.log.WithError(tcpip.ErrBadChecksum).WithField("checksum", h.Checksum()).Debug("packet dropped")
			})
			return struct{}{}, false
		}
		r.pkt = FromFrame(f)
		if src := h.SourceAddress(); s.cfg.OnLink(src) && src != s.cfg.Address {
			r.learn = s.arp.Learn(src, f.Header().SourceAddress())
		}
	}

	if r.learn != nil {
		if _, ok := r.learn.Poll(cx); !ok {
			return struct{}{}, false
		}
		r.learn = nil
	}

	g, ok := s.sockets.TryLock()
	if !ok {
		return struct{}{}, false
	}
	p := r.pkt
	proto := p.Header().Protocol()
	q := (*g.Value())[proto]
	g.Unlock()
	r.pkt = nil

	if q == nil {
		logger.GetInstance().Info(logger.IP, func() {
			s.log.WithField("protocol", proto).Debug("no socket, packet dropped")
		})
		return struct{}{}, false
	}
	logger.GetInstance().Info(logger.IP, func() {
		s.log.WithField("packet", p).Debug("recv")
	})
	push := q.Push(p)
	if _, ok := push.Poll(cx); !ok {
		r.push = push
	}
	return struct{}{}, false
}
