// Package icmp 实现 ICMP 回显：自动应答收到的回显请求，并提供按
// (远端地址, 标识符) 分用应答的 ping 套接字。
package icmp

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/header"
	"github.com/impact-eintr/bootnet/tcpip/network/ipv4"
)

const (
	ProtocolName   = "icmp"
	ProtocolNumber = header.ICMPv4ProtocolNumber
)

// 进程内所有 ping 套接字共享的标识符计数器
var idents uint32

func nextIdent() uint16 {
	return uint16(atomic.AddUint32(&idents, 1) - 1)
}

type key struct {
	addr  tcpip.Address
	ident uint16
}

type registry = map[key]*async.Queue[*Message]

// Service 是 ICMP 层
type Service struct {
	ip      *ipv4.Socket
	clock   tcpip.Clock
	opts    Options
	sockets *async.Mutex[registry]
	log     logrus.FieldLogger
}

// Options 控制 ping 套接字的队列
type Options struct {
	Clock         tcpip.Clock
	QueueCapacity int
	FullPolicy    async.FullPolicy
}

// New 打开 IP 层的 ICMP 套接字
func New(ip *ipv4.Service, opts Options) async.Future[*Service] {
	if opts.Clock == nil {
		opts.Clock = tcpip.NewStdClock()
	}
	return async.Map(ip.Open(ProtocolNumber), func(sk *ipv4.Socket) *Service {
		return &Service{
			ip:      sk,
			clock:   opts.Clock,
			opts:    opts,
			sockets: async.NewMutex(registry{}),
			log:     logger.Layer(logger.ICMP),
		}
	})
}

// Start 启动自动应答任务
func (s *Service) Start(e async.Executor) *tcpip.Error {
	return e.Spawn(async.NewTask("icmp-rx", &responder{s: s}))
}

// Open 分配一个新的标识符，返回绑定到 addr 的 ping 套接字
func (s *Service) Open(addr tcpip.Address) async.Future[*Socket] {
	return async.WithLock(s.sockets, func(m *registry) *Socket {
		sk := &Socket{
			svc:   s,
			addr:  addr,
			ident: nextIdent(),
		}
		sk.rx = async.NewQueue[*Message]("icmp-"+addr.String(), s.opts.QueueCapacity, s.opts.FullPolicy)
		(*m)[key{addr: addr, ident: sk.ident}] = sk.rx
		logger.GetInstance().Info(logger.ICMP, func() {
			s.log.WithFields(logrus.Fields{"addr": addr, "ident": sk.ident}).Debug("open")
		})
		return sk
	})
}

// Socket 是 ping 套接字
type Socket struct {
	svc   *Service
	addr  tcpip.Address
	ident uint16
	seq   uint16
	rx    *async.Queue[*Message]
}

// Address returns the remote address the socket pings.
func (sk *Socket) Address() tcpip.Address { return sk.addr }

// Identifier returns the echo identifier.
func (sk *Socket) Identifier() uint16 { return sk.ident }

// Sequence returns the sequence number the next Send will use.
func (sk *Socket) Sequence() uint16 { return sk.seq }

// Send 发出一个回显请求，发出后序号加一
func (sk *Socket) Send(data []byte) async.Future[bool] {
	m, err := NewEcho(header.ICMPv4Echo, sk.ident, sk.seq, data)
	if err != nil {
		sk.svc.log.WithError(err).WithField("len", len(data)).Warn("echo request too large")
		return async.Ready(false)
	}
	sk.seq++
	m.Header().CalculateChecksum()
	m.SetDestination(sk.addr)
	logger.GetInstance().Info(logger.ICMP, func() {
		sk.svc.log.WithField("message", m).Debug("send")
	})
	return sk.svc.ip.Send(m.pkt)
}

// Receive 等待下一个应答，timeout 到期时得到 None
func (sk *Socket) Receive(timeout time.Duration) async.Future[async.Option[*Message]] {
	return async.Timeout(sk.svc.clock, sk.rx.Pop(), timeout)
}

// responder 校验收到的 ICMP 报文，应答回显请求，把回显应答交给对应的套接字
type responder struct {
	s    *Service
	msg  *Message
	send async.Future[bool]
	push async.Future[bool]
}

func (r *responder) Poll(cx *async.Context) (struct{}, bool) {
	s := r.s
	if r.send != nil {
		if _, ok := r.send.Poll(cx); ok {
			r.send = nil
		}
		return struct{}{}, false
	}
	if r.push != nil {
		if _, ok := r.push.Poll(cx); ok {
			r.push = nil
		}
		return struct{}{}, false
	}

	if r.msg == nil {
		p, ok := s.ip.Receive().Poll(cx)
		if !ok {
			return struct{}{}, false
		}
		m := FromPacket(p)
		if len(p.Payload()) < header.ICMPv4MinimumSize || !m.Header().ChecksumValid() {
			logger.GetInstance().Info(logger.ICMP, func() {
				s.log.WithError(tcpip.ErrBadChecksum).WithField("from", m.Source()).Debug("message dropped")
			})
			return struct{}{}, false
		}
		logger.GetInstance().Info(logger.ICMP, func() {
			s.log.WithField("message", m).Debug("recv")
		})

		switch h := m.Header(); {
		case h.Type() == header.ICMPv4Echo && m.IsEcho():
			reply, err := NewEcho(header.ICMPv4EchoReply, h.Ident(), h.Sequence(), h.Data())
			if err != nil {
				return struct{}{}, false
			}
			reply.Header().CalculateChecksum()
			reply.SetDestination(m.Source())
			send := s.ip.Send(reply.pkt)
			if _, ok := send.Poll(cx); !ok {
				r.send = send
			}
			return struct{}{}, false
		case h.Type() == header.ICMPv4EchoReply && m.IsEcho():
			r.msg = m
		default:
			s.log.WithFields(logrus.Fields{"type": h.Type(), "from": m.Source()}).Info("unhandled icmp message dropped")
			return struct{}{}, false
		}
	}

	g, ok := s.sockets.TryLock()
	if !ok {
		return struct{}{}, false
	}
	m := r.msg
	k := key{addr: m.Source(), ident: m.Header().Ident()}
	q := (*g.Value())[k]
	g.Unlock()
	r.msg = nil

	if q == nil {
		s.log.WithFields(logrus.Fields{"from": k.addr, "ident": k.ident}).Info("echo reply for no socket dropped")
		return struct{}{}, false
	}
	push := q.Push(m)
	if _, ok := push.Poll(cx); !ok {
		r.push = push
	}
	return struct{}{}, false
}
