// Package ethernet 在网卡之上做以太网帧的分用和复用：
// 入站帧按以太网类型投递到各协议的接收队列，出站帧汇入同一个发送队列。
package ethernet

import (
	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/buffer"
	"github.com/impact-eintr/bootnet/tcpip/link"
)

// Options 控制队列容量和满队列策略
type Options struct {
	QueueCapacity int
	FullPolicy    async.FullPolicy
}

type registry = map[tcpip.NetworkProtocolNumber]*async.Queue[*buffer.Frame]

// Service 拥有网卡，运行收发两个后台任务
type Service struct {
	nic     link.Endpoint
	opts    Options
	sockets *async.Mutex[registry]
	tx      *async.Queue[*buffer.Frame]
	log     logrus.FieldLogger
}

// NewService wraps nic. Nothing runs until Start.
func NewService(nic link.Endpoint, opts Options) *Service {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = async.DefaultQueueCapacity
	}
	return &Service{
		nic:     nic,
		opts:    opts,
		sockets: async.NewMutex(registry{}),
		tx:      async.NewQueue[*buffer.Frame]("eth-tx", opts.QueueCapacity, opts.FullPolicy),
		log:     logger.Layer(logger.ETH),
	}
}

// LinkAddress returns the NIC's MAC address.
func (s *Service) LinkAddress() tcpip.LinkAddress {
	return s.nic.LinkAddress()
}

// Options returns the queue settings, which upper layers reuse.
func (s *Service) Options() Options {
	return s.opts
}

// Open 为一种以太网类型注册接收队列，同一类型后注册的覆盖先注册的
func (s *Service) Open(proto tcpip.NetworkProtocolNumber) async.Future[*Socket] {
	return async.WithLock(s.sockets, func(m *registry) *Socket {
		sk := &Socket{
			svc:   s,
			proto: proto,
			rx:    async.NewQueue[*buffer.Frame]("eth-rx-"+proto.String(), s.opts.QueueCapacity, s.opts.FullPolicy),
		}
		if _, ok := (*m)[proto]; ok {
			s.log.WithField("ethertype", proto).Warn("replacing socket")
		}
		(*m)[proto] = sk.rx
		return sk
	})
}

// Start 启动接收和发送任务
func (s *Service) Start(e async.Executor) *tcpip.Error {
	if err := e.Spawn(async.NewTask("eth-rx", &receiver{s: s})); err != nil {
		return err
	}
	return e.Spawn(async.NewTask("eth-tx", &transmitter{s: s}))
}

// Socket 是某一以太网类型的收发端点
type Socket struct {
	svc   *Service
	proto tcpip.NetworkProtocolNumber
	rx    *async.Queue[*buffer.Frame]
}

// Protocol returns the ethertype the socket is bound to.
func (sk *Socket) Protocol() tcpip.NetworkProtocolNumber {
	return sk.proto
}

// LinkAddress returns the NIC's MAC address.
func (sk *Socket) LinkAddress() tcpip.LinkAddress {
	return sk.svc.LinkAddress()
}

// Send 写入以太网类型（源MAC为空时填本机MAC），然后放入发送队列
func (sk *Socket) Send(f *buffer.Frame) async.Future[bool] {
	h := f.Header()
	h.SetType(sk.proto)
	if h.SourceAddress().Unspecified() {
		h.SetSourceAddress(sk.svc.LinkAddress())
	}
	logger.GetInstance().Info(logger.ETH, func() {
		sk.svc.log.WithField("frame", f).Debug("send")
	})
	return sk.svc.tx.Push(f)
}

// Receive resolves with the next frame of this ethertype.
func (sk *Socket) Receive() async.Future[*buffer.Frame] {
	return sk.rx.Pop()
}

// receiver 每次轮询最多处理一帧
type receiver struct {
	s     *Service
	spare *buffer.Frame
	frame *buffer.Frame
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

	if r.frame == nil {
		if r.spare == nil {
			r.spare = buffer.NewFrame()
		}
		n, err := s.nic.Receive(r.spare.Raw())
		if err == tcpip.ErrWouldBlock {
			return struct{}{}, false
		}
		if err != nil {
			s.log.WithError(err).Error("nic receive failed")
			panic(err)
		}
		if err := r.spare.SetReceived(n); err != nil {
			logger.GetInstance().Info(logger.ETH, func() {
				s.log.WithField("len", n).Debug("runt frame dropped")
			})
			return struct{}{}, false
		}
		r.frame, r.spare = r.spare, nil
	}

	g, ok := s.sockets.TryLock()
	if !ok {
		return struct{}{}, false
	}
	proto := r.frame.Header().Type()
	q := (*g.Value())[proto]
	g.Unlock()

	f := r.frame
	r.frame = nil
	if q == nil {
		logger.GetInstance().Info(logger.ETH, func() {
			s.log.WithField("ethertype", proto).Debug("no socket, frame dropped")
		})
		r.spare = f
		return struct{}{}, false
	}
	logger.GetInstance().Info(logger.ETH, func() {
		s.log.WithField("frame", f).Debug("recv")
	})
	push := q.Push(f)
	if _, ok := push.Poll(cx); !ok {
		r.push = push
	}
	return struct{}{}, false
}

// transmitter 每次轮询最多发送一帧
type transmitter struct {
	s *Service
}

func (t *transmitter) Poll(*async.Context) (struct{}, bool) {
	f, ok := t.s.tx.TryPop()
	if !ok {
		return struct{}{}, false
	}
	if err := t.s.nic.Transmit(f.Bytes()); err != nil {
		t.s.log.WithError(err).Error("nic transmit failed")
		panic(err)
	}
	return struct{}{}, false
}
