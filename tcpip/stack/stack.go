// Package stack 把以太网、ARP、IPv4、ICMP 四层服务组装到一块网卡上。
package stack

import (
	"time"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/link"
	"github.com/impact-eintr/bootnet/tcpip/link/ethernet"
	"github.com/impact-eintr/bootnet/tcpip/network/arp"
	"github.com/impact-eintr/bootnet/tcpip/network/ipv4"
	"github.com/impact-eintr/bootnet/tcpip/transport/icmp"
)

type Options struct {
	Address tcpip.Address
	Netmask tcpip.Address
	Gateway tcpip.Address

	Clock         tcpip.Clock
	QueueCapacity int
	FullPolicy    async.FullPolicy
}

// Stack 持有各层服务
type Stack struct {
	clock tcpip.Clock

	Ethernet *ethernet.Service
	ARP      *arp.Service
	IP       *ipv4.Service
	ICMP     *icmp.Service
}

// New 自底向上依次打开各层，完成时得到组装好的协议栈，后台任务尚未启动
func New(nic link.Endpoint, opts Options) async.Future[*Stack] {
	if opts.Clock == nil {
		opts.Clock = tcpip.NewStdClock()
	}
	eth := ethernet.NewService(nic, ethernet.Options{
		QueueCapacity: opts.QueueCapacity,
		FullPolicy:    opts.FullPolicy,
	})
	cfg := ipv4.Config{Address: opts.Address, Netmask: opts.Netmask, Gateway: opts.Gateway}

	return async.Then(arp.New(opts.Address, eth), func(a *arp.Service) async.Future[*Stack] {
		return async.Then(ipv4.New(eth, a, cfg), func(ip *ipv4.Service) async.Future[*Stack] {
			ic := icmp.New(ip, icmp.Options{
				Clock:         opts.Clock,
				QueueCapacity: opts.QueueCapacity,
				FullPolicy:    opts.FullPolicy,
			})
			return async.Map(ic, func(ic *icmp.Service) *Stack {
				return &Stack{clock: opts.Clock, Ethernet: eth, ARP: a, IP: ip, ICMP: ic}
			})
		})
	})
}

// Start 把每层的后台任务交给执行器
func (s *Stack) Start(e async.Executor) *tcpip.Error {
	for _, start := range []func(async.Executor) *tcpip.Error{
		s.Ethernet.Start,
		s.ARP.Start,
		s.IP.Start,
		s.ICMP.Start,
	} {
		if err := start(e); err != nil {
			return err
		}
	}
	logger.Std().WithFields(map[string]interface{}{
		"mac":     s.Ethernet.LinkAddress(),
		"addr":    s.IP.Config().Address,
		"gateway": s.IP.Config().Gateway,
	}).Info("stack started")
	return nil
}

// Clock returns the clock timers in this stack use.
func (s *Stack) Clock() tcpip.Clock {
	return s.clock
}

// Ping opens a ping socket towards addr.
func (s *Stack) Ping(addr tcpip.Address) async.Future[*icmp.Socket] {
	return s.ICMP.Open(addr)
}

// Resolve 解析 addr 的 MAC，timeout 内没有应答得到 None
func (s *Stack) Resolve(addr tcpip.Address, retry, timeout time.Duration) async.Future[async.Option[tcpip.LinkAddress]] {
	return async.Timeout(s.clock, s.ARP.Resolve(s.clock, addr, retry), timeout)
}

// Boot 生成一个初始化任务：组装协议栈、启动各层，再调用 ready。
// ready 通常用来派生使用协议栈的应用任务。
func Boot(e async.Executor, nic link.Endpoint, opts Options, ready func(*Stack) *tcpip.Error) *tcpip.Error {
	init := async.Then(New(nic, opts), func(s *Stack) async.Future[struct{}] {
		if err := s.Start(e); err != nil {
			panic(err)
		}
		if ready != nil {
			if err := ready(s); err != nil {
				panic(err)
			}
		}
		return async.Ready(struct{}{})
	})
	return e.Spawn(async.NewTask("init", init))
}
