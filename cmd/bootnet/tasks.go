package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/transport/icmp"
)

// heartbeat 每隔 interval 打一行日志，永不结束
func heartbeat(clock tcpip.Clock, n int, interval time.Duration) *async.Task {
	log := logger.Std().WithField("sleeper", n)
	var tick async.Future[struct{}]
	return async.Go(fmt.Sprintf("sleeper-%d", n), func(cx *async.Context) bool {
		if tick == nil {
			log.Info("hello world")
			tick = async.Sleep(clock, interval)
		}
		if _, ok := tick.Poll(cx); ok {
			tick = nil
		}
		return false
	})
}

type pingStats struct {
	Transmitted int
	Received    int
	Timeouts    int
}

// pinger 循环：发回显请求，在 timeout 内等应答；收到应答后休眠 interval，超时则立即重发。
// count 为 0 时永不结束。每次轮询最多推进一步。
type pinger struct {
	sk       *icmp.Socket
	clock    tcpip.Clock
	payload  []byte
	timeout  time.Duration
	interval time.Duration
	count    int
	log      logrus.FieldLogger

	send  async.Future[bool]
	recv  async.Future[async.Option[*icmp.Message]]
	sleep async.Future[struct{}]
	seq   uint16
	start int64

	stats pingStats
}

func newPinger(sk *icmp.Socket, clock tcpip.Clock, payload []byte, timeout, interval time.Duration, count int) *pinger {
	return &pinger{
		sk:       sk,
		clock:    clock,
		payload:  payload,
		timeout:  timeout,
		interval: interval,
		count:    count,
		log: logger.Std().WithFields(logrus.Fields{
			"target": sk.Address(),
			"ident":  sk.Identifier(),
		}),
	}
}

func (p *pinger) done() bool {
	return p.count > 0 && p.stats.Transmitted >= p.count && p.recv == nil && p.sleep == nil
}

func (p *pinger) Poll(cx *async.Context) (struct{}, bool) {
	switch {
	case p.sleep != nil:
		if _, ok := p.sleep.Poll(cx); ok {
			p.sleep = nil
		}
	case p.send != nil:
		sent, ok := p.send.Poll(cx)
		if !ok {
			return struct{}{}, false
		}
		p.send = nil
		p.stats.Transmitted++
		if !sent {
			p.log.WithField("seq", p.seq).Debug("echo request dropped")
		}
		p.start = p.clock.NowMonotonic()
		p.recv = p.sk.Receive(p.timeout)
	case p.recv != nil:
		r, ok := p.recv.Poll(cx)
		if !ok {
			return struct{}{}, false
		}
		p.recv = nil
		if !r.Ok {
			p.stats.Timeouts++
			p.log.WithField("seq", p.seq).Info("timeout waiting for reply")
			break
		}
		p.stats.Received++
		rtt := time.Duration(p.clock.NowMonotonic() - p.start)
		p.log.WithFields(logrus.Fields{
			"from": r.Value.Source(),
			"seq":  r.Value.Header().Sequence(),
			"len":  len(r.Value.Data()),
			"rtt":  rtt,
		}).Info("reply")
		p.sleep = async.Sleep(p.clock, p.interval)
	default:
		if p.count > 0 && p.stats.Transmitted >= p.count {
			break
		}
		p.seq = p.sk.Sequence()
		p.send = p.sk.Send(p.payload)
	}
	return struct{}{}, p.done()
}
