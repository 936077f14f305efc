package arp

import (
	"time"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
)

// resolver 反复 Lookup，两次之间等待 retry
type resolver struct {
	s      *Service
	clock  tcpip.Clock
	addr   tcpip.Address
	retry  time.Duration
	lookup async.Future[async.Option[tcpip.LinkAddress]]
	wait   async.Future[struct{}]
}

func (r *resolver) Poll(cx *async.Context) (tcpip.LinkAddress, bool) {
	if r.wait != nil {
		if _, ok := r.wait.Poll(cx); !ok {
			return tcpip.LinkAddress{}, false
		}
		r.wait = nil
	}
	if r.lookup == nil {
		r.lookup = r.s.Lookup(r.addr)
	}
	o, ok := r.lookup.Poll(cx)
	if !ok {
		return tcpip.LinkAddress{}, false
	}
	r.lookup = nil
	if o.Ok {
		return o.Value, true
	}
	r.wait = async.Sleep(r.clock, r.retry)
	return tcpip.LinkAddress{}, false
}

// Resolve 一直重试直到得到 addr 的 MAC，每次未命中都会重新广播请求。
// 需要限时的调用方用 async.Timeout 包一层。
func (s *Service) Resolve(clock tcpip.Clock, addr tcpip.Address, retry time.Duration) async.Future[tcpip.LinkAddress] {
	return &resolver{s: s, clock: clock, addr: addr, retry: retry}
}
