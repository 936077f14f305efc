// Package channel 提供内存里的网卡，测试通过它注入入站帧、检查出站帧。
package channel

import (
	"sync"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/buffer"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

// Endpoint 是基于 channel 的网卡
type Endpoint struct {
	linkAddr tcpip.LinkAddress // MAC地址
	in       chan buffer.View
	// C 收到协议栈发出的每一帧
	C chan buffer.View

	mu  sync.Mutex
	err *tcpip.Error
}

// New 创建一个新的抽象channel Endpoint 可以接受数据 也可以外发数据
func New(size int, linkAddr tcpip.LinkAddress) *Endpoint {
	return &Endpoint{
		linkAddr: linkAddr,
		in:       make(chan buffer.View, size),
		C:        make(chan buffer.View, size),
	}
}

// Drain 流走 释放channel中的数据
func (e *Endpoint) Drain() int {
	c := 0
	for {
		select {
		case <-e.C:
			c++
		default:
			return c
		}
	}
}

// Inject 注入一帧原始数据，队列满时返回 false
func (e *Endpoint) Inject(b []byte) bool {
	select {
	case e.in <- buffer.NewViewFromBytes(b):
		return true
	default:
		return false
	}
}

// InjectFrame 组装以太网头部后注入
func (e *Endpoint) InjectFrame(src, dst tcpip.LinkAddress, proto tcpip.NetworkProtocolNumber, payload []byte) bool {
	b := make([]byte, header.EthernetMinimumSize+len(payload))
	header.Ethernet(b).Encode(&header.EthernetFields{SrcAddr: src, DstAddr: dst, Type: proto})
	copy(b[header.EthernetMinimumSize:], payload)
	return e.Inject(b)
}

// Fail 让之后的每次收发都返回 err，用来模拟硬件故障
func (e *Endpoint) Fail(err *tcpip.Error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *Endpoint) failure() *tcpip.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// 本地链路层地址
func (e *Endpoint) LinkAddress() tcpip.LinkAddress {
	return e.linkAddr
}

// Receive implements link.Endpoint.Receive.
func (e *Endpoint) Receive(buf []byte) (int, *tcpip.Error) {
	if err := e.failure(); err != nil {
		return 0, err
	}
	select {
	case v := <-e.in:
		return copy(buf, v), nil
	default:
		return 0, tcpip.ErrWouldBlock
	}
}

// Transmit implements link.Endpoint.Transmit. C 满了就丢弃。
func (e *Endpoint) Transmit(b []byte) *tcpip.Error {
	if err := e.failure(); err != nil {
		return err
	}
	select {
	case e.C <- buffer.NewViewFromBytes(b):
	default:
	}
	return nil
}
