//go:build linux
// +build linux

// Package fdbased 把一个非阻塞的文件描述符（通常是 TAP 设备）适配成网卡。
package fdbased

import (
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/link/rawfile"
)

// Endpoint 负责底层网卡的io读写
type Endpoint struct {
	// 发送和接收数据的文件描述符
	fd int
	// 网卡地址
	addr tcpip.LinkAddress
}

type Options struct {
	FD      int
	Address tcpip.LinkAddress
}

// New 创建网卡，FD 必须已经设置为非阻塞
func New(opts *Options) *Endpoint {
	return &Endpoint{fd: opts.FD, addr: opts.Address}
}

// LinkAddress implements link.Endpoint.LinkAddress.
func (e *Endpoint) LinkAddress() tcpip.LinkAddress {
	return e.addr
}

// Receive implements link.Endpoint.Receive.
func (e *Endpoint) Receive(buf []byte) (int, *tcpip.Error) {
	return rawfile.NonBlockingRead(e.fd, buf)
}

// Transmit implements link.Endpoint.Transmit.
func (e *Endpoint) Transmit(b []byte) *tcpip.Error {
	return rawfile.NonBlockingWrite(e.fd, b)
}

// FD returns the underlying file descriptor.
func (e *Endpoint) FD() int {
	return e.fd
}
