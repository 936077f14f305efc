// Package link 定义协议栈对网卡的全部要求：非阻塞地收一帧、发一帧、报告MAC地址。
package link

import "github.com/impact-eintr/bootnet/tcpip"

// Endpoint 是网卡驱动需要实现的接口
type Endpoint interface {
	// Receive 把一帧写入 buf 并返回长度。没有数据时返回 tcpip.ErrWouldBlock，
	// 其它错误都视为硬件故障。
	Receive(buf []byte) (int, *tcpip.Error)

	// Transmit 发送一帧，忙等直到发送完成。
	Transmit(b []byte) *tcpip.Error

	// LinkAddress 返回网卡的MAC地址
	LinkAddress() tcpip.LinkAddress
}
