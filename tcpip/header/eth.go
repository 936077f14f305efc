package header

import (
	"encoding/binary"
	"fmt"

	"github.com/impact-eintr/bootnet/tcpip"
)

const (
	dstMAC  = 0
	srcMAC  = 6
	ethType = 12
)

// EthernetFields 表示以太网头部信息的结构体
type EthernetFields struct {
	// 源地址
	SrcAddr tcpip.LinkAddress

	// 目标地址
	DstAddr tcpip.LinkAddress

	// 协议类型
	// Type = 0x0800 IPv4 Type = 0x0806 ARP
	Type tcpip.NetworkProtocolNumber
}

// Ethernet以太网数据包的封装
type Ethernet []byte

const (
	// EthernetMinimumSize以太网帧头部的长度
	EthernetMinimumSize = 14 // 6 + 6 + 2

	// EthernetAddressSize以太网地址的长度
	EthernetAddressSize = 6
)

// SourceAddress从帧头部中得到源地址
func (b Ethernet) SourceAddress() tcpip.LinkAddress {
	return tcpip.LinkAddressFromSlice(b[srcMAC:])
}

// DestinationAddress从帧头部中得到目的地址
func (b Ethernet) DestinationAddress() tcpip.LinkAddress {
	return tcpip.LinkAddressFromSlice(b[dstMAC:])
}

// Type从帧头部中得到协议类型
func (b Ethernet) Type() tcpip.NetworkProtocolNumber {
	return tcpip.NetworkProtocolNumber(binary.BigEndian.Uint16(b[ethType:]))
}

// SetSourceAddress 写入源MAC
func (b Ethernet) SetSourceAddress(a tcpip.LinkAddress) {
	copy(b[srcMAC:][:EthernetAddressSize], a[:])
}

// SetDestinationAddress 写入目的MAC
func (b Ethernet) SetDestinationAddress(a tcpip.LinkAddress) {
	copy(b[dstMAC:][:EthernetAddressSize], a[:])
}

// SetType 写入协议类型
func (b Ethernet) SetType(t tcpip.NetworkProtocolNumber) {
	binary.BigEndian.PutUint16(b[ethType:], uint16(t))
}

// Encode根据传入的帧头部信息编码成Ethernet二进制形式，注意Ethernet应先分配好内存
func (b Ethernet) Encode(e *EthernetFields) {
	// [6]byte{dst}[6]byte{src}[2]byte{type}
	b.SetType(e.Type)
	b.SetSourceAddress(e.SrcAddr)
	b.SetDestinationAddress(e.DstAddr)
}

func (b Ethernet) String() string {
	return fmt.Sprintf("eth %v -> %v %v", b.SourceAddress(), b.DestinationAddress(), b.Type())
}
