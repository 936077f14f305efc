// Package tcpip 定义协议栈各层共享的基础类型：错误、地址、协议号以及时钟。
package tcpip

import (
	"fmt"
	"time"
)

// Error represents an error in the bootnet error space. Using a special type
// ensures that errors outside of this space are not accidentally introduced.
//
// All errors must have unique msg strings.
type Error struct {
	msg string
}

// String implements fmt.Stringer.String.
func (e *Error) String() string {
	return e.msg
}

// Error implements error, so sentinels can be wrapped by the CLI layer.
func (e *Error) Error() string {
	return e.msg
}

var (
	ErrDuplicateAddress     = &Error{msg: "duplicate address"}
	ErrNoRoute              = &Error{msg: "no route"}
	ErrInvalidEndpointState = &Error{msg: "endpoint is in invalid state"}
	ErrBadLocalAddress      = &Error{msg: "bad local address"}
	ErrClosedForSend        = &Error{msg: "endpoint is closed for send"}
	ErrWouldBlock           = &Error{msg: "operation would block"}
	ErrTimeout              = &Error{msg: "operation timed out"}
	ErrAborted              = &Error{msg: "operation aborted"}
	ErrNotSupported         = &Error{msg: "operation not supported"}
	ErrNotConnected         = &Error{msg: "endpoint not connected"}
	ErrConnectionReset      = &Error{msg: "connection reset by peer"}
	ErrNoLinkAddress        = &Error{msg: "no remote link address"}
	ErrBadAddress           = &Error{msg: "bad address"}
	ErrNetworkUnreachable   = &Error{msg: "network is unreachable"}
	ErrMessageTooLong       = &Error{msg: "message too long"}
	ErrNoBufferSpace        = &Error{msg: "no buffer space available"}
	ErrMalformedHeader      = &Error{msg: "header is malformed"}
	ErrBadChecksum          = &Error{msg: "checksum mismatch"}
)

// LinkAddress 是6字节的以太网MAC地址，值类型，可以直接作为map的key。
type LinkAddress [6]byte

// BroadcastLinkAddress is ff:ff:ff:ff:ff:ff.
var BroadcastLinkAddress = LinkAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// String formats the address as 00:11:22:33:44:55.
func (a LinkAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Unspecified reports whether the address is all zeros.
func (a LinkAddress) Unspecified() bool {
	return a == LinkAddress{}
}

// Address 是4字节的IPv4地址。
type Address [4]byte

// String formats the address in dotted-decimal notation.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// Mask 对地址做按位与，用于计算子网号。
func (a Address) Mask(m Address) Address {
	return Address{a[0] & m[0], a[1] & m[1], a[2] & m[2], a[3] & m[3]}
}

// Unspecified reports whether the address is 0.0.0.0.
func (a Address) Unspecified() bool {
	return a == Address{}
}

// AddressFromSlice copies the first four bytes of b. It panics when b is
// shorter than an IPv4 address.
func AddressFromSlice(b []byte) Address {
	var a Address
	copy(a[:], b[:4])
	return a
}

// LinkAddressFromSlice copies the first six bytes of b.
func LinkAddressFromSlice(b []byte) LinkAddress {
	var a LinkAddress
	copy(a[:], b[:6])
	return a
}

// NetworkProtocolNumber is the ethertype carried by an ethernet frame.
type NetworkProtocolNumber uint16

// String names the ethertypes the stack knows about.
func (n NetworkProtocolNumber) String() string {
	switch n {
	case 0x0800:
		return "ipv4"
	case 0x0806:
		return "arp"
	case 0x0842:
		return "wol"
	default:
		return fmt.Sprintf("ethertype(0x%04x)", uint16(n))
	}
}

// TransportProtocolNumber is the protocol field of an IPv4 header.
type TransportProtocolNumber uint8

// String names the protocol numbers the stack knows about.
func (n TransportProtocolNumber) String() string {
	switch n {
	case 1:
		return "icmp"
	case 2:
		return "igmp"
	case 6:
		return "tcp"
	case 17:
		return "udp"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(n))
	}
}

// Clock 提供单调递增的纳秒时间戳，定时器只依赖它。
type Clock interface {
	// NowMonotonic returns a monotonic time in nanoseconds. Only differences
	// between two readings are meaningful.
	NowMonotonic() int64
}

// StdClock implements Clock with the Go runtime's monotonic clock.
type StdClock struct {
	start time.Time
}

// NewStdClock returns a clock whose zero is the moment of the call.
func NewStdClock() *StdClock {
	return &StdClock{start: time.Now()}
}

// NowMonotonic implements Clock.NowMonotonic.
func (c *StdClock) NowMonotonic() int64 {
	return int64(time.Since(c.start))
}
