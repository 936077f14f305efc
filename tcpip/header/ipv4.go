package header

import (
	"encoding/binary"
	"fmt"

	"github.com/impact-eintr/bootnet/tcpip"
)

/*                                                                 _
|Version 4b|IHL 4b|Type of Service 8b|    Total Length 16b       |
 ----------------------------------------------------------------
|           fragment ID 16b          |R|DF|MF|Fragment Offset 13b|
 ----------------------------------------------------------------
|     TTL 8b      |    Protocol 8b   |   Header Checksum 16b     | 20 bytes
 ----------------------------------------------------------------
|                     Source IP Address 32b                      |
 ----------------------------------------------------------------
|                  Destination IP Address 32b                    | _
 ----------------------------------------------------------------
|               Options                           |    Padding   |
*/

const (
	versIHL  = 0
	tos      = 1
	totalLen = 2
	id       = 4
	flagsFO  = 6
	ttl      = 8
	protocol = 9
	checksum = 10
	srcAddr  = 12
	dstAddr  = 16
)

// 表示IPv4头部信息的结构体
type IPv4Fields struct {
	// 头部长度 以字节为单位
	IHL uint8

	// 服务区分的表示
	TOS uint8

	// 数据报文总长
	TotalLength uint16

	// 标识符
	ID uint16

	// 标签
	Flags uint8

	// 分片偏移
	FragmentOffset uint16

	// 存活时间
	TTL uint8

	// 表示的传输层协议
	Protocol tcpip.TransportProtocolNumber

	// 首部校验和
	Checksum uint16

	// 源IP地址
	SrcAddr tcpip.Address

	// 目的IP地址
	DstAddr tcpip.Address
}

type IPv4 []byte

const (
	// IPv4MinimumSize is the minimum size of a valid IPv4 packet.
	IPv4MinimumSize = 20

	// IPv4MaximumHeaderSize is the maximum size of an IPv4 header. Given
	// that there are only 4 bits to represents the header length in 32-bit
	// units, the header cannot exceed 15*4 = 60 bytes.
	IPv4MaximumHeaderSize = 60

	// IPv4AddressSize is the size, in bytes, of an IPv4 address.
	IPv4AddressSize = 4

	// IPv4ProtocolNumber is IPv4's network protocol number.
	IPv4ProtocolNumber tcpip.NetworkProtocolNumber = 0x0800

	// IPv4Version is the version of the ipv4 protocol.
	IPv4Version = 4
)

var (
	// IPv4Broadcast is the limited broadcast address.
	IPv4Broadcast = tcpip.Address{0xff, 0xff, 0xff, 0xff}
)

// Version returns the version nibble.
func (b IPv4) Version() uint8 {
	return b[versIHL] >> 4
}

// 首部长度说明首部有多少 32 位字（4 字节） 这个函数返回其实际占用的字节数
func (b IPv4) HeaderLength() uint8 {
	return (b[versIHL] & 0xf) * 4
}

// SetVersion 写入版本号，保留首部长度
func (b IPv4) SetVersion(v uint8) {
	b[versIHL] = (v << 4) | (b[versIHL] & 0xf)
}

// SetHeaderLength 以字节为单位写入首部长度，必须是4的倍数
func (b IPv4) SetHeaderLength(l uint8) {
	b[versIHL] = (b[versIHL] & 0xf0) | ((l / 4) & 0xf)
}

func (b IPv4) ID() uint16 {
	return binary.BigEndian.Uint16(b[id:])
}

// SetID sets the identification field.
func (b IPv4) SetID(v uint16) {
	binary.BigEndian.PutUint16(b[id:], v)
}

// Protocol returns the value of the protocol field of the ipv4 header.
func (b IPv4) Protocol() tcpip.TransportProtocolNumber {
	return tcpip.TransportProtocolNumber(b[protocol])
}

// SetProtocol sets the protocol field.
func (b IPv4) SetProtocol(p tcpip.TransportProtocolNumber) {
	b[protocol] = uint8(p)
}

// Flags returns the "flags" field of the ipv4 header.
func (b IPv4) Flags() uint8 {
	return uint8(binary.BigEndian.Uint16(b[flagsFO:]) >> 13)
}

// TTL returns the "TTL" field of the ipv4 header.
func (b IPv4) TTL() uint8 {
	return b[ttl]
}

// SetTTL sets the "TTL" field.
func (b IPv4) SetTTL(v uint8) {
	b[ttl] = v
}

// FragmentOffset returns the "fragment offset" field of the ipv4 header.
func (b IPv4) FragmentOffset() uint16 {
	return binary.BigEndian.Uint16(b[flagsFO:]) << 3
}

// TotalLength returns the "total length" field of the ipv4 header.
func (b IPv4) TotalLength() uint16 {
	return binary.BigEndian.Uint16(b[totalLen:])
}

// Checksum returns the checksum field of the ipv4 header.
func (b IPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[checksum:])
}

// SourceAddress returns the "source address" field of the ipv4 header.
func (b IPv4) SourceAddress() tcpip.Address {
	return tcpip.AddressFromSlice(b[srcAddr:])
}

// DestinationAddress returns the "destination address" field of the ipv4
// header.
func (b IPv4) DestinationAddress() tcpip.Address {
	return tcpip.AddressFromSlice(b[dstAddr:])
}

// Payload returns the bytes after the header up to the total length.
func (b IPv4) Payload() []byte {
	return b[b.HeaderLength():][:b.PayloadLength()]
}

// PayloadLength returns the length of the payload portion of the ipv4 packet.
func (b IPv4) PayloadLength() uint16 {
	return b.TotalLength() - uint16(b.HeaderLength())
}

// TOS returns the "type of service" field of the ipv4 header.
func (b IPv4) TOS() uint8 {
	return b[tos]
}

// SetTotalLength sets the "total length" field of the ipv4 header.
func (b IPv4) SetTotalLength(totalLength uint16) {
	binary.BigEndian.PutUint16(b[totalLen:], totalLength)
}

// SetChecksum sets the checksum field of the ipv4 header.
func (b IPv4) SetChecksum(v uint16) {
	binary.BigEndian.PutUint16(b[checksum:], v)
}

// SetFlagsFragmentOffset sets the "flags" and "fragment offset" fields of the
// ipv4 header.
func (b IPv4) SetFlagsFragmentOffset(flags uint8, offset uint16) {
	v := (uint16(flags) << 13) | (offset >> 3)
	binary.BigEndian.PutUint16(b[flagsFO:], v)
}

// SetSourceAddress sets the "source address" field of the ipv4 header.
func (b IPv4) SetSourceAddress(addr tcpip.Address) {
	copy(b[srcAddr:srcAddr+IPv4AddressSize], addr[:])
}

// SetDestinationAddress sets the "destination address" field of the ipv4
// header.
func (b IPv4) SetDestinationAddress(addr tcpip.Address) {
	copy(b[dstAddr:dstAddr+IPv4AddressSize], addr[:])
}

// CalculateChecksum 清零校验和字段后重新计算并写回
func (b IPv4) CalculateChecksum() uint16 {
	b.SetChecksum(0)
	c := InternetChecksum(b[:b.HeaderLength()])
	b.SetChecksum(c)
	return c
}

// ChecksumValid 对首部字节求和，结果为0即有效
func (b IPv4) ChecksumValid() bool {
	return ChecksumValid(b[:b.HeaderLength()])
}

// Encode encodes all the fields of the ipv4 header.
func (b IPv4) Encode(i *IPv4Fields) {
	b[versIHL] = (IPv4Version << 4) | ((i.IHL / 4) & 0xf)
	b[tos] = i.TOS
	b.SetTotalLength(i.TotalLength)
	b.SetID(i.ID)
	b.SetFlagsFragmentOffset(i.Flags, i.FragmentOffset)
	b[ttl] = i.TTL
	b[protocol] = uint8(i.Protocol)
	b.SetChecksum(i.Checksum)
	b.SetSourceAddress(i.SrcAddr)
	b.SetDestinationAddress(i.DstAddr)
}

// IsValid performs basic validation on the packet. pktSize is the number of
// bytes actually available.
func (b IPv4) IsValid(pktSize int) bool {
	if len(b) < IPv4MinimumSize || pktSize < IPv4MinimumSize {
		return false
	}
	if b.Version() != IPv4Version {
		return false
	}

	hlen := int(b.HeaderLength())
	tlen := int(b.TotalLength())
	if hlen < IPv4MinimumSize || hlen > tlen || tlen > pktSize || tlen > len(b) {
		return false
	}

	return true
}

var ipv4Fmt string = `
|% 4s|% 4s|% 8s| % 16s|
|  % 16s|%s|%s|%s|% 11s|
| % 8s|% 8s|% 16s |
|% 32s    |
|% 32s    |
|        Options       |   Padding   |
`

func atoi[T int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32](i T) string {
	return fmt.Sprintf("%d", i)
}

func (b IPv4) String() string {
	return fmt.Sprintf(ipv4Fmt, atoi(b.Version()), atoi(b.HeaderLength()), atoi(b.TOS()), atoi(b.TotalLength()),
		atoi(b.ID()), atoi(b.Flags()>>2), atoi((b.Flags()&2)>>1), atoi(b.Flags()&1), atoi(b.FragmentOffset()),
		atoi(b.TTL()), b.Protocol().String(), fmt.Sprintf("0x%04x", b.Checksum()),
		b.SourceAddress().String(),
		b.DestinationAddress().String())
}
