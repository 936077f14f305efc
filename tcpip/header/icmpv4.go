package header

import (
	"encoding/binary"
	"fmt"

	"github.com/impact-eintr/bootnet/tcpip"
)

/*
|  Type 8b   |  Code 8b   |        Checksum 16b          |
 -------------------------------------------------------
|      Identifier 16b     |      Sequence Number 16b     |  8 bytes
 -------------------------------------------------------
|                          Data ...                      |
*/

// ICMPv4 represents an ICMPv4 header stored in a byte array.
type ICMPv4 []byte

const (
	// ICMPv4MinimumSize is the minimum size of a valid ICMP packet.
	ICMPv4MinimumSize = 4

	// ICMPv4EchoMinimumSize 回显报文需要额外的标识符和序号
	ICMPv4EchoMinimumSize = 8

	// ICMPv4ProtocolNumber is the ICMP transport protocol number.
	ICMPv4ProtocolNumber tcpip.TransportProtocolNumber = 1
)

// ICMPv4Type is the ICMP type field described in RFC 792.
type ICMPv4Type byte

// Typical values of ICMPv4Type defined in RFC 792.
const (
	ICMPv4EchoReply      ICMPv4Type = 0
	ICMPv4DstUnreachable ICMPv4Type = 3
	ICMPv4SrcQuench      ICMPv4Type = 4
	ICMPv4Redirect       ICMPv4Type = 5
	ICMPv4Echo           ICMPv4Type = 8
	ICMPv4TimeExceeded   ICMPv4Type = 11
	ICMPv4ParamProblem   ICMPv4Type = 12
	ICMPv4Timestamp      ICMPv4Type = 13
	ICMPv4TimestampReply ICMPv4Type = 14
	ICMPv4InfoRequest    ICMPv4Type = 15
	ICMPv4InfoReply      ICMPv4Type = 16
)

func (t ICMPv4Type) String() string {
	switch t {
	case ICMPv4EchoReply:
		return "echo-reply"
	case ICMPv4DstUnreachable:
		return "destination-unreachable"
	case ICMPv4SrcQuench:
		return "source-quench"
	case ICMPv4Redirect:
		return "redirect"
	case ICMPv4Echo:
		return "echo-request"
	case ICMPv4TimeExceeded:
		return "time-exceeded"
	case ICMPv4ParamProblem:
		return "parameter-problem"
	case ICMPv4Timestamp:
		return "timestamp"
	case ICMPv4TimestampReply:
		return "timestamp-reply"
	case ICMPv4InfoRequest:
		return "info-request"
	case ICMPv4InfoReply:
		return "info-reply"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Type is the ICMP type field.
func (b ICMPv4) Type() ICMPv4Type { return ICMPv4Type(b[0]) }

// SetType sets the ICMP type field.
func (b ICMPv4) SetType(t ICMPv4Type) { b[0] = byte(t) }

// Code is the ICMP code field.
func (b ICMPv4) Code() byte { return b[1] }

// SetCode sets the ICMP code field.
func (b ICMPv4) SetCode(c byte) { b[1] = c }

// Checksum is the ICMP checksum field.
func (b ICMPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[2:])
}

// SetChecksum sets the ICMP checksum field.
func (b ICMPv4) SetChecksum(checksum uint16) {
	binary.BigEndian.PutUint16(b[2:], checksum)
}

// Ident 回显报文的标识符
func (b ICMPv4) Ident() uint16 {
	return binary.BigEndian.Uint16(b[4:])
}

// SetIdent sets the identifier of an echo message.
func (b ICMPv4) SetIdent(v uint16) {
	binary.BigEndian.PutUint16(b[4:], v)
}

// Sequence 回显报文的序号
func (b ICMPv4) Sequence() uint16 {
	return binary.BigEndian.Uint16(b[6:])
}

// SetSequence sets the sequence number of an echo message.
func (b ICMPv4) SetSequence(v uint16) {
	binary.BigEndian.PutUint16(b[6:], v)
}

// Data 回显报文标识符和序号之后的数据
func (b ICMPv4) Data() []byte {
	return b[ICMPv4EchoMinimumSize:]
}

// CalculateChecksum 清零校验和字段后对整个报文重新计算
func (b ICMPv4) CalculateChecksum() uint16 {
	b.SetChecksum(0)
	c := InternetChecksum(b)
	b.SetChecksum(c)
	return c
}

// ChecksumValid reports whether the whole message sums to zero.
func (b ICMPv4) ChecksumValid() bool {
	return ChecksumValid(b)
}

func (b ICMPv4) String() string {
	if len(b) < ICMPv4EchoMinimumSize {
		return fmt.Sprintf("icmp %v code=%d", b.Type(), b.Code())
	}
	return fmt.Sprintf("icmp %v code=%d id=%d seq=%d len=%d", b.Type(), b.Code(),
		b.Ident(), b.Sequence(), len(b.Data()))
}
