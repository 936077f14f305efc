//go:build linux
// +build linux

// Package afpacket 通过 AF_PACKET 套接字直接收发物理网卡上的以太网帧。
package afpacket

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/net/bpf"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

// DefaultPollTimeout 是一次 Receive 最多在内核里等待的时间
const DefaultPollTimeout = time.Millisecond

type Options struct {
	Interface   string
	PollTimeout time.Duration
	FrameSize   int
	NumBlocks   int
}

// Endpoint 是基于 TPacket 环形缓冲区的网卡
type Endpoint struct {
	handle *afpacket.TPacket
	addr   tcpip.LinkAddress
}

// Filter 只放行 IPv4 和 ARP 帧
func Filter() ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(header.IPv4ProtocolNumber), SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(header.ARPProtocolNumber), SkipFalse: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	})
}

// New 打开网卡并装上过滤器
func New(opts Options) (*Endpoint, error) {
	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, err
	}
	if len(iface.HardwareAddr) != header.EthernetAddressSize {
		return nil, fmt.Errorf("%s: no ethernet address", opts.Interface)
	}

	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	args := []interface{}{
		afpacket.OptInterface(opts.Interface),
		afpacket.OptPollTimeout(timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	}
	if opts.FrameSize > 0 {
		args = append(args, afpacket.OptFrameSize(opts.FrameSize))
	}
	if opts.NumBlocks > 0 {
		args = append(args, afpacket.OptNumBlocks(opts.NumBlocks))
	}
	tp, err := afpacket.NewTPacket(args...)
	if err != nil {
		return nil, fmt.Errorf("afpacket %s: %w", opts.Interface, err)
	}

	filter, err := Filter()
	if err != nil {
		tp.Close()
		return nil, err
	}
	if err := tp.SetBPF(filter); err != nil {
		tp.Close()
		return nil, fmt.Errorf("afpacket %s: set filter: %w", opts.Interface, err)
	}

	return &Endpoint{handle: tp, addr: tcpip.LinkAddressFromSlice(iface.HardwareAddr)}, nil
}

// LinkAddress implements link.Endpoint.LinkAddress.
func (e *Endpoint) LinkAddress() tcpip.LinkAddress {
	return e.addr
}

// Receive implements link.Endpoint.Receive. 套接字也能看到本机发出的帧，这些帧被跳过。
func (e *Endpoint) Receive(buf []byte) (int, *tcpip.Error) {
	for {
		data, _, err := e.handle.ZeroCopyReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) {
				return 0, tcpip.ErrWouldBlock
			}
			return 0, tcpip.ErrInvalidEndpointState
		}
		if len(data) >= header.EthernetMinimumSize && header.Ethernet(data).SourceAddress() == e.addr {
			continue
		}
		return copy(buf, data), nil
	}
}

// Transmit implements link.Endpoint.Transmit.
func (e *Endpoint) Transmit(b []byte) *tcpip.Error {
	if err := e.handle.WritePacketData(b); err != nil {
		return tcpip.ErrClosedForSend
	}
	return nil
}

// Close releases the ring buffer and socket.
func (e *Endpoint) Close() {
	e.handle.Close()
}
