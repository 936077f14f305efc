package ipv4

import (
	"github.com/impact-eintr/bootnet/tcpip"
)

// Config 单网卡的地址配置
type Config struct {
	Address tcpip.Address
	Netmask tcpip.Address
	Gateway tcpip.Address
}

// OnLink 目的地址与本机在同一子网
func (c Config) OnLink(addr tcpip.Address) bool {
	return addr.Mask(c.Netmask) == c.Address.Mask(c.Netmask)
}

// Route 是一次发送的下一跳决定
type Route struct {
	// 远端网络层地址
	RemoteAddress tcpip.Address
	// 本地网络层地址
	LocalAddress tcpip.Address
	// 下一跳网络层地址，直连时就是远端地址，否则是网关
	NextHop tcpip.Address
	// 是否直连
	Direct bool
}

// Route 同网段直接投递，否则交给网关
func (c Config) Route(dst tcpip.Address) Route {
	r := Route{RemoteAddress: dst, LocalAddress: c.Address, NextHop: c.Gateway}
	if c.OnLink(dst) {
		r.NextHop = dst
		r.Direct = true
	}
	return r
}
