package arp

import (
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/header"
)

// Cache 是 IP 到 MAC 的映射表。后写入的覆盖先写入的，条目永不过期。
// 它本身不加锁，由 Service 放在 async.Mutex 里使用。
type Cache struct {
	entries map[tcpip.Address]tcpip.LinkAddress
}

// NewCache returns an empty cache.
func NewCache() Cache {
	return Cache{entries: make(map[tcpip.Address]tcpip.LinkAddress)}
}

// Add 记录 addr 对应的 MAC
func (c *Cache) Add(addr tcpip.Address, linkAddr tcpip.LinkAddress) {
	c.entries[addr] = linkAddr
}

// Resolve 先查静态地址再查表
func (c *Cache) Resolve(addr tcpip.Address) (tcpip.LinkAddress, bool) {
	if l, ok := ResolveStaticAddress(addr); ok {
		return l, true
	}
	l, ok := c.entries[addr]
	return l, ok
}

// Len returns the number of learned entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Snapshot returns a copy of the learned entries.
func (c *Cache) Snapshot() map[tcpip.Address]tcpip.LinkAddress {
	m := make(map[tcpip.Address]tcpip.LinkAddress, len(c.entries))
	for k, v := range c.entries {
		m[k] = v
	}
	return m
}

// ResolveStaticAddress 受限广播地址不需要 ARP 查询
func ResolveStaticAddress(addr tcpip.Address) (tcpip.LinkAddress, bool) {
	if addr == header.IPv4Broadcast {
		return tcpip.BroadcastLinkAddress, true
	}
	return tcpip.LinkAddress{}, false
}
