//go:build linux
// +build linux

// Package tuntap 打开并配置 Linux TAP 虚拟网卡。
package tuntap

import (
	"errors"
	"fmt"
	"net"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/impact-eintr/bootnet/tcpip"
)

const (
	TUN = 1
	TAP = 2
)

var (
	ErrDeviceMode = errors.New("unsupport device mode")
)

type Config struct {
	Name string // 网卡名
	Mode int    // 网卡模式 TUN or TAP
}

// NewNetDev根据配置返回虚拟网卡的非阻塞文件描述符
func NewNetDev(c *Config) (fd int, err error) {
	switch c.Mode {
	case TUN:
		fd, err = open(c.Name, unix.IFF_TUN|unix.IFF_NO_PI)
	case TAP:
		fd, err = open(c.Name, unix.IFF_TAP|unix.IFF_NO_PI)
	default:
		return -1, ErrDeviceMode
	}
	if err != nil {
		return -1, err
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func open(name string, flags uint16) (int, error) {
	// 打开tuntap 设备
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open /dev/net/tun: %w", err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	ifr.SetUint16(flags)
	// 通过ioctl系统调用 将fd和虚拟网卡驱动绑定在一起
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("TUNSETIFF %s: %w", name, err)
	}
	return fd, nil
}

func ip(args ...string) error {
	out, err := exec.Command("ip", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ip %v: %v: %s", args, err, out)
	}
	return nil
}

// SetLinkUp 让系统启动该网卡 ip link set tap0 up
func SetLinkUp(name string) error {
	return ip("link", "set", name, "up")
}

// SetRoute 通过ip命令添加路由 ip route add 192.168.1.0/24 dev tap0
func SetRoute(name, cidr string) error {
	return ip("route", "add", cidr, "dev", name)
}

// AddIP 通过ip命令给宿主机一侧添加IP地址 ip addr add 192.168.1.1/24 dev tap0
func AddIP(name, cidr string) error {
	return ip("addr", "add", cidr, "dev", name)
}

// GetHardwareAddr 读取网卡的MAC地址
func GetHardwareAddr(name string) (tcpip.LinkAddress, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return tcpip.LinkAddress{}, err
	}
	if len(iface.HardwareAddr) != 6 {
		return tcpip.LinkAddress{}, fmt.Errorf("%s: no ethernet address", name)
	}
	return tcpip.LinkAddressFromSlice(iface.HardwareAddr), nil
}
