//go:build linux
// +build linux

package main

import (
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/impact-eintr/bootnet/config"
	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip/link"
	"github.com/impact-eintr/bootnet/tcpip/link/afpacket"
	"github.com/impact-eintr/bootnet/tcpip/link/fdbased"
	"github.com/impact-eintr/bootnet/tcpip/link/tuntap"
)

// openNIC 按配置打开网卡，返回的 close 函数释放底层资源
func openNIC(c *config.Config) (link.Endpoint, func(), error) {
	switch c.Interface.Driver {
	case config.DriverAFPacket:
		ep, err := afpacket.New(afpacket.Options{
			Interface:   c.Interface.Name,
			PollTimeout: c.Interface.PollTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Std().WithFields(logrus.Fields{
			"driver":    c.Interface.Driver,
			"interface": c.Interface.Name,
			"mac":       ep.LinkAddress(),
		}).Info("nic opened")
		return ep, ep.Close, nil
	default:
		return openTap(c)
	}
}

func openTap(c *config.Config) (link.Endpoint, func(), error) {
	name := c.Interface.Name
	fd, err := tuntap.NewNetDev(&tuntap.Config{Name: name, Mode: tuntap.TAP})
	if err != nil {
		return nil, nil, err
	}
	closeFD := func() { unix.Close(fd) }

	if err := tuntap.SetLinkUp(name); err != nil {
		closeFD()
		return nil, nil, err
	}
	if c.Interface.HostAddress != "" {
		// 宿主机一侧配上地址，内核自动生成子网路由
		err = tuntap.AddIP(name, c.Interface.HostAddress)
	} else {
		_, subnet, _ := net.ParseCIDR(c.Address)
		err = tuntap.SetRoute(name, subnet.String())
	}
	if err != nil {
		closeFD()
		return nil, nil, err
	}

	mac, err := tuntap.GetHardwareAddr(name)
	if err != nil {
		closeFD()
		return nil, nil, err
	}
	logger.Std().WithFields(logrus.Fields{
		"driver":    c.Interface.Driver,
		"interface": name,
		"mac":       mac,
	}).Info("nic opened")
	return fdbased.New(&fdbased.Options{FD: fd, Address: mac}), closeFD, nil
}
