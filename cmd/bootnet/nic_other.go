//go:build !linux
// +build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/impact-eintr/bootnet/config"
	"github.com/impact-eintr/bootnet/tcpip/link"
)

func openNIC(c *config.Config) (link.Endpoint, func(), error) {
	return nil, nil, fmt.Errorf("driver %s is not supported on %s", c.Interface.Driver, runtime.GOOS)
}
