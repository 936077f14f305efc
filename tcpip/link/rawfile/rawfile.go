//go:build linux
// +build linux

// Package rawfile 封装对网卡文件描述符的非阻塞读写。
package rawfile

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/impact-eintr/bootnet/tcpip"
)

// NonBlockingRead 读一帧，没有数据时返回 ErrWouldBlock
func NonBlockingRead(fd int, b []byte) (int, *tcpip.Error) {
	for {
		n, err := unix.Read(fd, b)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, tcpip.ErrWouldBlock
		default:
			return 0, TranslateErrno(err.(unix.Errno))
		}
	}
}

// NonBlockingWrite 写一帧。描述符是非阻塞的，发送缓冲区满时让出CPU后重试，
// 直到整帧写出或出错。
func NonBlockingWrite(fd int, b []byte) *tcpip.Error {
	for {
		_, err := unix.Write(fd, b)
		switch err {
		case nil:
			return nil
		case unix.EINTR, unix.EAGAIN:
			runtime.Gosched()
		default:
			return TranslateErrno(err.(unix.Errno))
		}
	}
}
