package async

import (
	"time"

	"github.com/impact-eintr/bootnet/tcpip"
)

type sleep struct {
	clock  tcpip.Clock
	target int64
}

func (s *sleep) Poll(*Context) (struct{}, bool) {
	return struct{}{}, s.clock.NowMonotonic() >= s.target
}

// Sleep 在创建时读取时钟，之后每次轮询检查是否已到期
func Sleep(clock tcpip.Clock, d time.Duration) Future[struct{}] {
	return &sleep{clock: clock, target: clock.NowMonotonic() + int64(d)}
}
