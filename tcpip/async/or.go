package async

import (
	"time"

	"github.com/impact-eintr/bootnet/tcpip"
)

type or[T, U any] struct {
	main     Future[T]
	fallback Future[U]
}

// 每次轮询先看 main 再看 fallback，同时就绪时 main 优先
func (o *or[T, U]) Poll(cx *Context) (Option[T], bool) {
	if v, ok := o.main.Poll(cx); ok {
		return Some(v), true
	}
	if _, ok := o.fallback.Poll(cx); ok {
		return None[T](), true
	}
	return Option[T]{}, false
}

// Or 让 main 与 fallback 赛跑：main 先完成得到 Some，fallback 先完成得到 None
func Or[T, U any](main Future[T], fallback Future[U]) Future[Option[T]] {
	return &or[T, U]{main: main, fallback: fallback}
}

// Timeout 是 Or(f, Sleep(clock, d))，计时从调用时开始
func Timeout[T any](clock tcpip.Clock, f Future[T], d time.Duration) Future[Option[T]] {
	return Or(f, Sleep(clock, d))
}
