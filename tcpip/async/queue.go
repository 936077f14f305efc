package async

import (
	"fmt"
	"strings"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
)

// FullPolicy 决定往满队列里推送时的行为
type FullPolicy int

const (
	// FullAbort panics with tcpip.ErrNoBufferSpace.
	FullAbort FullPolicy = iota
	// FullDrop logs and discards the item.
	FullDrop
	// FullBlock suspends the pusher until there is room.
	FullBlock
)

func (p FullPolicy) String() string {
	switch p {
	case FullAbort:
		return "abort"
	case FullDrop:
		return "drop"
	case FullBlock:
		return "block"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseFullPolicy parses abort, drop or block.
func ParseFullPolicy(s string) (FullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return FullAbort, nil
	case "drop":
		return FullDrop, nil
	case "block":
		return FullBlock, nil
	}
	return FullAbort, fmt.Errorf("unknown full-queue policy %q", s)
}

// DefaultQueueCapacity 是各层接收队列和发送队列的默认容量
const DefaultQueueCapacity = 16

// Queue 是有界的多生产者单消费者队列，底层是带缓冲的 channel，
// 所以网卡驱动可以从别的 goroutine 安全地投递。
type Queue[T any] struct {
	name   string
	ch     chan T
	policy FullPolicy
}

// NewQueue returns a queue holding at most capacity items.
func NewQueue[T any](name string, capacity int, policy FullPolicy) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue[T]{name: name, ch: make(chan T, capacity), policy: policy}
}

// TryPush 不阻塞地推送，队列满时返回 false
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Push 按队列的满策略推送。完成值为 true 表示已入队，false 表示被丢弃。
func (q *Queue[T]) Push(v T) Future[bool] {
	return FutureFunc[bool](func(*Context) (bool, bool) {
		if q.TryPush(v) {
			return true, true
		}
		switch q.policy {
		case FullDrop:
			logger.Std().WithField("queue", q.name).Warn("queue full, item dropped")
			return false, true
		case FullBlock:
			return false, false
		default:
			logger.Std().WithField("queue", q.name).Error("queue full")
			panic(tcpip.ErrNoBufferSpace)
		}
	})
}

// TryPop 不阻塞地取出队头
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Pop returns a future that resolves with the next item.
func (q *Queue[T]) Pop() Future[T] {
	return FutureFunc[T](func(*Context) (T, bool) {
		return q.TryPop()
	})
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Policy returns the full-queue policy.
func (q *Queue[T]) Policy() FullPolicy {
	return q.policy
}
