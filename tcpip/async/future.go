// Package async 是协议栈使用的单线程协作式运行时：Future 轮询模型、
// 有界 FIFO 执行器，以及互斥锁、队列、定时器和超时组合子。
//
// 一个 Future 每次被 Poll 都必须立即返回：(值, true) 表示完成，
// (零值, false) 表示暂未就绪。等待中的任务在每一轮调度里都会再被轮询一次。
package async

import "runtime"

// Future 是可以被反复轮询直到完成的计算
type Future[T any] interface {
	Poll(cx *Context) (T, bool)
}

// Waker 通知执行器某个任务可以继续。执行器是忙轮询的，所以唯一的实现什么都不做。
type Waker interface {
	Wake()
}

type noopWaker struct{}

func (noopWaker) Wake() {}

// NoopWaker is the waker every task is polled with.
var NoopWaker Waker = noopWaker{}

// Context 在每次轮询时传给 Future
type Context struct {
	waker Waker
}

// NewContext returns a context carrying w.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker of the task being polled.
func (cx *Context) Waker() Waker {
	return cx.waker
}

// FutureFunc 把一个函数适配成 Future
type FutureFunc[T any] func(cx *Context) (T, bool)

// Poll implements Future.Poll.
func (f FutureFunc[T]) Poll(cx *Context) (T, bool) {
	return f(cx)
}

type ready[T any] struct {
	v T
}

func (r ready[T]) Poll(*Context) (T, bool) {
	return r.v, true
}

// Ready returns a future that completes immediately with v.
func Ready[T any](v T) Future[T] {
	return ready[T]{v: v}
}

// Option 表示可能缺席的值
type Option[T any] struct {
	Value T
	Ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Ok: true}
}

// None returns an absent value.
func None[T any]() Option[T] {
	return Option[T]{}
}

type then[T, U any] struct {
	first  Future[T]
	next   func(T) Future[U]
	second Future[U]
}

func (t *then[T, U]) Poll(cx *Context) (U, bool) {
	if t.second == nil {
		v, ok := t.first.Poll(cx)
		if !ok {
			var zero U
			return zero, false
		}
		t.second = t.next(v)
	}
	return t.second.Poll(cx)
}

// Then 在 f 完成后用它的结果构造下一个 Future，并继续轮询下一个
func Then[T, U any](f Future[T], next func(T) Future[U]) Future[U] {
	return &then[T, U]{first: f, next: next}
}

// Map 在 f 完成时对结果做变换
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return FutureFunc[U](func(cx *Context) (U, bool) {
		v, ok := f.Poll(cx)
		if !ok {
			var zero U
			return zero, false
		}
		return fn(v), true
	})
}

// BlockOn 在当前 goroutine 上忙轮询 f 直到完成，用于启动阶段和测试
func BlockOn[T any](f Future[T]) T {
	cx := NewContext(NoopWaker)
	for {
		if v, ok := f.Poll(cx); ok {
			return v
		}
		runtime.Gosched()
	}
}
