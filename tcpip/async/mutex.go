package async

import "sync/atomic"

// Mutex 是协作式互斥锁：加锁是一次 CAS 测试并设置，拿不到就返回 Pending，
// 等下一轮调度再试。没有公平性，也不可重入：持锁的任务再次加锁会永远等待。
type Mutex[T any] struct {
	v     int32
	value T
}

// NewMutex returns an unlocked mutex guarding value.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// Guard 持有锁期间访问被保护的值
type Guard[T any] struct {
	m *Mutex[T]
}

// Value returns the guarded value. It must not be used after Unlock.
func (g *Guard[T]) Value() *T {
	return &g.m.value
}

// Unlock 释放锁，重复释放会 panic
func (g *Guard[T]) Unlock() {
	if g.m == nil {
		panic("async: unlock of released guard")
	}
	atomic.StoreInt32(&g.m.v, 0)
	g.m = nil
}

// TryLock 尝试一次加锁
// CAS操作需要输入两个数值，一个旧值（期望操作前的值）和一个新值，
// 在操作期间先比较下旧值有没有发生变化，如果没有发生变化，才交换成新值。
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	if !atomic.CompareAndSwapInt32(&m.v, 0, 1) {
		return nil, false
	}
	return &Guard[T]{m: m}, true
}

// Lock returns a future that resolves once the lock is taken.
func (m *Mutex[T]) Lock() Future[*Guard[T]] {
	return FutureFunc[*Guard[T]](func(*Context) (*Guard[T], bool) {
		return m.TryLock()
	})
}

// Locked reports whether the mutex is currently held.
func (m *Mutex[T]) Locked() bool {
	return atomic.LoadInt32(&m.v) != 0
}

// WithLock 加锁后调用 fn，返回前释放锁
func WithLock[T, U any](m *Mutex[T], fn func(v *T) U) Future[U] {
	return Map(m.Lock(), func(g *Guard[T]) U {
		defer g.Unlock()
		return fn(g.Value())
	})
}
