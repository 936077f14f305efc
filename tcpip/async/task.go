package async

import "github.com/impact-eintr/bootnet/ilist"

// Task 是可以被调度的工作单元，Future 完成后即被丢弃
type Task struct {
	ilist.Entry[*Task]

	name   string
	future Future[struct{}]
	polls  uint64
}

// NewTask wraps f into a schedulable task.
func NewTask(name string, f Future[struct{}]) *Task {
	return &Task{name: name, future: f}
}

// Go 是 NewTask 的便捷写法，f 每次被轮询时调用
func Go(name string, f func(cx *Context) bool) *Task {
	return NewTask(name, FutureFunc[struct{}](func(cx *Context) (struct{}, bool) {
		return struct{}{}, f(cx)
	}))
}

// Name returns the task name used in logs.
func (t *Task) Name() string {
	return t.name
}

// Polls reports how many times the task has been polled.
func (t *Task) Polls() uint64 {
	return t.polls
}

func (t *Task) poll(cx *Context) bool {
	t.polls++
	_, done := t.future.Poll(cx)
	return done
}
