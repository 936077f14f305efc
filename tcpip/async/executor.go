package async

import (
	"github.com/sirupsen/logrus"

	"github.com/impact-eintr/bootnet/ilist"
	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
)

// DefaultExecutorCapacity 是就绪队列的默认容量
const DefaultExecutorCapacity = 256

// Executor 接受新任务
type Executor interface {
	Spawn(t *Task) *tcpip.Error
}

// SimpleExecutor 是单线程的轮转执行器：
// 从队头取一个任务轮询一次，完成则丢弃，否则放回队尾。
type SimpleExecutor struct {
	queue    ilist.List[*Task]
	capacity int
	// 正在被轮询的任务仍占着一个位置
	inflight int
	cx       *Context
}

// NewSimpleExecutor returns an executor holding at most capacity tasks.
// A non-positive capacity selects DefaultExecutorCapacity.
func NewSimpleExecutor(capacity int) *SimpleExecutor {
	if capacity <= 0 {
		capacity = DefaultExecutorCapacity
	}
	return &SimpleExecutor{capacity: capacity, cx: NewContext(NoopWaker)}
}

// Spawn 把任务放到队尾，队列满时返回 ErrNoBufferSpace
func (e *SimpleExecutor) Spawn(t *Task) *tcpip.Error {
	if e.queue.Len()+e.inflight >= e.capacity {
		logger.Layer(logger.TASK).WithField("task", t.name).Warn("ready queue full")
		return tcpip.ErrNoBufferSpace
	}
	e.queue.PushBack(t)
	logger.GetInstance().Info(logger.TASK, func() {
		logger.Layer(logger.TASK).WithFields(logrus.Fields{
			"task":  t.name,
			"queue": e.queue.Len(),
		}).Debug("spawn")
	})
	return nil
}

// Len returns the number of queued tasks.
func (e *SimpleExecutor) Len() int {
	return e.queue.Len()
}

// Step 轮询队头任务一次，队列为空时返回 false
func (e *SimpleExecutor) Step() bool {
	t, ok := e.queue.PopFront()
	if !ok {
		return false
	}
	e.inflight = 1
	done := t.poll(e.cx)
	e.inflight = 0
	if done {
		logger.GetInstance().Info(logger.TASK, func() {
			logger.Layer(logger.TASK).WithFields(logrus.Fields{
				"task":  t.name,
				"polls": t.polls,
			}).Debug("done")
		})
		return true
	}
	// 轮询期间它的位置没有让出，重新入队不会超过容量
	e.queue.PushBack(t)
	return true
}

// Run 一直调度直到队列为空
func (e *SimpleExecutor) Run() {
	for e.Step() {
	}
}

// RunUntil 调度直到 done 返回 true 或队列为空，测试中用来限定步数
func (e *SimpleExecutor) RunUntil(done func() bool) {
	for !done() && e.Step() {
	}
}
