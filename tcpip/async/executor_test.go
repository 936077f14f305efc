package async_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/faketime"
)

func TestSpawnRespectsCapacity(t *testing.T) {
	e := async.NewSimpleExecutor(2)
	done := func(name string) *async.Task {
		return async.NewTask(name, async.Ready(struct{}{}))
	}
	require.Nil(t, e.Spawn(done("a")))
	require.Nil(t, e.Spawn(done("b")))
	assert.Equal(t, tcpip.ErrNoBufferSpace, e.Spawn(done("c")))
	assert.Equal(t, 2, e.Len())

	e.Run()
	assert.Equal(t, 0, e.Len())
}

func TestRunRoundRobin(t *testing.T) {
	e := async.NewSimpleExecutor(0)
	var trace []string
	var tasks []*async.Task
	for _, name := range []string{"a", "b", "c"} {
		name := name
		left := 2
		task := async.Go(name, func(*async.Context) bool {
			trace = append(trace, name)
			left--
			return left == 0
		})
		require.Nil(t, e.Spawn(task))
		tasks = append(tasks, task)
	}
	e.Run()
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, trace)
	for _, task := range tasks {
		assert.Equal(t, uint64(2), task.Polls(), task.Name())
	}
}

// 队列已满时，被轮询的任务不能借用自己让出的位置再派生新任务
func TestSpawnFromPolledTaskWhenFull(t *testing.T) {
	e := async.NewSimpleExecutor(2)
	var spawnErr *tcpip.Error
	spawned := false
	require.Nil(t, e.Spawn(async.Go("a", func(*async.Context) bool {
		if !spawned {
			spawned = true
			spawnErr = e.Spawn(async.Go("c", func(*async.Context) bool { return true }))
		}
		return false
	})))
	require.Nil(t, e.Spawn(async.Go("b", func(*async.Context) bool { return false })))

	require.True(t, e.Step())
	assert.Equal(t, tcpip.ErrNoBufferSpace, spawnErr)
	assert.Equal(t, 2, e.Len())
}

func TestTaskSpawnedDuringRun(t *testing.T) {
	e := async.NewSimpleExecutor(0)
	ran := false
	require.Nil(t, e.Spawn(async.Go("parent", func(*async.Context) bool {
		require.Nil(t, e.Spawn(async.Go("child", func(*async.Context) bool {
			ran = true
			return true
		})))
		return true
	})))
	e.Run()
	assert.True(t, ran)
}

// 三个长睡眠任务和一个周期任务共享执行器，周期任务的推进不受睡眠任务影响
func TestSleepersDoNotStarvePinger(t *testing.T) {
	clock := faketime.NewManualClock()
	e := async.NewSimpleExecutor(0)

	for i := 0; i < 3; i++ {
		require.Nil(t, e.Spawn(async.NewTask(fmt.Sprintf("sleeper-%d", i), async.Sleep(clock, 60*time.Second))))
	}

	rounds := 0
	var tick async.Future[struct{}]
	pinger := async.Go("pinger", func(cx *async.Context) bool {
		if tick == nil {
			tick = async.Sleep(clock, time.Second)
		}
		if _, ok := tick.Poll(cx); !ok {
			return false
		}
		tick = nil
		rounds++
		return rounds == 5
	})
	require.Nil(t, e.Spawn(pinger))

	for i := 0; i < 5; i++ {
		for j := 0; j < 8; j++ {
			e.Step()
		}
		clock.Advance(time.Second)
	}
	e.RunUntil(func() bool { return rounds == 5 })
	assert.Equal(t, 5, rounds)
	assert.Equal(t, 3, e.Len(), "sleepers still pending")

	clock.Advance(time.Minute)
	e.Run()
	assert.Equal(t, 0, e.Len())
}
