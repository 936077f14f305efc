package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/impact-eintr/bootnet/config"
	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/stack"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping [targets...]",
	Short: "Bring up the stack and ping targets",
	Long: `Bring up the stack on the configured interface, start the heartbeat
sleepers and one pinger per target. Targets default to ping.targets.
Without --count the command runs until killed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Ping.Targets = args
		}
		targets, err := cfg.Targets()
		if err != nil {
			return err
		}
		payload, err := cfg.Payload()
		if err != nil {
			return err
		}

		nic, closeNIC, err := openNIC(cfg)
		if err != nil {
			return fmt.Errorf("open nic: %w", err)
		}
		defer closeNIC()

		e := async.NewSimpleExecutor(cfg.Executor.Capacity)
		opts, err := cfg.StackOptions(tcpip.NewStdClock())
		if err != nil {
			return err
		}
		var pingers []*pinger
		if err := stack.Boot(e, nic, opts, func(s *stack.Stack) *tcpip.Error {
			var err *tcpip.Error
			pingers, err = spawnPingers(e, s, cfg, targets, payload, pingCount)
			return err
		}); err != nil {
			return err
		}

		if pingCount <= 0 {
			e.Run()
			return nil
		}
		e.RunUntil(func() bool {
			if len(pingers) == 0 {
				return false
			}
			for _, p := range pingers {
				if !p.done() {
					return false
				}
			}
			return true
		})
		for _, p := range pingers {
			p.log.WithField("transmitted", p.stats.Transmitted).
				WithField("received", p.stats.Received).
				WithField("timeouts", p.stats.Timeouts).
				Info("ping statistics")
		}
		return nil
	},
}

// spawnPingers 派生心跳任务，并给每个目标打开一个套接字、派生一个 pinger
func spawnPingers(e async.Executor, s *stack.Stack, c *config.Config, targets []tcpip.Address, payload []byte, count int) ([]*pinger, *tcpip.Error) {
	for i := 0; i < c.Heartbeat.Sleepers; i++ {
		if err := e.Spawn(heartbeat(s.Clock(), i, c.Heartbeat.Interval)); err != nil {
			return nil, err
		}
	}

	pingers := make([]*pinger, 0, len(targets))
	for _, addr := range targets {
		// Open 只需要拿到注册表锁，此时还没有别的任务持有它
		sk := async.BlockOn(s.Ping(addr))
		p := newPinger(sk, s.Clock(), payload, c.Ping.Timeout, c.Ping.Interval, count)
		if err := e.Spawn(async.NewTask(fmt.Sprintf("ping-%s", addr), p)); err != nil {
			return nil, err
		}
		pingers = append(pingers, p)
	}
	logger.Std().WithField("targets", len(targets)).Info("pingers started")
	return pingers, nil
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 0, "stop after this many echo requests per target")
}
