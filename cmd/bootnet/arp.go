package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/impact-eintr/bootnet/config"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/stack"
)

var arpCmd = &cobra.Command{
	Use:   "arp <address>",
	Short: "Resolve the MAC address of a neighbour",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := config.ParseAddresses(args)
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
		var result *async.Option[tcpip.LinkAddress]
		if err := stack.Boot(e, nic, opts, func(s *stack.Stack) *tcpip.Error {
			return e.Spawn(resolveTask(s, addrs[0], cfg, &result))
		}); err != nil {
			return err
		}
		e.RunUntil(func() bool { return result != nil })

		if !result.Ok {
			return fmt.Errorf("%s: %w", addrs[0], tcpip.ErrNoLinkAddress)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is at %s\n", addrs[0], result.Value)
		return nil
	},
}

// resolveTask 反复查询 ARP 直到得到应答或超时，结果写入 *out
func resolveTask(s *stack.Stack, addr tcpip.Address, c *config.Config, out **async.Option[tcpip.LinkAddress]) *async.Task {
	f := async.Map(s.Resolve(addr, c.ARP.Retry, c.ARP.Timeout), func(o async.Option[tcpip.LinkAddress]) struct{} {
		*out = &o
		return struct{}{}
	})
	return async.NewTask("resolve", f)
}
