package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/impact-eintr/bootnet/config"
	"github.com/impact-eintr/bootnet/logger"
)

var (
	// Global flags
	configFile string
	logLevel   string
	logLayers  []string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bootnet",
	Short: "bootnet - a single-threaded cooperative IPv4 stack speaking ARP and ICMP",
	Long: `bootnet runs a tiny Ethernet/ARP/IPv4/ICMP stack on a cooperative
busy-poll executor. It attaches to a TAP device or, through AF_PACKET, to an
existing interface, answers ARP and ping, and can ping or resolve hosts itself.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-layers") {
			cfg.Log.Layers = logLayers
		}
		return logger.Setup(cfg.Log)
	},
}

// Execute runs the root command. A panic escaping a layer of the stack is
// logged and turned into an error so main can exit non-zero.
func Execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Std().WithField("panic", r).Error("bootnet aborted")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err = rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and BOOTNET_* env when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringSliceVar(&logLayers, "log-layers", nil,
		"layers with verbose logs: eth,arp,ip,icmp,task")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(arpCmd)
}
