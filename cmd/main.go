package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wlynxg/P4DB/core/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "p4db",
		Short: "Generate and observe relation/entry protocol traffic",
		Long: `p4db speaks a small protocol carried in IPv4 protocol 250: a one byte
relation header, an optional twelve byte entry record, then a UDP datagram.

  send   build a burst of relation frames and write them to a link
  sniff  capture relation and UDP frames from a link and decode them`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file, created with defaults if missing")
	rootCmd.PersistentFlags().StringP("iface", "i", "", "substring of the interface name to bind")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("iface") {
			cfg.Interface, _ = cmd.Flags().GetString("iface")
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		sendCmd(load),
		sniffCmd(load),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type loader func(cmd *cobra.Command) (*config.Config, error)
