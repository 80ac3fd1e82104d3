package main

import (
	"context"
	"math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wlynxg/P4DB/core/config"
	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/generator"
	"github.com/wlynxg/P4DB/core/metrics"
	"github.com/wlynxg/P4DB/core/protocol"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
)

// offlineMAC is used as source address when writing to a pcap file without
// a matching interface.
var offlineMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func sendCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a random burst followed by one frame per pooled entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("target") {
				cfg.Target, _ = flags.GetString("target")
			}
			if flags.Changed("count") {
				cfg.Count, _ = flags.GetInt("count")
			}
			if flags.Changed("interval") {
				cfg.Interval, _ = flags.GetString("interval")
			}
			if flags.Changed("write") {
				cfg.Write, _ = flags.GetString("write")
			}
			if flags.Changed("metrics") {
				cfg.Metrics, _ = flags.GetString("metrics")
			}
			return runSend(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringP("target", "t", "", "destination host")
	cmd.Flags().IntP("count", "n", generator.DefaultCount, "frames in the random burst")
	cmd.Flags().String("interval", generator.DefaultInterval.String(), "wait between the random and targeted bursts")
	cmd.Flags().StringP("write", "w", "", "write frames to this pcap file instead of the interface")
	cmd.Flags().String("metrics", "", "serve prometheus metrics on this address")
	return cmd
}

func runSend(ctx context.Context, cfg *config.Config) error {
	mlog.SetOutputTypes(cfg.LogConfigs...)
	log := mlog.New("send")

	if err := cfg.Validate(); err != nil {
		return err
	}
	interval, _ := cfg.IntervalDuration()
	dstMAC, _ := cfg.HardwareAddr()

	dst, err := device.ResolveIPv4(cfg.Target)
	if err != nil {
		return err
	}

	ep := protocol.Endpoints{DstMAC: dstMAC, Dst: dst}
	ifi, err := device.FindInterface(cfg.Interface)
	switch {
	case err == nil:
		ep.SrcMAC = ifi.HardwareAddr
		if ep.Src, err = device.InterfaceIPv4(ifi); err != nil {
			return err
		}
	case cfg.Write != "":
		log.Warnf("%v, writing with source %s", err, offlineMAC)
		ep.SrcMAC = offlineMAC
		ep.Src = netip.IPv4Unspecified()
	default:
		return err
	}
	if len(ep.SrcMAC) != 6 {
		return errors.Errorf("interface %s has no ethernet address", ifi.Name)
	}

	var link device.Writer
	if cfg.Write != "" {
		link, err = device.CreatePcap(cfg.Write)
	} else {
		link, err = device.Open(ifi, device.Option{})
	}
	if err != nil {
		return err
	}
	defer link.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics, reg); err != nil {
				log.Warnf("metrics: %v", err)
			}
		}()
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	pool, err := generator.NewEntityPool(r, cfg.PoolSize, cfg.IDRange)
	if err != nil {
		return err
	}
	log.Infof("entity pool %v, sending to %s on %s", pool, dst, link.Name())

	g, err := generator.New(&generator.Option{
		Endpoints:  ep,
		Count:      cfg.Count,
		Pool:       pool,
		Interval:   interval,
		RelationID: uint8(cfg.RelationID),
		Aggregate:  uint8(cfg.Aggregate),
		Payload:    []byte(cfg.Payload),
		Rand:       r,
		Metrics:    m,
	}, link)
	if err != nil {
		return err
	}
	return g.Run(ctx)
}
