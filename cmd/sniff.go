package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wlynxg/P4DB/core/config"
	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/metrics"
	"github.com/wlynxg/P4DB/core/observer"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
)

func sniffCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Capture and decode relation and UDP frames until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("read") {
				cfg.Read, _ = flags.GetString("read")
			}
			if flags.Changed("dump") {
				cfg.Dump, _ = flags.GetString("dump")
			}
			if flags.Changed("source") {
				cfg.Sources, _ = flags.GetStringSlice("source")
			}
			if flags.Changed("promisc") {
				cfg.Promiscuous, _ = flags.GetBool("promisc")
			}
			if flags.Changed("metrics") {
				cfg.Metrics, _ = flags.GetString("metrics")
			}
			return runSniff(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringP("read", "r", "", "decode frames from this pcap file instead of the interface")
	cmd.Flags().StringP("dump", "w", "", "record decoded frames to this pcap file")
	cmd.Flags().StringSlice("source", nil, "only report frames from these CIDR prefixes")
	cmd.Flags().Bool("promisc", false, "put the interface in promiscuous mode")
	cmd.Flags().String("metrics", "", "serve prometheus metrics on this address")
	return cmd
}

func runSniff(ctx context.Context, cfg *config.Config) error {
	mlog.SetOutputTypes(cfg.LogConfigs...)
	log := mlog.New("sniff")

	sources, err := cfg.SourcePrefixes()
	if err != nil {
		return err
	}

	var link device.Reader
	if cfg.Read != "" {
		link, err = device.OpenPcap(cfg.Read)
		if err != nil {
			return err
		}
	} else {
		ifi, err := device.FindInterface(cfg.Interface)
		if err != nil {
			return err
		}
		filter, err := device.AssembleCaptureFilter(device.DefaultSnapLen)
		if err != nil {
			return err
		}
		link, err = device.Open(ifi, device.Option{
			Capture:     true,
			Promiscuous: cfg.Promiscuous,
			Filter:      filter,
		})
		if err != nil {
			return err
		}
	}

	sink := observer.MultiSink{observer.NewLogSink(mlog.New("report"))}
	if cfg.Dump != "" {
		dump, err := device.CreatePcap(cfg.Dump)
		if err != nil {
			link.Close()
			return err
		}
		defer dump.Close()
		sink = append(sink, observer.NewPcapSink(log, dump))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics, reg); err != nil {
				log.Warnf("metrics: %v", err)
			}
		}()
	}

	o, err := observer.New(&observer.Option{
		Sources: sources,
		SnapLen: device.DefaultSnapLen,
		Metrics: m,
	}, link, sink)
	if err != nil {
		link.Close()
		return err
	}
	return o.Run(ctx)
}
