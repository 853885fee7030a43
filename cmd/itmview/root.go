package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"itmtrace/internal/common"
	"itmtrace/internal/config"
	"itmtrace/internal/viewer"
)

type rootOptions struct {
	configFile    string
	port          string
	baud          int
	file          string
	follow        bool
	packets       bool
	stats         bool
	textPorts     []uint
	logLevel      string
	metricsListen string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "itmview",
		Short: "ITM trace viewer",
		Long: `itmview reads the SWO output of an ARM Cortex-M target, either from a
serial port or a capture file, and prints exception entry/exit and
instrumentation (stimulus port) writes with session timestamps.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			level, _ := common.ParseSeverity(cfg.Log.Level)
			logger := common.NewLogger(level, cfg.LogFile())
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return viewer.Run(ctx, cfg, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file path (.yaml or .toml)")
	f.StringVarP(&opts.port, "port", "p", "", "SWO serial port")
	f.IntVarP(&opts.baud, "baud", "b", 1000000, "SWO baud rate")
	f.StringVar(&opts.file, "file", "", "read a capture file instead of a serial port")
	f.BoolVar(&opts.follow, "follow", false, "keep reading the capture file as it grows")
	f.BoolVar(&opts.packets, "packets", false, "list every raw packet")
	f.BoolVar(&opts.stats, "stats", false, "print event counts at the end of the session")
	f.UintSliceVar(&opts.textPorts, "text-ports", nil, "stimulus ports to print as text lines")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	return cmd
}

// loadConfig builds the session config: file or defaults, then environment,
// then any flag set on the command line.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvOverrides()
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Source.Kind = config.SourceSerial
		cfg.Source.Port = opts.port
	}
	if f.Changed("baud") {
		cfg.Source.Baud = opts.baud
	}
	if f.Changed("file") {
		cfg.Source.Kind = config.SourceFile
		cfg.Source.Path = opts.file
	}
	if f.Changed("follow") {
		cfg.Source.Follow = opts.follow
	}
	if f.Changed("packets") {
		cfg.Output.Packets = opts.packets
	}
	if f.Changed("stats") {
		cfg.Output.Stats = opts.stats
	}
	if f.Changed("text-ports") {
		cfg.Output.TextPorts = cfg.Output.TextPorts[:0]
		for _, p := range opts.textPorts {
			cfg.Output.TextPorts = append(cfg.Output.TextPorts, uint8(p))
		}
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("metrics-listen") {
		cfg.Metrics.Listen = opts.metricsListen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
