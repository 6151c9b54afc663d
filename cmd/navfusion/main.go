package main

import (
	"fmt"
	"os"

	"github.com/nvpadron/navfusion/internal/navfusion"
	"github.com/nvpadron/navfusion/internal/navlog"
	"github.com/nvpadron/navfusion/internal/navmetrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := navfusion.ParseArgs(args)
	if err != nil {
		fault, ok := err.(*navfusion.Fault)
		if !ok {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		switch fault.Kind {
		case navfusion.HelpRequested:
			fmt.Fprintln(os.Stdout, fault.Msg)
		case navfusion.IdxHandled:
			fmt.Fprintln(os.Stdout, fault.Msg)
		default:
			fmt.Fprintln(os.Stderr, fault.Error())
		}
		return fault.ExitCode()
	}

	log := navlog.New(cfg.LogLevel)
	metrics := navmetrics.New()
	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
		log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
	}

	if err := navfusion.Run(cfg, log, metrics); err != nil {
		fault, ok := err.(*navfusion.Fault)
		if !ok {
			log.Error(err)
			return 1
		}
		log.Error(fault.Error())
		return fault.ExitCode()
	}
	return 0
}
