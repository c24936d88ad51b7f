// progtop shows which processes hold references to which loaded BPF programs,
// alongside per-program runtime statistics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"progtop/internal/bpfloader"
	"progtop/internal/config"
	"progtop/internal/export"
	"progtop/internal/monitor"
	"progtop/internal/piditer"
	"progtop/internal/progstats"
	"progtop/internal/view"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("Error: %v", err)
	}

	cmd := &cobra.Command{
		Use:           "progtop",
		Short:         "Show which processes hold references to which loaded BPF programs",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	cfg.BindFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		logrus.Fatalf("Error: %v", err)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sortCol, err := monitor.ParseColumn(cfg.Sort)
	if err != nil {
		return err
	}

	log := logrus.StandardLogger()
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if os.Geteuid() != 0 {
		log.Warn("not running as root; loading the iterator and reading fdinfo will likely fail")
	}

	// Without run-time accounting the kernel leaves run_time_ns and
	// run_cnt frozen and every derived stat reads zero.
	if closer, err := progstats.EnableStats(); err != nil {
		log.WithError(err).Warn("BPF run-time stats unavailable")
	} else {
		defer closer.Close()
	}

	source, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer source.Close()

	mon, err := monitor.New(source, monitor.Options{
		Interval:   cfg.Interval,
		Filter:     cfg.Filter,
		Sort:       sortCol,
		MaxRecords: cfg.MaxRecords,
		Log:        log,
	})
	if err != nil {
		return err
	}

	if cfg.Once {
		s, err := mon.Sample(time.Now())
		if err != nil {
			return err
		}
		view.Render(os.Stdout, s)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var collector *export.Collector
	if cfg.MetricsAddr != "" {
		collector = export.NewCollector()
		srv := export.Serve(cfg.MetricsAddr, collector, log)
		defer srv.Shutdown(context.Background()) //nolint:errcheck // Best-effort shutdown on exit
		log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
	}

	interactive := view.IsTerminal(os.Stdout)
	return mon.Run(ctx, func(s *monitor.Sample) {
		if collector != nil {
			collector.Update(s)
		}
		if interactive {
			view.Clear(os.Stdout)
		}
		view.Render(os.Stdout, s)
	})
}

// openSource picks the holder snapshot source. "auto" prefers the kernel
// iterator and falls back to the procfs walk on kernels that cannot attach it.
func openSource(cfg *config.Config, log logrus.FieldLogger) (piditer.Source, error) {
	switch cfg.Source {
	case config.SourceKernel:
		return openKernelSource(log)
	case config.SourceProcfs:
		return openProcSource(cfg)
	}

	if bpfloader.Supported() {
		src, err := openKernelSource(log)
		if err == nil {
			return src, nil
		}
		log.WithError(err).Warn("kernel iterator unavailable, falling back to procfs walk")
	}
	return openProcSource(cfg)
}

func openKernelSource(log logrus.FieldLogger) (piditer.Source, error) {
	loader, err := bpfloader.New()
	if err != nil {
		return nil, err
	}
	if err := loader.Attach(); err != nil {
		return nil, err
	}
	log.WithField("policy", loader.Policy().String()).Debug("attached task_file iterator")
	return loader, nil
}

func openProcSource(cfg *config.Config) (piditer.Source, error) {
	policy := piditer.DetectProcPolicy(cfg.ProcfsRoot)
	return piditer.NewProcSource(cfg.ProcfsRoot, policy)
}
