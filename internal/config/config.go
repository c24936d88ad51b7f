// Package config holds the runtime configuration, layered as environment
// variables overridden by command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Holder snapshot sources.
const (
	SourceAuto   = "auto"
	SourceKernel = "kernel"
	SourceProcfs = "procfs"
)

// Config is the parsed runtime configuration.
type Config struct {
	Interval    time.Duration `env:"PROGTOP_INTERVAL" envDefault:"1s"`
	Filter      string        `env:"PROGTOP_FILTER"`
	Sort        string        `env:"PROGTOP_SORT" envDefault:"cpu"`
	Source      string        `env:"PROGTOP_SOURCE" envDefault:"auto"`
	ProcfsRoot  string        `env:"PROGTOP_PROCFS" envDefault:"/proc"`
	MetricsAddr string        `env:"PROGTOP_METRICS_ADDR"`
	MaxRecords  int           `env:"PROGTOP_MAX_RECORDS" envDefault:"16384"`
	Debug       bool          `env:"PROGTOP_DEBUG"`
	Once        bool
}

// FromEnv parses configuration from PROGTOP_* environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers flags that override the environment values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&c.Interval, "interval", c.Interval, "sampling interval")
	fs.StringVar(&c.Filter, "filter", c.Filter, "show only programs whose name or type contains this string")
	fs.StringVar(&c.Sort, "sort", c.Sort, "sort column (id, type, name, period-avg, total-avg, events, cpu)")
	fs.StringVar(&c.Source, "source", c.Source, "holder snapshot source (auto, kernel, procfs)")
	fs.StringVar(&c.ProcfsRoot, "procfs", c.ProcfsRoot, "procfs mount point used by the fallback walk")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address (empty: disabled)")
	fs.IntVar(&c.MaxRecords, "max-records", c.MaxRecords, "holder record buffer size per snapshot")
	fs.BoolVar(&c.Once, "once", c.Once, "print one sample and exit")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
}

// Validate checks cross-field constraints after env and flag parsing. The
// sort column is validated where it is parsed, in the monitor package.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	switch c.Source {
	case SourceAuto, SourceKernel, SourceProcfs:
	default:
		return fmt.Errorf("unknown source %q (one of: auto, kernel, procfs)", c.Source)
	}
	if c.MaxRecords <= 0 {
		return fmt.Errorf("max-records must be positive, got %d", c.MaxRecords)
	}
	return nil
}
