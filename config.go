package leafrunner

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/op-leafrunner/flags"
	"github.com/ethereum-optimism/op-leafrunner/runner"
	"github.com/ethereum-optimism/op-leafrunner/service"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	SpecPaths        []string       // Absolute paths of spec files or directories
	Filter           *runner.Filter // Nil runs everything
	Concurrency      int            // Number of specs run at the same time
	DefaultTimeout   time.Duration  // Timeout for test bodies that set none
	QueueAllChildren bool           // Give every nested test its own instance
	RunInterval      time.Duration  // Interval between test runs
	RunOnce          bool           // Indicates if the service should exit after one test run
	ShowProgress     bool           // Whether to log periodic progress updates during a run
	ProgressInterval time.Duration  // Interval between progress updates when ShowProgress is 'true'
	Service          service.Config
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	specs := ctx.StringSlice(flags.Specs.Name)
	if len(specs) == 0 {
		return nil, errors.New("at least one spec path is required")
	}
	absSpecs := make([]string, 0, len(specs))
	for _, p := range specs {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for spec path '%s': %w", p, err)
		}
		absSpecs = append(absSpecs, abs)
	}

	var filter *runner.Filter
	if exprs := ctx.StringSlice(flags.Filter.Name); len(exprs) > 0 {
		var err error
		filter, err = runner.NewFilter(exprs)
		if err != nil {
			return nil, err
		}
	}

	if ctx.Duration(flags.DefaultTimeout.Name) < 0 {
		return nil, errors.New("default timeout must not be negative")
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, errors.New("run interval must not be negative")
	}
	runOnce := runInterval == 0

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		SpecPaths:        absSpecs,
		Filter:           filter,
		Concurrency:      ctx.Int(flags.Concurrency.Name),
		DefaultTimeout:   ctx.Duration(flags.DefaultTimeout.Name),
		QueueAllChildren: ctx.Bool(flags.QueueAllChildren.Name),
		RunInterval:      runInterval,
		RunOnce:          runOnce,
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Service: service.Config{
			HealthzAddr: ctx.String(flags.HealthzAddr.Name),
			HealthzPort: ctx.Int(flags.HealthzPort.Name),
			Metrics:     metricsCfg,
		},
		Log: log,
	}, nil
}
