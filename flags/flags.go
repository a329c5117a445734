package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/op-leafrunner/runner"
)

const EnvVarPrefix = "OP_LEAFRUNNER"

var (
	Specs = &cli.StringSliceFlag{
		Name:     "specs",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "SPECS"),
		Usage:    "Spec files or directories of spec files (.yaml, .yml, .toml) to run",
	}
	Filter = &cli.StringSliceFlag{
		Name:    "filter",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILTER"),
		Usage:   "Only run the selected tests, given as 'spec/container/test'. May be repeated.",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   fmt.Sprintf("Number of specs run at the same time (1-%d)", runner.MaxReasonableConcurrency),
		Action: func(_ *cli.Context, v int) error {
			return validateConcurrency(v)
		},
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   runner.DefaultTestTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEFAULT_TIMEOUT"),
		Usage:   "Timeout for test bodies that set none. Set to 0 to disable.",
	}
	QueueAllChildren = &cli.BoolFlag{
		Name:    "queue-all-children",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "QUEUE_ALL_CHILDREN"),
		Usage:   "Give every nested test its own spec instance instead of running the first child inline",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates while tests run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   runner.DefaultProgressInterval,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address the health check server listens on",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Port the health check server listens on. Set to 0 to disable it.",
	}
)

var requiredFlags = []cli.Flag{
	Specs,
}

var optionalFlags = []cli.Flag{
	Filter,
	Concurrency,
	DefaultTimeout,
	QueueAllChildren,
	RunInterval,
	ShowProgress,
	ProgressInterval,
	HealthzAddr,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

func validateConcurrency(v int) error {
	if v < 1 || v > runner.MaxReasonableConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", runner.MaxReasonableConcurrency, v)
	}
	return nil
}
