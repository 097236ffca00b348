package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/utkarsh5026/cpool/pool"
)

type app struct {
	v   *viper.Viper
	cfg *Config
	log *zap.Logger
}

func newApp() (*cobra.Command, *app) {
	a := &app{v: newViper(), log: zap.NewNop()}
	d := defaultConfig()

	root := &cobra.Command{
		Use:   "cpool",
		Short: "Fixed-size worker pool demo and benchmark",
		Long: `cpool runs callables on a fixed set of OS-thread-bound workers.

Every flag can also be set through a CPOOL_* environment variable
(CPOOL_WORKERS, CPOOL_LOG_LEVEL, CPOOL_BENCH_TASKS, ...) or a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.IntP("workers", "w", d.Workers, "number of workers, 0 for one per CPU")
	flags.Bool("affinity", d.Affinity, "pin worker i to core i")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", d.LogFormat, "log format: console, json")
	flags.Float64("rate", d.Rate, "tasks started per second, 0 for unlimited")
	flags.Int("burst", d.Burst, "rate limiter burst")
	flags.Int("retries", d.Retries, "attempts per task, including the first")
	flags.Duration("retry-delay", d.RetryDelay, "delay before the first retry")
	bindFlags(a.v, flags, "")

	root.AddCommand(newDemoCmd(a), newBenchCmd(a))
	return root, a
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, prefix string) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(prefix+f.Name, f)
	})
}

func (a *app) init() error {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)

	a.cfg, a.log = cfg, log
	a.log.Debug("configuration loaded", zap.Any("config", cfg))
	return nil
}

// poolOptions translates the configuration into manager options.
func (a *app) poolOptions(workers int, extra ...pool.Option) []pool.Option {
	opts := []pool.Option{
		pool.WithWorkerCount(workers),
		pool.WithLogger(a.log),
		pool.WithRetryPolicy(a.cfg.Retries, a.cfg.RetryDelay),
	}
	if a.cfg.Affinity {
		opts = append(opts, pool.WithCPUAffinity())
	}
	if a.cfg.Rate > 0 {
		opts = append(opts, pool.WithRateLimit(a.cfg.Rate, a.cfg.Burst))
	}
	return append(opts, extra...)
}
