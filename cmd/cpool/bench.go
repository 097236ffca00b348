package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/cpool/pool"
)

// benchResult is one run of the benchmark at a given worker count.
type benchResult struct {
	Workers   int
	TotalTime time.Duration
	Stats     pool.Stats
}

func (r benchResult) throughput() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.Stats.Completed) / r.TotalTime.Seconds()
}

func newBenchCmd(a *app) *cobra.Command {
	d := defaultConfig().Bench

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare throughput across worker counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(a, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.IntP("tasks", "n", d.Tasks, "tasks per run")
	flags.Duration("task-duration", d.TaskDuration, "how long each task sleeps")
	flags.IntSlice("worker-counts", d.WorkerCounts, "worker counts to compare")
	flags.Bool("metrics", d.Metrics, "print the prometheus counters after the runs")
	bindFlags(a.v, flags, "bench.")
	return cmd
}

func runBench(a *app, out, progress io.Writer) error {
	cfg := a.cfg.Bench
	log := zap.S().Named("bench")

	counts := cfg.WorkerCounts
	if len(counts) == 0 {
		counts = []int{a.cfg.Workers}
	}

	_, _ = bold.Fprintf(out, "Running %d tasks of %v on %v workers\n\n", cfg.Tasks, cfg.TaskDuration, counts)

	bar := makeProgressBar(cfg.Tasks*len(counts), progress)
	reg := prometheus.NewRegistry()
	results := make([]benchResult, 0, len(counts))

	for _, workers := range counts {
		bar.Describe(fmt.Sprintf("Testing: %d workers", workers))

		res, err := benchRun(a, workers, cfg, bar, reg)
		if err != nil {
			return err
		}
		log.Debugw("run finished", "workers", workers, "took", res.TotalTime, "stats", res.Stats)
		results = append(results, res)
	}
	_ = bar.Finish()
	_, _ = fmt.Fprintln(out)

	renderResults(out, results)
	if cfg.Metrics {
		renderMetrics(out, reg)
	}
	return nil
}

func benchRun(a *app, workers int, cfg BenchConfig, bar *progressbar.ProgressBar, reg *prometheus.Registry) (benchResult, error) {
	// Each run registers under its own namespace so the collectors don't clash.
	namespace := fmt.Sprintf("cpool_w%d", workers)
	m := pool.NewManager(a.poolOptions(workers, pool.WithMetrics(reg, namespace))...)
	if err := m.Start(); err != nil {
		return benchResult{}, err
	}
	defer m.Close()

	tick := func() { _ = bar.Add(1) }
	work := func(d time.Duration) { time.Sleep(d) }

	start := time.Now()
	handles := make([]*pool.Handle[struct{}], cfg.Tasks)
	for i := range handles {
		handles[i] = pool.DispatchWithCallback(m, work, tick, cfg.TaskDuration)
	}
	for _, h := range handles {
		if _, err := h.Get(); err != nil {
			return benchResult{}, fmt.Errorf("task %d: %w", h.ID(), err)
		}
	}
	took := time.Since(start)

	if err := m.Stop(); err != nil {
		return benchResult{}, err
	}
	return benchResult{Workers: m.WorkerCount(), TotalTime: took, Stats: m.Stats()}, nil
}

func makeProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Running tasks"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func renderResults(out io.Writer, results []benchResult) {
	if len(results) == 0 {
		return
	}
	baseline := results[0].TotalTime

	_, _ = bold.Fprintln(out, "THROUGHPUT COMPARISON")
	table := tablewriter.NewWriter(out)
	table.Header("Workers", "Total Time", "Tasks/sec", "Completed", "Failed", "Speedup")

	for _, r := range results {
		speedup := "-"
		if r.TotalTime > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(baseline)/float64(r.TotalTime))
		}
		_ = table.Append(
			fmt.Sprint(r.Workers),
			r.TotalTime.Round(time.Millisecond).String(),
			fmt.Sprintf("%.0f", r.throughput()),
			fmt.Sprint(r.Stats.Completed),
			fmt.Sprint(r.Stats.Failed),
			speedup,
		)
	}

	if err := table.Render(); err != nil {
		_, _ = red.Fprintln(out, "Error in rendering results table")
	}
}

func renderMetrics(out io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		_, _ = red.Fprintf(out, "gathering metrics: %v\n", err)
		return
	}

	_, _ = fmt.Fprintln(out)
	_, _ = bold.Fprintln(out, "METRICS")
	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}
			_ = table.Append(mf.GetName(), fmt.Sprintf("%g", value))
		}
	}

	if err := table.Render(); err != nil {
		_, _ = red.Fprintln(out, "Error in rendering metrics table")
	}
}
