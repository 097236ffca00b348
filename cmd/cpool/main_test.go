package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, _ := newApp()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// newViperFor returns the viper instance of a fresh command tree.
func newViperFor(t *testing.T) *viper.Viper {
	t.Helper()
	_, a := newApp()
	return a.v
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("unexpected log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Retries != 1 || cfg.RetryDelay != 100*time.Millisecond {
		t.Errorf("unexpected retry defaults: %d %v", cfg.Retries, cfg.RetryDelay)
	}
	if !slices.Equal(cfg.Bench.WorkerCounts, []int{1, 2, 4, 8}) {
		t.Errorf("unexpected worker counts: %v", cfg.Bench.WorkerCounts)
	}
	if cfg.Bench.Tasks != 200 || cfg.Bench.TaskDuration != 5*time.Millisecond {
		t.Errorf("unexpected bench defaults: %+v", cfg.Bench)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		cmd, a := newApp()
		bench, _, err := cmd.Find([]string{"bench"})
		if err != nil {
			t.Fatal(err)
		}
		if err := cmd.PersistentFlags().Parse([]string{"--workers", "3", "--log-level", "debug"}); err != nil {
			t.Fatal(err)
		}
		if err := bench.Flags().Parse([]string{"--tasks", "7", "--worker-counts", "1,3"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := loadConfig(a.v)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Workers != 3 || cfg.LogLevel != "debug" {
			t.Errorf("flags not applied: %+v", cfg)
		}
		if cfg.Bench.Tasks != 7 || !slices.Equal(cfg.Bench.WorkerCounts, []int{1, 3}) {
			t.Errorf("bench flags not applied: %+v", cfg.Bench)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("CPOOL_WORKERS", "5")
		t.Setenv("CPOOL_RETRY_DELAY", "2s")
		t.Setenv("CPOOL_BENCH_TASKS", "11")

		cfg, err := loadConfig(newViperFor(t))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Workers != 5 || cfg.RetryDelay != 2*time.Second || cfg.Bench.Tasks != 11 {
			t.Errorf("environment not applied: %+v", cfg)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cpool.yaml")
		content := "workers: 6\nlog-format: json\nbench:\n  tasks: 9\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("CPOOL_CONFIG", path)

		cfg, err := loadConfig(newViperFor(t))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Workers != 6 || cfg.LogFormat != "json" || cfg.Bench.Tasks != 9 {
			t.Errorf("config file not applied: %+v", cfg)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			env  map[string]string
		}{
			{"log level", map[string]string{"CPOOL_LOG_LEVEL": "loud"}},
			{"log format", map[string]string{"CPOOL_LOG_FORMAT": "xml"}},
			{"workers", map[string]string{"CPOOL_WORKERS": "-1"}},
			{"bench tasks", map[string]string{"CPOOL_BENCH_TASKS": "0"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				for k, v := range tt.env {
					t.Setenv(k, v)
				}
				if _, err := loadConfig(newViperFor(t)); err == nil {
					t.Error("expected a validation error")
				}
			})
		}
	})
}

func TestDemoCommand(t *testing.T) {
	out, _, err := execute(t, "demo", "--workers", "2", "--log-level", "error")
	if err != nil {
		t.Fatalf("demo failed: %v", err)
	}

	for _, want := range []string{
		"RESULT = 2",
		"RESULT = result",
		"Callback RESULT = 4",
		"Callback Result: result",
		"Callback RESULT = result",
		"Invalid dispatch call",
		"ERROR = division by zero",
		"rejected=1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBenchCommand(t *testing.T) {
	out, _, err := execute(t, "bench",
		"--log-level", "error",
		"--tasks", "20",
		"--task-duration", "1ms",
		"--worker-counts", "1,4",
	)
	if err != nil {
		t.Fatalf("bench failed: %v", err)
	}

	for _, want := range []string{"THROUGHPUT COMPARISON", "METRICS", "cpool_w4_pool_tasks_completed_total"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
