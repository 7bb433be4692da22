package main

import (
	"time"

	"github.com/fluxorio/keyseq/pkg/config"
	"github.com/fluxorio/keyseq/pkg/keyseq"
	"github.com/fluxorio/keyseq/pkg/observability/otel"
)

// AppConfig is the benchmark's configuration file layout.
type AppConfig struct {
	Executor keyseq.Config `yaml:"executor"`
	Bench    BenchConfig   `yaml:"bench"`
	Admin    AdminConfig   `yaml:"admin"`
	Tracing  otel.Config   `yaml:"tracing"`
	NATS     NATSConfig    `yaml:"nats"`
	Log      LogConfig     `yaml:"log"`
}

type BenchConfig struct {
	Jobs      int   `yaml:"jobs"`
	Reps      int   `yaml:"reps"`
	Seed      int64 `yaml:"seed"` // 0 keeps the runtime's random seed
	Baseline  bool  `yaml:"baseline"`
	PoolQueue int   `yaml:"pool_queue"` // baseline pool queue size
}

type AdminConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	JWTSecret string        `yaml:"jwt_secret"` // empty leaves the endpoint open
	Linger    time.Duration `yaml:"linger"`     // keep serving after the run
}

type NATSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Subject  string `yaml:"subject"`
	Queue    string `yaml:"queue"`
	Messages int    `yaml:"messages"`
	Keys     int    `yaml:"keys"`
}

type LogConfig struct {
	Verbosity int `yaml:"verbosity"`
}

func defaultConfig() AppConfig {
	tracing := otel.DefaultConfig()
	tracing.ServiceName = "keyseq-bench"
	tracing.Exporter = "none"

	executor := keyseq.DefaultConfig()
	executor.Workers = 10

	return AppConfig{
		Executor: executor,
		Bench: BenchConfig{
			Jobs:      10_000_000,
			Reps:      1000,
			Baseline:  true,
			PoolQueue: 4096,
		},
		Admin: AdminConfig{
			Addr:   ":9464",
			Linger: 0,
		},
		Tracing: tracing,
		NATS: NATSConfig{
			URL:      "nats://127.0.0.1:4222",
			Subject:  "keyseq.bench",
			Messages: 10_000,
			Keys:     100,
		},
	}
}

// loadConfig layers defaults, the optional file and KEYSEQ_* variables.
func loadConfig(path string) (AppConfig, error) {
	cfg := defaultConfig()
	if err := config.LoadWithEnv(path, "KEYSEQ", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg *AppConfig) error {
	err := config.Validate(cfg,
		config.SelfValidating("Executor"),
		config.RangeValidator("Bench.Jobs", 0, 1<<40),
		config.RangeValidator("Bench.Reps", 0, 1<<30),
		config.RangeValidator("Bench.PoolQueue", 1, 1<<24),
		config.RangeValidator("Tracing.SampleRate", 0, 1),
		config.OneOfValidator("Tracing.Exporter", "stdout", "zipkin", "none"),
	)
	if err != nil {
		return err
	}
	if cfg.NATS.Enabled {
		if err := config.Validate(cfg,
			config.RequiredFields("NATS.URL", "NATS.Subject"),
			config.RangeValidator("NATS.Keys", 1, 1<<30),
		); err != nil {
			return err
		}
	}
	if cfg.Admin.Enabled {
		return config.Validate(cfg, config.RequiredFields("Admin.Addr"))
	}
	return nil
}
