// Command keyseq-bench measures the keyed sequential executor against an
// unordered worker pool running the same busy-loop workload.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/stdr"

	"github.com/fluxorio/keyseq/pkg/config"
	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/concurrency"
	"github.com/fluxorio/keyseq/pkg/keyseq"
	"github.com/fluxorio/keyseq/pkg/natsbus"
	"github.com/fluxorio/keyseq/pkg/observability/otel"
	"github.com/fluxorio/keyseq/pkg/observability/prometheus"
	"github.com/fluxorio/keyseq/pkg/web"
	"github.com/fluxorio/keyseq/pkg/web/middleware"
	"github.com/fluxorio/keyseq/pkg/web/middleware/auth"
)

func main() {
	var (
		configFile = flag.String("config", "", "config file (YAML, or JSON by extension)")
		jobs       = flag.Int("jobs", 0, "number of jobs to submit")
		reps       = flag.Int("reps", 0, "base busy-loop iterations per job")
		workers    = flag.Int("workers", 0, "keyed executor workers (also used by the baseline pool)")
		baseline   = flag.Bool("baseline", true, "also run the workload on the unordered pool")
		adminAddr  = flag.String("admin", "", "serve /healthz, /stats and /metrics on this address")
		exporter   = flag.String("trace", "", "trace exporter: stdout, zipkin or none")
		natsURL    = flag.String("nats", "", "consume published messages from this NATS server instead of submitting directly")
		verbosity  = flag.Int("v", 0, "log verbosity (1 enables debug)")
		dumpConfig = flag.String("dump-config", "", "write the effective config as YAML to this file and exit")
		adminToken = flag.Bool("admin-token", false, "print a bearer token for the admin endpoint and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `keyseq-bench - keyed sequential executor benchmark

Usage:
  keyseq-bench [options]

Configuration is read from -config, then KEYSEQ_* environment variables
(e.g. KEYSEQ_EXECUTOR_WORKERS, KEYSEQ_BENCH_JOBS), then flags.

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "jobs":
			cfg.Bench.Jobs = *jobs
		case "reps":
			cfg.Bench.Reps = *reps
		case "workers":
			cfg.Executor.Workers = *workers
		case "baseline":
			cfg.Bench.Baseline = *baseline
		case "admin":
			cfg.Admin.Enabled = *adminAddr != ""
			cfg.Admin.Addr = *adminAddr
		case "trace":
			cfg.Tracing.Exporter = *exporter
		case "nats":
			cfg.NATS.Enabled = *natsURL != ""
			cfg.NATS.URL = *natsURL
		case "v":
			cfg.Log.Verbosity = *verbosity
		}
	})

	if err := validateConfig(&cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if *dumpConfig != "" {
		if err := config.SaveYAML(*dumpConfig, cfg); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		return
	}

	if *adminToken {
		if cfg.Admin.JWTSecret == "" {
			log.Fatalf("admin.jwt_secret is not set")
		}
		token, err := auth.NewJWTTokenGenerator([]byte(cfg.Admin.JWTSecret)).
			Generate(map[string]interface{}{"sub": "keyseq-bench"}, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
		return
	}

	stdr.SetVerbosity(cfg.Log.Verbosity)
	lr := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	logger := core.NewLogrLogger(lr)
	otel.SetLogger(lr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("benchmark failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg AppConfig, logger core.Logger) error {
	if cfg.Tracing.Exporter != "none" {
		cfg.Tracing.Logger = logger
		if err := otel.Initialize(ctx, cfg.Tracing); err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otel.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("tracing shutdown: %v", err)
			}
		}()
		cfg.Executor.Tracer = otel.Tracer("keyseq-bench")
	}

	var metrics *prometheus.Metrics
	if cfg.Admin.Enabled {
		metrics = prometheus.GetMetrics()
		cfg.Executor.Metrics = metrics
	}
	cfg.Executor.Logger = logger

	x, err := keyseq.NewWithConfig(cfg.Executor)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	defer x.Stop()

	if cfg.Admin.Enabled {
		srv := newAdminServer(x, cfg.Admin, metrics, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Errorf("admin server: %v", err)
			}
		}()
		logger.Infof("admin endpoint on %s", cfg.Admin.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("admin shutdown: %v", err)
			}
		}()
	}

	w := newWorkload(cfg.Bench.Reps, cfg.Bench.Seed)
	var res Result
	if cfg.NATS.Enabled {
		nc, err := natsbus.Connect(cfg.NATS.URL, "keyseq-bench")
		if err != nil {
			return err
		}
		defer nc.Close()
		res, err = runNATS(ctx, nc, x, cfg.NATS, w, logger)
		if err != nil {
			return err
		}
	} else {
		res, err = runKeyed(x, cfg.Bench.Jobs, w)
		if err != nil {
			return err
		}
	}
	fmt.Println(res)
	logStats(logger, x.Stats())

	if cfg.Bench.Baseline && !cfg.NATS.Enabled {
		pool := concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{
			Workers:   cfg.Executor.Workers,
			QueueSize: cfg.Bench.PoolQueue,
			Logger:    logger,
		})
		res, err := runBaseline(ctx, pool, cfg.Bench.Jobs, w)
		if metrics != nil {
			metrics.UpdatePool("baseline", pool.Stats())
		}
		if err != nil {
			return err
		}
		fmt.Println(res)
	}

	if cfg.Admin.Enabled && cfg.Admin.Linger > 0 {
		logger.Infof("serving admin endpoint for %v", cfg.Admin.Linger)
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Admin.Linger):
		}
	}
	return nil
}

func newAdminServer(x *keyseq.Executor, cfg AdminConfig, m *prometheus.Metrics, logger core.Logger) *web.Server {
	wc := web.DefaultConfig(cfg.Addr)
	wc.Gatherer = prometheus.DefaultRegistry
	wc.Logger = logger

	srv := web.NewServer(x, wc)
	srv.Router().Use(
		middleware.Metrics(m),
		middleware.Recovery(middleware.RecoveryConfig{Logger: logger}),
	)
	if cfg.JWTSecret != "" {
		srv.Router().Use(auth.JWT(auth.DefaultJWTConfig(cfg.JWTSecret)))
	}
	return srv
}

func logStats(logger core.Logger, s keyseq.Stats) {
	var panics uint64
	for _, w := range s.Workers {
		panics += w.Panics
		logger.Debugf("worker %s: routed %d, completed %d", w.Label, w.Routed, w.Completed)
	}
	logger.Infof("%s %s: routed %d, completed %d, panics %d, misrouted %d",
		s.Name, s.State, s.Routed(), s.Completed(), panics, s.Misrouted)
}
