package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rtedf/internal/app"
	"rtedf/internal/logx"
	"rtedf/internal/queue"
	"rtedf/internal/sched"
)

func main() {
	var (
		cfgPath string
		ticks   int64
		echo    bool
	)
	flag.StringVar(&cfgPath, "config", "config.yml", "path to config yaml")
	flag.Int64Var(&ticks, "ticks", -1, "ticks to simulate, overrides run_ticks (0 runs until interrupted)")
	flag.BoolVar(&echo, "uart", false, "echo UART output to stdout")
	flag.Parse()

	// Read the configuration
	cfg, cfgErr := sched.Load(cfgPath)
	if ticks >= 0 {
		cfg.RunTicks = ticks
	}
	log := logx.New(os.Stderr, logx.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Str("path", cfgPath).Msg("using default configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, echo); err != nil {
		log.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg sched.Config, log zerolog.Logger, echo bool) error {
	gpio := app.NewSimGPIO()
	k := sched.New(cfg,
		sched.WithLogger(log),
		sched.WithTracer(app.NewPinTracer(gpio)),
	)
	defer k.Stop()

	if cfg.CSVPath != "" {
		if err := k.EnableCSVLogging(cfg.CSVPath); err != nil {
			return fmt.Errorf("csv trace: %w", err)
		}
	}

	table, err := app.ApplyOverrides(app.DefaultTable(), cfg.Tasks)
	if err != nil {
		return err
	}
	uart := io.Discard
	if echo {
		uart = os.Stdout
	}
	if _, err := app.Install(app.Deps{
		Kernel: k,
		Queue:  queue.New(app.QueueCapacity, app.QueueMsgSize, log),
		GPIO:   gpio,
		UART:   uart,
		Log:    log,
	}, table); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, ReadHeaderTimeout: 5 * time.Second}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(k.Registry(), promhttp.HandlerOpts{}))
		srv.Handler = mux
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	if cfg.RunTicks > 0 {
		err = k.RunTicks(cfg.RunTicks)
	} else {
		err = k.Run(ctx)
	}
	if err != nil {
		return err
	}

	_, err = k.Stats().WriteTo(os.Stdout)
	return err
}
