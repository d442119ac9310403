// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/absmach/sparkplug-tck/config"
	mqtthost "github.com/absmach/sparkplug-tck/host/mqtt"
	"github.com/absmach/sparkplug-tck/report"
	"github.com/absmach/sparkplug-tck/server/health"
	"github.com/absmach/sparkplug-tck/server/otel"
	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/storage/badger"
	"github.com/absmach/sparkplug-tck/storage/memory"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/absmach/sparkplug-tck/tck/edge"
	"github.com/absmach/sparkplug-tck/webhook"
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	testName := flag.String("test", "", "Test to run (overrides config)")
	params := flag.String("params", "", "Comma separated test parameters (overrides config)")
	duration := flag.Duration("duration", 0, "Observation time (overrides config, 0 keeps config)")
	verbose := flag.Bool("verbose", false, "Print requirement texts and evidence topics")
	jsonOut := flag.Bool("json", false, "Print the report as JSON")
	history := flag.Bool("history", false, "Print stored reports of the test and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *testName != "" {
		cfg.Test.Name = *testName
	}
	if *params != "" {
		cfg.Test.Params = strings.Split(*params, ",")
	}
	if *duration > 0 {
		cfg.Test.Duration = *duration
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	runnerID := uuid.NewString()
	slog.Info("Starting Sparkplug TCK runner", "version", version, "runner_id", runnerID)
	slog.Info("Configuration loaded",
		"test", cfg.Test.Name,
		"params", cfg.Test.Params,
		"broker", cfg.MQTT.BrokerURL,
		"topics", cfg.MQTT.Topics,
		"duration", cfg.Test.Duration,
		"storage", cfg.Storage.Type,
		"log_level", cfg.Log.Level)

	var store storage.ReportStore
	switch cfg.Storage.Type {
	case "memory":
		store = memory.New()
		slog.Info("Using in-memory report storage")
	case "badger":
		compression, err := badger.ParseCompression(cfg.Storage.Compression)
		if err != nil {
			slog.Error("Invalid report storage compression", "error", err)
			os.Exit(1)
		}
		badgerStore, err := badger.New(badger.Config{
			Dir:         cfg.Storage.BadgerDir,
			SyncWrites:  cfg.Storage.SyncWrites,
			Compression: compression,
		})
		if err != nil {
			slog.Error("Failed to open BadgerDB report storage", "error", err)
			os.Exit(1)
		}
		store = badgerStore
		slog.Info("Using BadgerDB report storage", "dir", cfg.Storage.BadgerDir)
	}
	defer store.Close()

	var printer tck.Reporter = report.NewText(os.Stdout, *verbose)
	if *jsonOut {
		printer = report.NewJSON(os.Stdout, true)
	}

	if *history {
		if err := printHistory(store, cfg.Test.Name, printer); err != nil {
			slog.Error("Failed to list reports", "error", err)
			os.Exit(1)
		}
		return
	}

	var notifier webhook.Notifier
	if cfg.Webhook.Enabled {
		n, err := webhook.NewNotifier(cfg.Webhook, runnerID, webhook.NewHTTPSender(), logger)
		if err != nil {
			slog.Error("Failed to create webhook notifier", "error", err)
			os.Exit(1)
		}
		notifier = n
		slog.Info("Webhooks enabled",
			"endpoints", len(cfg.Webhook.Endpoints),
			"workers", cfg.Webhook.Workers,
			"queue_size", cfg.Webhook.QueueSize)
	} else {
		slog.Info("Webhooks disabled")
	}

	var otelShutdown func(context.Context) error
	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otel.InitProvider(cfg.Telemetry, runnerID)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		otelShutdown = shutdown

		if cfg.Telemetry.MetricsEnabled {
			m, err := otel.NewMetrics()
			if err != nil {
				slog.Error("Failed to create metrics", "error", err)
				os.Exit(1)
			}
			metrics = m
		}
		slog.Info("OpenTelemetry enabled",
			"endpoint", cfg.Telemetry.Endpoint,
			"metrics", cfg.Telemetry.MetricsEnabled,
			"traces", cfg.Telemetry.TracesEnabled)
	}

	var final *tck.Report
	reporters := report.Multi{
		report.NewLogger(logger),
		report.NewStore(store),
		printer,
		report.Func(func(ctx context.Context, r *tck.Report) error {
			final = r
			return nil
		}),
	}
	if notifier != nil {
		reporters = append(reporters, report.NewNotifier(notifier))
	}

	deps := tck.Deps{
		Logger:    logger,
		Reporter:  reporters,
		Namespace: cfg.Test.Namespace,
	}
	// A nil *otel.Metrics stored in the interface would not read as nil.
	if metrics != nil {
		deps.Recorder = metrics
	}

	registry := tck.NewRegistry()
	edge.Register(registry)

	test, err := registry.New(cfg.Test.Name, cfg.Test.Params, deps)
	if err != nil {
		slog.Error("Failed to create test", "error", err, "available", registry.Names())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, span := oteltrace.Tracer("sparkplug-tck").Start(ctx, "tck.session",
		trace.WithAttributes(
			attribute.String("test", cfg.Test.Name),
			attribute.StringSlice("params", cfg.Test.Params),
		))

	var opts []mqtthost.Option
	if metrics != nil {
		opts = append(opts, mqtthost.WithRecorder(metrics))
	}
	observer := mqtthost.New(mqtthost.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		Topics:         cfg.MQTT.Topics,
		QoS:            byte(cfg.MQTT.QoS),
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		CleanSession:   cfg.MQTT.CleanSession,
	}, test, logger, opts...)

	if cfg.Health.Enabled {
		hs := health.New(health.Config{
			Address:         cfg.Health.Address,
			ShutdownTimeout: cfg.Health.ShutdownTimeout,
		}, observer, store, logger)
		go func() {
			if err := hs.Listen(ctx); err != nil {
				slog.Error("Health check server failed", "error", err)
			}
		}()
	}

	if err := observer.Start(ctx); err != nil {
		span.End()
		slog.Error("Failed to start observer", "error", err)
		os.Exit(1)
	}

	if cfg.Test.Duration > 0 {
		slog.Info("Observing", "duration", cfg.Test.Duration)
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Test.Duration):
		}
	} else {
		slog.Info("Observing until interrupted")
		<-ctx.Done()
	}

	if err := observer.Stop(); err != nil {
		slog.Warn("Failed to stop observer", "error", err)
	}

	test.End(nil)
	span.SetAttributes(attribute.Int64("messages", observer.Delivered()))
	span.End()

	if notifier != nil {
		if err := notifier.Close(); err != nil {
			slog.Error("Failed to close webhook notifier", "error", err)
		}
	}

	if otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
		cancel()
	}

	if final == nil || !final.Passed() {
		store.Close()
		os.Exit(1)
	}
}

func printHistory(store storage.ReportStore, test string, printer tck.Reporter) error {
	ctx := context.Background()

	reports, err := store.List(ctx, test)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintf(os.Stdout, "No stored reports for %s\n", test)
		return nil
	}
	for _, r := range reports {
		if err := printer.Report(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
