package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/api"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect/builtin"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/engine"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/sink"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	rules := flag.String("rules", "configs/rules.yaml", "Comma-separated rule files, evaluated in order")
	alertsFile := flag.String("alerts-file", "", "Append published alerts to this JSONL file")
	kafkaBrokers := flag.String("kafka-brokers", "", "Comma-separated Kafka brokers for alert publishing")
	kafkaTopic := flag.String("kafka-topic", "soclab.alerts", "Kafka topic for alerts")
	natsURL := flag.String("nats-url", "", "NATS server URL for alert publishing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load rule catalog ────────────────────────────────────────────────────
	loader, err := config.NewLoader(splitList(*rules)...)
	if err != nil {
		slog.Error("failed to load rules", "err", err)
		os.Exit(1)
	}

	reg := builtin.NewRegistry()
	rs, err := api.Build(loader.Config(), reg)
	if err != nil {
		slog.Error("rule catalog rejected", "err", err)
		os.Exit(1)
	}
	slog.Info("rules compiled", "rules", rs.Len(), "skipped", rs.Skipped(), "workers", rs.Workers())

	eng := engine.New(rs)

	// ── Alert sinks ──────────────────────────────────────────────────────────
	var pubs sink.Multi
	if *alertsFile != "" {
		f, err := sink.NewFile(*alertsFile)
		if err != nil {
			slog.Error("alert file sink", "err", err)
			os.Exit(1)
		}
		pubs = append(pubs, f)
	}
	if *kafkaBrokers != "" {
		k, err := sink.NewKafka(sink.KafkaConfig{Brokers: splitList(*kafkaBrokers), Topic: *kafkaTopic})
		if err != nil {
			slog.Error("kafka sink", "err", err)
			os.Exit(1)
		}
		pubs = append(pubs, k)
	}
	if *natsURL != "" {
		n, err := sink.NewNATS(sink.NATSConfig{URL: *natsURL})
		if err != nil {
			slog.Error("nats sink", "err", err)
			os.Exit(1)
		}
		pubs = append(pubs, n)
	}
	var pub sink.Publisher
	if len(pubs) > 0 {
		pub = pubs
		defer pubs.Close()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, loader, reg, pub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	// api.New gates reloads on a clean compile, so only accepted catalogs land here.
	loader.OnChange(func(cat *config.Catalog) {
		slog.Info("rules hot-reloaded", "rules", eng.Ruleset().Len(), "skipped", eng.Ruleset().Skipped())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("rule watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
