package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"replicator/internal/config"
	"replicator/internal/storage"

	// register all sink backends with the storage factory.
	// config selects one, but the binary supports all of them.
	_ "replicator/internal/storage/all"
)

// main loads and validates the config, sets up metrics and runs the
// replication once or on a cron schedule until interrupted.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		scheduleFlg       string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/replicator.json", "config file path (JSON, or YAML for .yaml/.yml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	flag.StringVar(&scheduleFlg, "schedule", "", "cron expression for repeated runs (overrides runtime.schedule; empty runs once)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	cfg = cfg.WithDefaults().ResolveDSNs(os.Getenv)
	if scheduleFlg != "" {
		cfg.Runtime.Schedule = scheduleFlg
	}

	issues := config.Validate(cfg, storage.ListKinds())
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	closeMetrics := setupMetrics(metricsOptions{
		Backend:    firstNonEmpty(metricsBackendFlg, os.Getenv("METRICS_BACKEND")),
		GatewayURL: firstNonEmpty(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		StatsdAddr: firstNonEmpty(statsdAddrFlg, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125"),
		Job:        cfg.Job,
		Verbose:    *verbose,
	})
	defer closeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.Schedule != "" {
		if err := runScheduled(ctx, cfg, *verbose); err != nil {
			log.Printf("%v", err)
			closeMetrics()
			os.Exit(1)
		}
		return
	}

	if err := runOnce(ctx, cfg, *verbose); err != nil {
		log.Printf("%v", err)
		flushMetrics()
		closeMetrics()
		os.Exit(1)
	}
	flushMetrics()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
