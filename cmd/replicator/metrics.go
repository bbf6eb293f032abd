package main

import (
	"log"

	"replicator/internal/metrics"
	"replicator/internal/metrics/datadog"
	"replicator/internal/metrics/prompush"
)

type metricsOptions struct {
	Backend    string // pushgateway, datadog, none
	GatewayURL string
	StatsdAddr string
	Job        string
	Verbose    bool
}

// closer is implemented by backends holding a connection.
type closer interface {
	Close() error
}

// newMetricsBackend builds the backend named by o.Backend. A nil backend
// means metrics stay disabled.
func newMetricsBackend(o metricsOptions) (metrics.Backend, error) {
	switch o.Backend {
	case "pushgateway":
		return prompush.NewBackend(o.Job, o.GatewayURL)
	case "datadog":
		return datadog.NewBackend(datadog.Config{
			Addr:       o.StatsdAddr,
			Namespace:  "replicator.",
			GlobalTags: []string{"job:" + o.Job},
		})
	case "", "none":
		return nil, nil
	}
	log.Printf("metrics: unknown backend %q; metrics disabled", o.Backend)
	return nil, nil
}

// setupMetrics installs the configured backend and returns its cleanup.
func setupMetrics(o metricsOptions) func() {
	b, err := newMetricsBackend(o)
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", o.Backend, err)
		return func() {}
	}
	if b == nil {
		if o.Verbose {
			log.Printf("metrics: disabled (backend=%q)", o.Backend)
		}
		return func() {}
	}

	log.Printf("metrics: backend=%v job_name=%v", o.Backend, o.Job)
	metrics.SetBackend(b)
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		if c, ok := b.(closer); ok {
			if err := c.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		}
	}
}

// flushMetrics pushes what the current backend holds, after each run.
func flushMetrics() {
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}
