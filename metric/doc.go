// Package metric provides Prometheus-based metrics collection and an HTTP
// server for driver monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (agent status, duty cycles, wire counters) and custom
// agent-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: platform-level metrics automatically registered (Metrics type)
//  2. Agent Registry: extensible registration for agent-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health checks (Server type)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordAgentStatus("conductor", 2)
//	coreMetrics.RecordDutyCycle("receiver", 12)
//
// Custom per-agent metrics register through the MetricsRegistrar interface
// with an agentName.metricName key so duplicate registration is rejected
// before it reaches Prometheus.
package metric
