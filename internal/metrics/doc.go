// Package metrics provides the observability hooks for pipeline runs.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// the engine uses NoopRecorder which implements the Recorder interface with
// no-op methods.
//
// # Architecture
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing
//  3. PrometheusRecorder - Prometheus adapter, served by HTTPHandler
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	reg := prometheus.NewRegistry()
//	eng := engine.New(collection, engine.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
