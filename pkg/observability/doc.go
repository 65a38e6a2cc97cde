/*
Package observability instruments the transition engine with Prometheus
metrics.

It bridges the engine's lifecycle hooks and preview cache observer onto
counters, and exposes them via a standard /metrics handler.
*/
package observability
