// Package otel bridges engine metrics into OpenTelemetry as observable
// instruments. Collection is pull-based through the meter's callback,
// so enabling the exporter adds no cost to token or authorization
// paths.
package otel
