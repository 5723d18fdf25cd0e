// Package internaldefs holds the shared metric name and bucket
// definitions used by the Prometheus and OTel exporters. It exists so
// the two backends cannot drift apart on names or ordering.
package internaldefs
