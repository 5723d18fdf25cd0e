// Package internal contains helper utilities that are intentionally private to tenauth,
// including secure random grant-code generation and token fingerprinting.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - metrics — lock-free counters and latency histograms
//   - rate — Redis-backed fixed-window throttling for the token endpoint
//
// # What this package must NOT do
//
//   - Export types that appear in the public tenauth API.
//   - Be imported by any package outside the tenauth module.
package internal
