// Package rate provides Redis-backed fixed-window throttling for the
// token endpoint.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - ta:rl:grant:id: — grant attempts per identifier
//   - ta:rl:grant:ip: — grant attempts per IP
//
// # What this package must NOT do
//
//   - Decide which grants get throttled (the Engine does).
//   - Be imported outside the tenauth module.
package rate
