// Package policy holds the route authorization table: per-route required
// role sets with longest-prefix matching and fail-closed defaults.
//
// Tables are immutable once built. The engine swaps a new Table in
// atomically on reload so in-flight requests never observe a partially
// loaded rule set.
package policy
