// Package principal defines the validated identity model shared by the
// claims converter, the decision engine, and the token cache, plus the
// versioned binary codec used when principals are persisted in Redis.
package principal
