// Package prometheus exposes engine metrics in Prometheus text
// exposition format without depending on the Prometheus client library.
// Mount Handler() wherever the scrape endpoint should live.
package prometheus
