// Package reporting contains listeners for testrun events: a collector that keeps the final
// result of every test, a summary table, an HTTP sink that posts events to another process
// along with the receiver for those posts, and Prometheus metrics.
package reporting
