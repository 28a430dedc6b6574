// Package observability defines the extension points a completion client
// reports through: before each request attempt, after each response, on every
// streamed delta and before every retry.
//
// [Observer] is the single injectable dependency. [Nop] ignores everything,
// [Multi] fans out to several observers, and a per-call observer can ride on
// a [context.Context] via [ContextWithObserver]. Concrete observers live in
// the slogobs (structured logging) and promobs (Prometheus) subpackages.
//
// semconv.go holds the attribute keys and metric names observers should use,
// so log records and metrics agree across implementations.
package observability
