// Package utils holds the low-level helpers shared by the wire client: JSON
// HTTP round-trips that classify every failure ([DoPost], [DoGet],
// [DoPostStream]), tool-argument repair ([ParseToolArguments]), log-safe
// string rendering and a request timer.
package utils
