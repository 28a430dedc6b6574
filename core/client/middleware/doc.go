// Package middleware provides ready-made [client.MiddlewareConfig] values.
//
//   - [NewTimeoutMiddleware] bounds each call with a deadline. For streams the
//     deadline covers the whole iteration, not only the time to first byte.
//   - [NewDefaultsMiddleware] fills unset completion options, such as a
//     system prompt or token limit shared by every call.
//
// Middlewares run outermost-first: the first entry in client.Config.Middlewares
// sees the request first and the response last.
package middleware
