// Package middleware provides the HTTP middleware used by the conversion
// service: chaining, CORS, security headers, request IDs, and per-IP rate
// limiting.
package middleware

import "net/http"

// Middleware wraps an http.HandlerFunc with additional behavior.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares into one. Execution follows the onion model:
// Chain(m1, m2, ..., mn) runs m1 -> m2 -> ... -> mn -> handler and unwinds
// in reverse, so the first argument is the outermost layer.
//
// Chain() with no middlewares returns a pass-through.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
