// Package middleware provides the HTTP middleware of the NUI tester.
//
//   - CORS: lets a host page on another local port call the API
//   - RateLimit: per-IP token bucket with idle client eviction
//   - GlobalRateLimit: one bucket for every client
//
// Resource fetches under /res are exempt from rate limiting by default,
// since a single preview load requests every asset of the bundle.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
