// Package marketdata provides the REST client for the market-data
// provider: quotes, historical candles, and company fundamentals.
// Transient provider errors (5xx, 429) are retried with jittered
// exponential backoff.
package marketdata
