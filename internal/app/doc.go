// Package app wires the live price channel, the provider REST client and
// the durable cache into the fetch service the dashboard backend calls.
//
// Reads go cache-first: a fresh entry is served without touching the
// provider, a miss or expired entry triggers one provider call (deduped
// across concurrent callers) whose result is written back with the TTL
// for its data category. Cache failures degrade to direct provider
// fetches rather than errors.
package app
