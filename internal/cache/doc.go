// Package cache provides the durable, TTL-governed store behind every
// market-data fetch. Entries live in a fixed set of partitions and are
// logically absent as soon as they expire, whether or not a sweep has
// physically deleted them yet. The cache is strictly an optimization:
// when the store is unavailable every operation fails soft and callers
// fall back to fetching remotely.
package cache
