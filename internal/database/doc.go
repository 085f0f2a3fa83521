// Package database provides connection pool management for the cache
// PostgreSQL instance.
//
// Each syncd instance keeps its cache partitions in a single local
// database. The pool is created at startup and shared by all cache
// partitions.
package database
