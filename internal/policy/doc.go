// Package policy maps semantic data categories to cache TTLs and to
// cleanup priorities. It is pure and stateless: the cache store never
// consults it, callers derive expiry timestamps and cleanup ordering here.
package policy
