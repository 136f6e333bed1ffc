// Package cache provides deterministic keying and a TTL result cache for
// expensive computations.
//
// It provides a Keyer that hashes RFC 8785 canonical JSON, a MemoryCache with
// lazy and active expiry plus hit/miss accounting, and a TTL Policy.
package cache
