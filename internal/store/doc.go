// Package store provides a SQLite-backed registry for exported models.
//
// Models are content-addressed: the registry key is a domain-separated
// SHA-256 of the serialized payload, so storing the same model twice is
// a no-op and a hash uniquely names one payload forever.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
