// Package repositories implements SQLite persistence for domain entities.
//
// [PublishRunRepository] stores the audit log of publish runs: CRUD operations with atomic sequence generation
// for human-readable ordering, and soft deletes via deleted_at timestamps that are excluded from queries by default.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
