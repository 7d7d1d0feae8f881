// Package journal records emitted notifications to PostgreSQL.
//
// Rows are append-only: id (uuid), name, payload (jsonb) and received_at in
// Unix microseconds. Writes are batched with pgx.Batch and flushed when the
// batch fills or on a fixed interval, whichever comes first.
package journal
