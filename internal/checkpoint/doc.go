// Package checkpoint defines the durable (consumer group, partition) →
// position mapping used to resume consumption.
//
// Stores must tolerate concurrent writers on different keys. Writers on the
// same key are serialized by the consumer, so last-writer-wins per key is
// sufficient; SQL-backed stores additionally ignore writes that would move a
// checkpoint backwards.
//
// Backends:
//   - Memory (this package)
//   - pgstore: PostgreSQL via pgx
//   - sqlitestore: SQLite via modernc.org/sqlite
//   - badgerstore: embedded Badger KV
//   - redisstore: Redis hash per group
package checkpoint
