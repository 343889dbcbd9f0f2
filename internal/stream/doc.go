// Package stream defines the contract between the trade event pipeline and a
// partitioned, durable log.
//
// A stream has a fixed number of partitions. Each partition is an append-only
// sequence of records addressed by a monotonically increasing int64 offset.
// Publishers append whole batches to a single partition and block until the
// broker acknowledges them. Subscribers claim partitions for a consumer group
// and read each partition in offset order.
//
// Implementations:
//   - memory: in-process log for tests and local runs
//   - redisstream: Redis Streams, one stream key per partition
//   - rabbitstream: RabbitMQ stream queues, one queue per partition
package stream
