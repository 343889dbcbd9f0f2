// Package consumer reads trade events from a partitioned stream on behalf
// of a consumer group.
//
// The Consumer:
//   - Claims the partitions this member owns and runs one sequential loop per partition
//   - Resumes each partition after its last checkpoint, or at the cold-start position
//   - Applies the poison policy to records that fail to decode
//   - Retries failed handler calls without advancing past the failed event
//   - Flushes checkpoints on a batch-size trigger and on a shared interval
//
// Delivery is at least once: after a crash or an unflushed stop, events after
// the last durable checkpoint are delivered again. Handlers deduplicate on
// the event id.
package consumer
