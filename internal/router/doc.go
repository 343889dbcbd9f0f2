// Package router maps partition keys to stream partitions.
//
// Routing is a pure function of (key, partition count) so the per-ticker
// ordering guarantee can be reasoned about and tested without a broker:
// every event for one ticker lands in one partition, and a partition is an
// ordered log. Changing the partition count remaps keys; the count is fixed
// for the lifetime of a stream.
package router
