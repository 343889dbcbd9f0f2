// Package bootstrap turns a loaded config.Config into running components:
// the stream transport, the checkpoint store, and the producer and consumer
// settings derived from their config sections.
//
// Every Open function returns a Closers value that releases what it opened,
// in reverse order.
package bootstrap
