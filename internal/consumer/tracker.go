package consumer

import "sync"

// tracker holds one partition's progress: the furthest processed offset and
// the last offset persisted to the checkpoint store.
type tracker struct {
	partition int

	flushMu sync.Mutex // one flush at a time keeps stored positions monotonic

	mu           sync.Mutex
	processed    int64
	hasProcessed bool
	flushed      int64
	hasFlushed   bool
	seq          int64 // events processed so far
	flushedSeq   int64 // seq covered by the last successful flush
	active       bool
}

func newTracker(partition int) *tracker {
	return &tracker{partition: partition}
}

// restore seeds the tracker with a checkpoint loaded from the store.
func (t *tracker) restore(position int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed, t.hasProcessed = position, true
	t.flushed, t.hasFlushed = position, true
}

// markProcessed records offset as handled and returns the number of
// processed events not yet flushed.
func (t *tracker) markProcessed(offset int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasProcessed || offset > t.processed {
		t.processed, t.hasProcessed = offset, true
	}
	t.seq++
	return t.seq - t.flushedSeq
}

// pending returns the position to flush, if it is ahead of the last flush.
func (t *tracker) pending() (position, seq int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasProcessed || (t.hasFlushed && t.processed <= t.flushed) {
		return 0, 0, false
	}
	return t.processed, t.seq, true
}

func (t *tracker) markFlushed(position, seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFlushed || position > t.flushed {
		t.flushed, t.hasFlushed = position, true
	}
	if seq > t.flushedSeq {
		t.flushedSeq = seq
	}
}

func (t *tracker) setActive(active bool) {
	t.mu.Lock()
	t.active = active
	t.mu.Unlock()
}

// PartitionStats is a snapshot of one partition's progress. Positions are -1
// until set.
type PartitionStats struct {
	Processed    int64
	Checkpointed int64
	Pending      int64
	Active       bool
}

func (t *tracker) stats() PartitionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := PartitionStats{Processed: -1, Checkpointed: -1, Pending: t.seq - t.flushedSeq, Active: t.active}
	if t.hasProcessed {
		s.Processed = t.processed
	}
	if t.hasFlushed {
		s.Checkpointed = t.flushed
	}
	return s
}
