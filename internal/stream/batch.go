package stream

// Batch is a set of encoded events bound for one partition. A Batch is owned
// by a single publish call and is not safe for concurrent use.
type Batch struct {
	partition int
	key       string
	maxBytes  int
	size      int
	events    [][]byte
}

// NewBatch creates an empty batch for partition. maxBytes <= 0 means no limit.
func NewBatch(partition int, key string, maxBytes int) *Batch {
	return &Batch{
		partition: partition,
		key:       key,
		maxBytes:  maxBytes,
	}
}

// TryAdd appends data if the batch stays within its byte limit.
func (b *Batch) TryAdd(data []byte) bool {
	if b.maxBytes > 0 && b.size+len(data) > b.maxBytes {
		return false
	}
	b.events = append(b.events, data)
	b.size += len(data)
	return true
}

// Partition returns the destination partition.
func (b *Batch) Partition() int { return b.partition }

// Key returns the partition key the batch was routed by.
func (b *Batch) Key() string { return b.key }

// Len returns the number of events.
func (b *Batch) Len() int { return len(b.events) }

// Size returns the total payload bytes.
func (b *Batch) Size() int { return b.size }

// Events returns the encoded events in insertion order.
func (b *Batch) Events() [][]byte { return b.events }
