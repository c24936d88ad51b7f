package piditer

// Sink is the bounded, append-only output sequence records are emitted into.
// Appending to a full sink silently drops the record and counts the drop; the
// traversal itself is never aborted by a full sink.
type Sink struct {
	records  []Record
	capacity int
	dropped  int
}

// NewSink returns a sink holding at most capacity records. A capacity of zero
// or less means unbounded.
func NewSink(capacity int) *Sink {
	return &Sink{capacity: capacity}
}

// Append adds one record to the sequence. It reports whether the record was
// retained.
func (s *Sink) Append(r Record) bool {
	if s.capacity > 0 && len(s.records) >= s.capacity {
		s.dropped++
		return false
	}
	s.records = append(s.records, r)
	return true
}

// Records returns the emitted records in traversal order.
func (s *Sink) Records() []Record {
	return s.records
}

// Dropped returns how many records were discarded because the sink was full.
func (s *Sink) Dropped() int {
	return s.dropped
}

// Reset empties the sink for reuse by the next traversal.
func (s *Sink) Reset() {
	s.records = s.records[:0]
	s.dropped = 0
}
