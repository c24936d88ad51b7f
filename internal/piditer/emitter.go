package piditer

import (
	"errors"
	"io/fs"
)

// Policy selects how handles are classified before extraction. It is fixed
// once per traversal source, never per pair.
type Policy int

const (
	// PolicyStrict emits only for handles whose referenced object is known
	// to be a loaded BPF program.
	PolicyStrict Policy = iota
	// PolicyPermissive attempts extraction on every handle and relies on
	// the consumer to discard records whose ProgID is not a loaded program
	// id. Used when the classification capability is unavailable.
	PolicyPermissive
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyPermissive:
		return "permissive"
	}
	return "unknown"
}

// Task is the owner side of a traversal pair.
type Task interface {
	// TGID returns the process (thread-group) identifier.
	TGID() int32
	// LeaderComm returns the display name of the group leader. A failed
	// read degrades the record's name, it does not suppress the record.
	LeaderComm() (string, error)
}

// Handle is one open reference held by a task to a kernel-managed object.
type Handle interface {
	// IsProgram reports whether the referenced object is a loaded BPF
	// program. Only consulted under PolicyStrict.
	IsProgram() (bool, error)
	// ProgID extracts the program id behind the handle. It returns an
	// error wrapping fs.ErrNotExist when the handle target is gone, and
	// (0, nil) when the handle exists but carries no program id.
	ProgID() (uint32, error)
}

// Pair is the current item of an externally driven traversal over all
// (task, open handle) combinations.
type Pair struct {
	Task   Task
	Handle Handle
}

// Emitter applies the per-pair filter and appends matching records to a sink.
// It is stateless across pairs: every Visit call stands alone, and no Visit
// outcome ever terminates the traversal.
type Emitter struct {
	policy Policy
	sink   *Sink
}

// NewEmitter returns an emitter writing to sink under the given policy.
func NewEmitter(policy Policy, sink *Sink) *Emitter {
	return &Emitter{policy: policy, sink: sink}
}

// Policy returns the classification policy the emitter was built with.
func (e *Emitter) Policy() Policy {
	return e.policy
}

// Visit inspects one traversal pair and emits at most one record for it.
// Absent tasks or handles are expected transient states during a live walk
// and are skipped silently.
func (e *Emitter) Visit(p Pair) {
	if p.Task == nil || p.Handle == nil {
		return
	}

	if e.policy == PolicyStrict {
		ok, err := p.Handle.IsProgram()
		if err != nil || !ok {
			return
		}
	}

	id, err := p.Handle.ProgID()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Handle closed between classification and extraction.
			return
		}
		// Partial read: keep the record with a zero id, the consumer
		// discards it like any other unresolved entry.
		id = 0
	}

	var rec Record
	rec.ProgID = id
	rec.Pid = p.Task.TGID()
	if name, err := p.Task.LeaderComm(); err == nil {
		rec.setComm(name)
	}
	e.sink.Append(rec)
}
