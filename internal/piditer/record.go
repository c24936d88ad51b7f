package piditer

import (
	"bytes"
	"encoding/binary"
)

// CommLen matches the kernel's TASK_COMM_LEN.
const CommLen = 16

// RecordSize is the wire size of one Record. The layout has no padding, so
// this equals the sum of the field sizes.
const RecordSize = 4 + 4 + CommLen

// Record matches the C struct emitted by the iter/task_file program in
// internal/bpf: one observation of a process holding an open reference to a
// loaded BPF program.
type Record struct {
	// ProgID is the kernel-assigned id of the loaded program, 0 when the
	// permissive filter let a non-program handle through or the id read
	// failed. Consumers must discard records whose ProgID is 0 or not in
	// their own enumeration of loaded programs.
	ProgID uint32
	// Pid is the thread-group id of the task holding the handle.
	Pid int32
	// Comm is the NUL-padded display name of the process's lead thread.
	Comm [CommLen]byte
}

// Name returns the Comm field with trailing NUL padding stripped.
func (r *Record) Name() string {
	if i := bytes.IndexByte(r.Comm[:], 0); i >= 0 {
		return string(r.Comm[:i])
	}
	return string(r.Comm[:])
}

// setComm copies name into the Comm field, truncating so the field is always
// NUL-terminated. The receiver's Comm is assumed zeroed.
func (r *Record) setComm(name string) {
	copy(r.Comm[:CommLen-1], name)
}

// ParseRecords decodes a stream of fixed-size records as written by
// bpf_seq_write. A trailing partial record is ignored: the kernel only ever
// writes whole entries, so leftover bytes mean the read was cut short.
func ParseRecords(data []byte) []Record {
	records := make([]Record, 0, len(data)/RecordSize)
	for len(data) >= RecordSize {
		var r Record
		r.ProgID = binary.LittleEndian.Uint32(data[0:4])
		r.Pid = int32(binary.LittleEndian.Uint32(data[4:8]))
		copy(r.Comm[:], data[8:RecordSize])
		records = append(records, r)
		data = data[RecordSize:]
	}
	return records
}
