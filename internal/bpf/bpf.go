// Package bpf provides Go bindings for the BPF holder iterator.
//
// The iter/task_file program in pid_iter.bpf.c visits every (task, open file)
// pair in the kernel and writes one fixed 24-byte entry per handle that
// references a loaded BPF program; see internal/piditer.Record for the Go
// mirror of the entry layout. The prog_id field is read through a CO-RE
// relocation so the offset of bpf_prog_aux.id is resolved against the running
// kernel's BTF at load time rather than assumed.
package bpf

import (
	"github.com/cilium/ebpf"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -target amd64 pidIter ./pid_iter.bpf.c -- -I.

// PidIterObjects provides access to the loaded BPF objects.
type PidIterObjects = pidIterObjects

// PidIterPrograms provides access to the BPF programs.
type PidIterPrograms = pidIterPrograms

// LoadPidIterObjects loads the iterator program into the kernel.
func LoadPidIterObjects(obj *pidIterObjects, opts *ebpf.CollectionOptions) error {
	return loadPidIterObjects(obj, opts)
}
