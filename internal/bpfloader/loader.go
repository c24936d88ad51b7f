// Package bpfloader manages the lifecycle of the holder iterator program and
// its kernel attachment.
package bpfloader

import (
	"errors"
	"fmt"
	"io"

	"progtop/internal/bpf"
	"progtop/internal/piditer"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/features"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
)

const kallsymsPath = "/proc/kallsyms"

// Loader owns the loaded iterator objects and the iterator link. It
// implements piditer.Source: every Snapshot opens a fresh seq stream over the
// kernel's (task, file) traversal.
type Loader struct {
	objs   bpf.PidIterObjects
	iter   *link.Iter
	policy piditer.Policy
}

// Supported reports whether this kernel can run tracing programs at all.
// Attach still probes the task_file iterator itself; this is only a cheap
// pre-check so callers can fall back to the procfs walk without loading.
func Supported() bool {
	return features.HaveProgramType(ebpf.Tracing) == nil
}

// New loads the BPF objects into the kernel and probes, once, which filter
// policy the iterator will effectively run under. An unresolvable
// bpf_prog_fops symbol degrades to permissive, it never fails the load.
func New() (*Loader, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock rlimit: %w", err)
	}

	l := &Loader{policy: piditer.DetectPolicy(kallsymsPath)}
	if err := bpf.LoadPidIterObjects(&l.objs, nil); err != nil {
		return nil, fmt.Errorf("loading BPF objects: %w", err)
	}

	return l, nil
}

// Attach attaches the iterator program to the kernel's task_file traversal.
func (l *Loader) Attach() error {
	it, err := link.AttachIter(link.IterOptions{Program: l.objs.HoldersIter})
	if err != nil {
		return l.closeErrorf("attaching task_file iterator", err)
	}
	l.iter = it
	return nil
}

// closeErrorf closes the loaded objects and returns a formatted error.
func (l *Loader) closeErrorf(errstr string, e error) error {
	// We intentionally ignore errors during cleanup since we're already in
	// an error path.
	_ = l.objs.Close() //nolint:errcheck // Best-effort cleanup in error path
	return fmt.Errorf("%s: %w", errstr, e)
}

// Policy implements piditer.Source.
func (l *Loader) Policy() piditer.Policy {
	return l.policy
}

// Snapshot implements piditer.Source by draining one pass of the kernel
// iterator into sink. Records arrive in the kernel's visitation order.
func (l *Loader) Snapshot(sink *piditer.Sink) error {
	rd, err := l.iter.Open()
	if err != nil {
		return fmt.Errorf("opening iterator stream: %w", err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("reading iterator stream: %w", err)
	}

	for _, rec := range piditer.ParseRecords(data) {
		sink.Append(rec)
	}
	return nil
}

// Close releases the iterator link and the loaded objects.
func (l *Loader) Close() error {
	var errs []error

	if l.iter != nil {
		if err := l.iter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing iterator link: %w", err))
		}
	}

	if err := l.objs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing BPF objects: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}

	return nil
}
