// Package piditer implements the per-handle filter that correlates loaded BPF
// programs with the processes holding references to them.
//
// The kernel-side rendition of this logic lives in internal/bpf as an
// iter/task_file program. This package holds the shared record layout, the
// same filter expressed as a plain per-pair step over an externally driven
// traversal, and a procfs-backed traversal for kernels where the BPF iterator
// cannot be attached.
package piditer
