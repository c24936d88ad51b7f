package piditer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// bpfProgLinkTarget is the readlink target of an fd referencing a loaded BPF
// program.
const bpfProgLinkTarget = "anon_inode:bpf-prog"

// ProcSource walks /proc/<pid>/fd as the traversal cursor and feeds every
// (task, fd) pair through the emitter. It is the fallback for kernels where
// the iter/task_file program cannot be attached and mirrors its semantics:
// one pass, no locks, best-effort snapshot under concurrent fd churn.
type ProcSource struct {
	fs     procfs.FS
	root   string
	policy Policy
}

// NewProcSource returns a source rooted at the given procfs mount.
func NewProcSource(root string, policy Policy) (*ProcSource, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", root, err)
	}
	return &ProcSource{fs: fs, root: root, policy: policy}, nil
}

// DetectProcPolicy probes, once, whether fd links under the given procfs root
// can be classified by their readlink target. When they cannot (hidepid
// mounts, restricted containers), the walk degrades to permissive.
func DetectProcPolicy(root string) Policy {
	if _, err := os.Readlink(filepath.Join(root, "self", "fd", "0")); err != nil {
		return PolicyPermissive
	}
	return PolicyStrict
}

// Policy implements Source.
func (s *ProcSource) Policy() Policy {
	return s.policy
}

// Close implements Source. The walk holds nothing across snapshots.
func (s *ProcSource) Close() error {
	return nil
}

// Snapshot implements Source by visiting every (process, fd) pair currently
// listed under the procfs root. Processes and fds that vanish mid-walk are
// skipped; they never abort the traversal.
func (s *ProcSource) Snapshot(sink *Sink) error {
	procs, err := s.fs.AllProcs()
	if err != nil {
		return fmt.Errorf("listing processes under %s: %w", s.root, err)
	}

	em := NewEmitter(s.policy, sink)
	for _, p := range procs {
		fds, err := p.FileDescriptors()
		if err != nil {
			continue
		}
		task := &procTask{proc: p}
		for _, fd := range fds {
			em.Visit(Pair{
				Task:   task,
				Handle: &procHandle{root: s.root, pid: p.PID, fd: fd},
			})
		}
	}
	return nil
}

type procTask struct {
	proc procfs.Proc
}

func (t *procTask) TGID() int32 {
	return int32(t.proc.PID)
}

func (t *procTask) LeaderComm() (string, error) {
	return t.proc.Comm()
}

type procHandle struct {
	root string
	pid  int
	fd   uintptr
}

func (h *procHandle) fdPath(dir string) string {
	return filepath.Join(h.root, strconv.Itoa(h.pid), dir, strconv.FormatUint(uint64(h.fd), 10))
}

func (h *procHandle) IsProgram() (bool, error) {
	target, err := os.Readlink(h.fdPath("fd"))
	if err != nil {
		return false, err
	}
	return target == bpfProgLinkTarget, nil
}

func (h *procHandle) ProgID() (uint32, error) {
	f, err := os.Open(h.fdPath("fdinfo"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, value, found := strings.Cut(scanner.Text(), ":")
		if !found || name != "prog_id" {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return 0, nil
		}
		return uint32(id), nil
	}
	return 0, scanner.Err()
}
