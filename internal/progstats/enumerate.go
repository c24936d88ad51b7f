package progstats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// Snapshot enumerates every program currently loaded in the kernel. Programs
// unloaded between the id walk and the info read are skipped; they are
// expected churn, not errors.
func Snapshot() ([]Program, error) {
	ncpu := runtime.NumCPU()

	var progs []Program
	var id ebpf.ProgramID
	for {
		next, err := ebpf.ProgramGetNextID(id)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return nil, fmt.Errorf("enumerating programs: %w", err)
		}
		id = next

		prog, err := ebpf.NewProgramFromID(id)
		if err != nil {
			continue
		}
		info, err := prog.Info()
		prog.Close()
		if err != nil {
			continue
		}

		p := Program{
			ID:      uint32(id),
			Type:    info.Type.String(),
			Name:    info.Name,
			Tag:     info.Tag,
			NumCPUs: ncpu,
		}
		if rt, ok := info.Runtime(); ok {
			p.RunTimeNs = uint64(rt.Nanoseconds())
		}
		if rc, ok := info.RunCount(); ok {
			p.RunCnt = rc
		}
		progs = append(progs, p)
	}
	return progs, nil
}

// IDSet returns the set of loaded program ids. This is the reference set
// consumers check holder records against: a record whose id is 0 or absent
// here is a permissive-filter pass-through and must be discarded.
func IDSet(progs []Program) map[uint32]bool {
	ids := make(map[uint32]bool, len(progs))
	for i := range progs {
		ids[progs[i].ID] = true
	}
	return ids
}

// EnableStats turns on kernel-wide runtime accounting for BPF programs.
// Without it run_time_ns and run_cnt stay frozen and every derived stat reads
// zero. The returned closer reverts the setting.
func EnableStats() (io.Closer, error) {
	c, err := ebpf.EnableStats(unix.BPF_STATS_RUN_TIME)
	if err != nil {
		return nil, fmt.Errorf("enabling BPF_STATS_RUN_TIME: %w", err)
	}
	return c, nil
}
