// Package progstats enumerates the BPF programs loaded in the kernel and
// derives per-sample runtime statistics from their cumulative counters.
package progstats

// Program is one loaded BPF program as seen at a sample instant, together
// with the counters from the previous sample of the same program. Counters
// are cumulative since load; Prev fields are zero the first time a program is
// observed, which makes the first period read as "everything so far".
type Program struct {
	ID   uint32
	Type string
	Name string
	Tag  string

	RunTimeNs     uint64
	RunCnt        uint64
	PrevRunTimeNs uint64
	PrevRunCnt    uint64

	// PeriodNs is the wall-clock span between the previous sample of this
	// program and this one.
	PeriodNs uint64
	NumCPUs  int
}

// RuntimeDelta returns the runtime accumulated during the sample period.
func (p *Program) RuntimeDelta() uint64 {
	return p.RunTimeNs - p.PrevRunTimeNs
}

// RunCntDelta returns the number of invocations during the sample period.
func (p *Program) RunCntDelta() uint64 {
	return p.RunCnt - p.PrevRunCnt
}

// PeriodAverageRuntimeNs returns the mean per-invocation runtime within the
// sample period.
func (p *Program) PeriodAverageRuntimeNs() uint64 {
	if p.RunCntDelta() == 0 {
		return 0
	}
	return p.RuntimeDelta() / p.RunCntDelta()
}

// TotalAverageRuntimeNs returns the mean per-invocation runtime since load.
func (p *Program) TotalAverageRuntimeNs() uint64 {
	if p.RunCnt == 0 {
		return 0
	}
	return p.RunTimeNs / p.RunCnt
}

// EventsPerSecond returns the invocation rate over the sample period,
// rounded to the nearest integer.
func (p *Program) EventsPerSecond() int64 {
	if p.PeriodNs == 0 {
		return 0
	}
	eps := float64(p.RunCntDelta()) / float64(p.PeriodNs) * 1e9
	return int64(eps + 0.5)
}

// CPUTimePercent returns the share of total CPU time the program consumed
// during the sample period, normalized across all CPUs.
func (p *Program) CPUTimePercent() float64 {
	if p.RunTimeNs == 0 || p.PeriodNs == 0 || p.NumCPUs == 0 {
		return 0
	}
	return (float64(p.RuntimeDelta()) / float64(p.NumCPUs)) / float64(p.PeriodNs) * 100.0
}
