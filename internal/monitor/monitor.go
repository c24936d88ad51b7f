// Package monitor drives the periodic sampling loop: one holder snapshot and
// one program snapshot per period, joined into rows for display.
package monitor

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"progtop/internal/piditer"
	"progtop/internal/progstats"
)

// Holder is one process observed holding a reference to a program.
type Holder struct {
	Pid  int32
	Comm string
}

// Row joins one loaded program with the processes holding references to it.
type Row struct {
	progstats.Program
	Holders []Holder
}

// Sample is the result of one sampling period.
type Sample struct {
	Rows    []Row
	TakenAt time.Time
	Policy  piditer.Policy
	// Dropped counts holder records lost to sink backpressure.
	Dropped int
	// Discarded counts holder records rejected by the valid-id check, the
	// documented consumer-side half of the permissive filter contract.
	Discarded int
}

// Options configures a Monitor. Zero values pick the defaults.
type Options struct {
	Interval time.Duration
	// Filter keeps only programs whose name or type contains the string,
	// case-insensitively.
	Filter string
	Sort   Column
	// MaxRecords bounds the holder sink per snapshot.
	MaxRecords int
	// HistorySize bounds how many programs' previous counters are kept.
	HistorySize int
	// Progs overrides the program snapshot function in tests.
	Progs func() ([]progstats.Program, error)
	Log   logrus.FieldLogger
}

const (
	defaultInterval    = time.Second
	defaultMaxRecords  = 16384
	defaultHistorySize = 4096
)

type prevCounters struct {
	runTimeNs uint64
	runCnt    uint64
	takenAt   time.Time
}

// Monitor takes joined samples from a holder source and the program
// enumeration.
type Monitor struct {
	source piditer.Source
	opts   Options
	sink   *piditer.Sink
	// history holds the previous sample's counters per program id. LRU so
	// programs unloaded long ago fall out instead of accumulating.
	history *lru.Cache[uint32, prevCounters]

	warnedPermissive bool
}

// New creates a Monitor over the given holder source.
func New(source piditer.Source, opts Options) (*Monitor, error) {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = defaultMaxRecords
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.Progs == nil {
		opts.Progs = progstats.Snapshot
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Sort == "" {
		opts.Sort = SortCPU
	}

	history, err := lru.New[uint32, prevCounters](opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("creating history cache: %w", err)
	}

	return &Monitor{
		source:  source,
		opts:    opts,
		sink:    piditer.NewSink(opts.MaxRecords),
		history: history,
	}, nil
}

// Sample takes one joined snapshot. A failed holder snapshot degrades to rows
// without holder information; a failed program snapshot is an error because
// nothing meaningful is left to show.
func (m *Monitor) Sample(now time.Time) (*Sample, error) {
	m.sink.Reset()
	if err := m.source.Snapshot(m.sink); err != nil {
		m.opts.Log.WithError(err).Warn("holder snapshot failed")
	}

	progs, err := m.opts.Progs()
	if err != nil {
		return nil, fmt.Errorf("program snapshot: %w", err)
	}

	if m.source.Policy() == piditer.PolicyPermissive && !m.warnedPermissive {
		m.opts.Log.Warn("handle type filter unavailable; discarding holder records by program id instead")
		m.warnedPermissive = true
	}

	// A record whose id is 0 or not among the loaded programs is a
	// pass-through of the permissive filter and carries no information.
	valid := progstats.IDSet(progs)
	holders := make(map[uint32][]Holder)
	discarded := 0
	for _, rec := range m.sink.Records() {
		if rec.ProgID == 0 || !valid[rec.ProgID] {
			discarded++
			continue
		}
		holders[rec.ProgID] = append(holders[rec.ProgID], Holder{Pid: rec.Pid, Comm: rec.Name()})
	}

	rows := make([]Row, 0, len(progs))
	for _, p := range progs {
		if !matchesFilter(&p, m.opts.Filter) {
			continue
		}
		if prev, ok := m.history.Get(p.ID); ok {
			p.PrevRunTimeNs = prev.runTimeNs
			p.PrevRunCnt = prev.runCnt
			p.PeriodNs = uint64(now.Sub(prev.takenAt).Nanoseconds())
		}
		m.history.Add(p.ID, prevCounters{runTimeNs: p.RunTimeNs, runCnt: p.RunCnt, takenAt: now})
		rows = append(rows, Row{Program: p, Holders: holders[p.ID]})
	}

	sortRows(rows, m.opts.Sort)

	return &Sample{
		Rows:      rows,
		TakenAt:   now,
		Policy:    m.source.Policy(),
		Dropped:   m.sink.Dropped(),
		Discarded: discarded,
	}, nil
}

// Run samples immediately and then once per interval until ctx is cancelled,
// passing each sample to fn.
func (m *Monitor) Run(ctx context.Context, fn func(*Sample)) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		s, err := m.Sample(time.Now())
		if err != nil {
			return err
		}
		fn(s)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
