package piditer

// Source produces one snapshot of holder records per call. The kernel-backed
// implementation lives in internal/bpfloader; ProcSource is the procfs
// fallback for hosts where the BPF iterator cannot be attached.
type Source interface {
	// Policy reports the classification policy fixed at construction.
	Policy() Policy
	// Snapshot runs one full traversal, appending records to sink.
	Snapshot(sink *Sink) error
	// Close releases any resources held across snapshots.
	Close() error
}
