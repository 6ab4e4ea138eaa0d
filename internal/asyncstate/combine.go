package asyncstate

// Snapshot is a point-in-time view of one container, independent of its
// value type so containers of different types can be merged.
type Snapshot struct {
	Status Status
	Err    error
}

// View is anything exposing a Snapshot. All State instantiations implement
// it regardless of their type parameter.
type View interface {
	Snapshot() Snapshot
}

// Combined is the merged view over several resources, e.g. the dashboard
// overview waiting on every domain at once.
type Combined struct {
	// Loading is true while any underlying resource loads.
	Loading bool

	// Err is the first non-nil error in argument order, nil otherwise.
	Err error

	// Success is true only when every underlying resource succeeded.
	Success bool
}

// Combine merges the current snapshots of views. With no arguments the
// result is vacuously successful.
func Combine(views ...View) Combined {
	out := Combined{Success: true}
	for _, v := range views {
		snap := v.Snapshot()
		if snap.Status == StatusLoading {
			out.Loading = true
		}
		if snap.Status != StatusSuccess {
			out.Success = false
		}
		if out.Err == nil && snap.Err != nil {
			out.Err = snap.Err
		}
	}
	return out
}
