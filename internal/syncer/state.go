package syncer

import "github.com/yanizio/syncee/internal/resource"

// State is where one resource kind ended up in its pass.
//
//	Idle → Fetching → FetchFailed
//	                → Fetched → Empty
//	                          → Parsed → Rotated → Materialized
type State int

const (
	Idle State = iota
	Fetching
	FetchFailed
	Fetched
	Empty
	Parsed
	Rotated
	Materialized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case FetchFailed:
		return "fetch_failed"
	case Fetched:
		return "fetched"
	case Empty:
		return "empty"
	case Parsed:
		return "parsed"
	case Rotated:
		return "rotated"
	case Materialized:
		return "materialized"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == FetchFailed || s == Empty || s == Materialized
}

// Report summarises one kind's pass.
type Report struct {
	Kind    resource.Kind
	State   State
	Bytes   int // raw dump size
	Records int // records parsed
	Written int // files written
	Slot    int // archive slot used, 0 when nothing was moved
	SiteDir string
	Err     error
}
