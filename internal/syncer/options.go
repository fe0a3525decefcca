package syncer

import "time"

// MergePolicy decides what download does with ids present on both sides.
type MergePolicy int

const (
	// MergeLastWriterWins replaces a synced local copy when the server copy
	// has a newer UpdatedAt. Unsynced local rows are never overwritten.
	MergeLastWriterWins MergePolicy = iota
	// MergeNone only inserts ids missing locally.
	MergeNone
)

func (p MergePolicy) String() string {
	switch p {
	case MergeLastWriterWins:
		return "last_writer_wins"
	case MergeNone:
		return "none"
	default:
		return "unknown"
	}
}

type Option func(*Engine)

func WithMergePolicy(p MergePolicy) Option {
	return func(e *Engine) {
		e.merge = p
	}
}

// WithRemoteTimeout bounds every remote call made during a pass.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.remoteTimeout = d
		}
	}
}

// WithPeriodicSync requests a pass every d while the engine runs. Zero disables it.
func WithPeriodicSync(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.syncInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
