package syncer

import (
	"time"

	"github.com/joseph-ayodele/expense-sync/constants"
)

const lastSyncLayout = "01/02/06, 3:04 PM"

// Status is a snapshot of the engine as observed by a UI.
type Status struct {
	Online         bool
	Syncing        bool
	LastSyncAt     *time.Time
	LastError      error
	PendingProfile bool
}

// Text is the one-word label for the status, most urgent condition first.
func (s Status) Text() string {
	switch {
	case s.Syncing:
		return constants.StatusTextSyncing
	case !s.Online:
		return constants.StatusTextOffline
	case s.LastError != nil:
		return constants.StatusTextError
	case s.PendingProfile:
		return constants.StatusTextPending
	default:
		return constants.StatusTextOnline
	}
}

// ColorName pairs with Text for badge rendering.
func (s Status) ColorName() string {
	switch {
	case s.Syncing:
		return "blue"
	case !s.Online:
		return "red"
	case s.LastError != nil:
		return "orange"
	case s.PendingProfile:
		return "yellow"
	default:
		return "green"
	}
}

// LastSyncText renders LastSyncAt in loc, or "Never synced".
func (s Status) LastSyncText(loc *time.Location) string {
	if s.LastSyncAt == nil {
		return constants.StatusTextNever
	}
	if loc == nil {
		loc = time.Local
	}
	return "Last sync: " + s.LastSyncAt.In(loc).Format(lastSyncLayout)
}

// Status returns the current snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Status {
	st := Status{
		Online:         e.monitor.IsOnline(),
		Syncing:        constants.SyncState(e.state.Load()) == constants.SyncSyncing,
		LastError:      e.lastError,
		PendingProfile: e.pendingProfile != nil,
	}
	if e.lastSyncAt != nil {
		t := *e.lastSyncAt
		st.LastSyncAt = &t
	}
	return st
}

// Subscribe returns a channel that receives a snapshot after every status
// change. Only the latest snapshot is buffered; a slow reader sees the most
// recent state, not every intermediate one. The returned func unsubscribes.
func (e *Engine) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) publish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
