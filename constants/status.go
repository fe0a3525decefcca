package constants

// SyncState is the coarse state of the sync engine.
type SyncState int32

const (
	SyncIdle    SyncState = iota // no pass in flight
	SyncSyncing                  // exactly one pass in flight
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "IDLE"
	case SyncSyncing:
		return "SYNCING"
	default:
		return "UNKNOWN"
	}
}

// NetworkStatus is the reachability reported by the network monitor.
type NetworkStatus string

// Stable values (also used as log attribute values).
const (
	NetworkUnknown NetworkStatus = "UNKNOWN" // before the first probe settles
	NetworkOnline  NetworkStatus = "ONLINE"
	NetworkOffline NetworkStatus = "OFFLINE"
)

// User facing sync status labels.
const (
	StatusTextSyncing = "Syncing..."
	StatusTextOffline = "Offline"
	StatusTextError   = "Sync Error"
	StatusTextPending = "Pending Sync"
	StatusTextOnline  = "Online"
	StatusTextNever   = "Never synced"
)
