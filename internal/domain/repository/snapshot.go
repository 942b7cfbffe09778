package repository

// Snapshot codes stored in the time column of exposure rows.
const (
	SnapshotOpen  = 929
	SnapshotClose = 2330
)

// Snapshots lists the codes sources load, in query order.
func Snapshots() []int { return []int{SnapshotOpen, SnapshotClose} }

// IsValidSnapshot returns true if code is a known snapshot.
func IsValidSnapshot(code int) bool {
	switch code {
	case SnapshotOpen, SnapshotClose:
		return true
	default:
		return false
	}
}
