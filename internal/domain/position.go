package domain

// PositionState is the lifecycle state of a tracked holding.
type PositionState string

const (
	// PositionNone means no position is tracked for the asset.
	PositionNone PositionState = "NONE"
	// PositionPending means a buy was accepted but not yet confirmed.
	PositionPending PositionState = "PENDING"
	// PositionOpen means the buy confirmed and the asset is held.
	PositionOpen PositionState = "OPEN"
	// PositionClosing means a sell was accepted but not yet confirmed.
	PositionClosing PositionState = "CLOSING"
)

// String returns the string representation of PositionState.
func (s PositionState) String() string {
	return string(s)
}

// Live reports whether the state counts against the one-position-per-asset
// limit.
func (s PositionState) Live() bool {
	return s == PositionPending || s == PositionOpen || s == PositionClosing
}

// Position is the tracked holding state for one asset.
type Position struct {
	AssetID    string
	State      PositionState
	EntryPrice float64 // fill price from the buy confirmation; 0 while pending
	EntryTime  int64   // Unix ms of the buy confirmation; 0 while pending
	Size       float64 // amount in quote currency (SOL)
}
