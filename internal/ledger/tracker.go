package ledger

// PositionTracker is the in-memory position store. Positions are lazily
// created zeroed on first touch and never deleted.
// Not thread-safe; only accessed from the single-threaded dispatch loop.
type PositionTracker struct {
	positions map[PositionKey]*MarketPosition
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{
		positions: make(map[PositionKey]*MarketPosition),
	}
}

// Get returns the existing position or nil.
func (pt *PositionTracker) Get(key PositionKey) *MarketPosition {
	return pt.positions[key]
}

// GetOrCreate returns the existing position or lazily creates a zeroed one.
func (pt *PositionTracker) GetOrCreate(key PositionKey) *MarketPosition {
	pos := pt.positions[key]
	if pos == nil {
		pos = NewMarketPosition(key)
		pt.positions[key] = pos
	}
	return pos
}

// Set installs a position directly (used for warm restore).
func (pt *PositionTracker) Set(pos *MarketPosition) {
	pt.positions[pos.Key()] = pos
}

// All returns every tracked position.
func (pt *PositionTracker) All() []*MarketPosition {
	result := make([]*MarketPosition, 0, len(pt.positions))
	for _, pos := range pt.positions {
		result = append(result, pos)
	}
	return result
}

// Len returns the number of tracked positions.
func (pt *PositionTracker) Len() int {
	return len(pt.positions)
}
