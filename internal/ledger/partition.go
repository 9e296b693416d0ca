package ledger

import (
	"fmt"
	"math/big"
)

// IsFullPartition reports whether the bitmask list covers every outcome
// slot 0..outcomeSlotCount-1 exactly once: masks are non-empty, within
// range, pairwise disjoint, and their union is the full mask.
//
// Only full partitions drive position-ledger updates for split/merge.
// Partial partitions are valid protocol operations but do not map
// deterministically onto individual outcome legs.
func IsFullPartition(partition []*big.Int, outcomeSlotCount int) bool {
	if len(partition) == 0 || outcomeSlotCount < 2 {
		return false
	}

	// fullMask = 2^N - 1
	fullMask := new(big.Int).Lsh(big.NewInt(1), uint(outcomeSlotCount))
	fullMask.Sub(fullMask, big.NewInt(1))

	union := new(big.Int)
	for _, mask := range partition {
		if mask == nil || mask.Sign() <= 0 {
			return false
		}
		if mask.Cmp(fullMask) > 0 {
			return false
		}
		// Overlap with previously seen masks
		if new(big.Int).And(union, mask).Sign() != 0 {
			return false
		}
		union.Or(union, mask)
	}

	return union.Cmp(fullMask) == 0
}

// OutcomeIndex decodes a single-bit mask into its zero-based outcome index.
func OutcomeIndex(mask *big.Int) (int, error) {
	if mask == nil || mask.Sign() <= 0 {
		return 0, fmt.Errorf("index set must be a positive bitmask, got %v", mask)
	}
	idx := mask.BitLen() - 1
	single := new(big.Int).Lsh(big.NewInt(1), uint(idx))
	if mask.Cmp(single) != 0 {
		return 0, fmt.Errorf("index set %s is not a single-bit mask", mask.String())
	}
	return idx, nil
}

// OutcomeIndexes decodes a list of index-set masks into the zero-based
// outcome indexes they cover. Multi-bit masks are decoded per bit: a
// redemption may cover several outcomes in one call.
func OutcomeIndexes(indexSets []*big.Int) []int {
	indexes := make([]int, 0, len(indexSets))
	for _, mask := range indexSets {
		if mask == nil || mask.Sign() <= 0 {
			continue
		}
		for bit := 0; bit < mask.BitLen(); bit++ {
			if mask.Bit(bit) == 1 {
				indexes = append(indexes, bit)
			}
		}
	}
	return indexes
}
