package kanban

import "sort"

// Position arithmetic for list and card ordering.
//
// Positions are real numbers, not dense indexes, so a single reorder only
// rewrites the moved item: moving to the front halves the current first
// position, moving to the back appends past the current last, and moving
// between two siblings takes their midpoint. Deletion renumbers the
// survivors to a dense 1..n sequence to bound numeric shrinkage after many
// front moves.

// SortListsByPosition sorts lists in place by ascending position.
func SortListsByPosition(lists []List) {
	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].Position < lists[j].Position
	})
}

// SortCardsByPosition sorts cards in place by ascending position.
func SortCardsByPosition(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Position < cards[j].Position
	})
}

// NextPosition returns the position for a new item appended after the given
// sibling positions: one past the maximum, or 1 for an empty scope.
func NextPosition(positions []float64) float64 {
	if len(positions) == 0 {
		return 1
	}
	max := positions[0]
	for _, p := range positions[1:] {
		if p > max {
			max = p
		}
	}
	return max + 1
}

// PositionForIndex computes the position an item must take to land at
// targetIndex within siblings, where siblings holds the current positions in
// ascending order *excluding* the moved item. An empty sibling set yields 1.
func PositionForIndex(siblings []float64, targetIndex int) float64 {
	if len(siblings) == 0 {
		return 1
	}
	if targetIndex <= 0 {
		return siblings[0] / 2
	}
	if targetIndex >= len(siblings) {
		return siblings[len(siblings)-1] + 1
	}
	return (siblings[targetIndex-1] + siblings[targetIndex]) / 2
}

// densePositions assigns 1..n to the given count of survivors. Kept as a
// helper so store renumbering and tests agree on the rule.
func densePositions(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}
