package core

import (
	"time"
)

// Align restricts both panels to the dates they share, ascending. Nothing is filled in,
// an empty intersection gives two empty panels.
func Align(a, b *ReturnPanel) (*ReturnPanel, *ReturnPanel) {
	if a == nil || b == nil {
		return emptyPanel(nil), emptyPanel(nil)
	}

	inB := make(map[time.Time]int, b.Len())
	for i, d := range b.dates {
		inB[d] = i
	}

	// a's dates are already ascending, so walking them keeps the order
	idxA := make([]int, 0, min(a.Len(), b.Len()))
	idxB := make([]int, 0, cap(idxA))
	for i, d := range a.dates {
		if k, ok := inB[d]; ok {
			idxA = append(idxA, i)
			idxB = append(idxB, k)
		}
	}

	return a.rows(idxA), b.rows(idxB)
}
