package timeline

// IsPrependTransition reports whether the new identity sequence is the old
// sequence with content inserted strictly before it: the old sequence must
// survive intact, in order, as the exact suffix of the new one. Appends
// (old is a prefix of new) and transitions that delete or reorder old rows
// are not prepends and need no scroll correction here.
func IsPrependTransition(oldIDs, newIDs []RowID) bool {
	if len(oldIDs) == 0 || len(newIDs) <= len(oldIDs) {
		return false
	}
	offset := len(newIDs) - len(oldIDs)
	for i := range oldIDs {
		if newIDs[offset+i] != oldIDs[i] {
			return false
		}
	}
	return true
}

// CaptureDelta returns the signed offset between the top of the viewport
// and the top of the chosen anchor row, captured immediately before a
// prepend is applied.
func CaptureDelta(viewportTopY, rowTopY int) int {
	return viewportTopY - rowTopY
}

// RestoredViewportTop computes where the viewport top must land so the
// anchor row keeps its apparent position after a prepend, clamped so the
// restored position never scrolls past either end of the longer content.
func RestoredViewportTop(rowTopY, deltaFromRowTop, contentHeight, viewportHeight int) int {
	top := rowTopY + deltaFromRowTop
	limit := contentHeight - viewportHeight
	if limit < 0 {
		limit = 0
	}
	if top > limit {
		top = limit
	}
	if top < 0 {
		top = 0
	}
	return top
}
