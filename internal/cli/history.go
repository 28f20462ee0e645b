package cli

import (
	"context"

	"github.com/loupe-view/loupe/internal/store"
	"github.com/loupe-view/loupe/internal/viewtui"
)

// storeHistory adapts the message repository to the viewer's lazy
// history loader.
type storeHistory struct {
	repo      *store.MessageRepository
	sessionID string
}

func (h *storeHistory) LoadBefore(ctx context.Context, cursor int64, limit int) (viewtui.HistoryPage, error) {
	page, err := h.repo.ListBefore(ctx, h.sessionID, cursor, limit)
	if err != nil {
		return viewtui.HistoryPage{}, err
	}
	return viewtui.HistoryPage{
		Messages: page.Messages,
		Cursor:   page.OldestSeq,
		HasMore:  page.HasMore,
	}, nil
}
