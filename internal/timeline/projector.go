package timeline

import (
	"github.com/loupe-view/loupe/internal/session"
)

// RowDiff is the minimal set of list mutations between two projections,
// computed by identity-based diffing. Indexes in Insertions and Reloads
// refer to the new row list; indexes in Deletions refer to the old one.
type RowDiff struct {
	Insertions []int
	Deletions  []int
	Reloads    []int
}

// Empty reports whether the diff carries no mutations.
func (d RowDiff) Empty() bool {
	return len(d.Insertions) == 0 && len(d.Deletions) == 0 && len(d.Reloads) == 0
}

// Projection is the deterministic output of flattening source and UI state.
type Projection struct {
	// Rows is the ordered, identity-stable row list.
	Rows []TimelineRow

	// Diff holds minimal list mutations relative to the previous
	// projection. Empty on the first projection.
	Diff RowDiff

	// DirtyRowIDs are rows whose RenderHash changed at the same identity,
	// reported independently of Diff so a consumer can redraw surviving
	// rows it did not move.
	DirtyRowIDs map[RowID]struct{}
}

// RowIDs returns the identity sequence of the projection, for prepend
// detection and anchor selection.
func (p *Projection) RowIDs() []RowID {
	ids := make([]RowID, len(p.Rows))
	for i := range p.Rows {
		ids[i] = p.Rows[i].ID
	}
	return ids
}

// Project flattens the state buckets into rows and diffs them against the
// previous projection. Identical (source, ui) inputs always yield identical
// rows and hashes regardless of previous; previous only shapes Diff and
// DirtyRowIDs. Cost is bounded by the loaded window, not total history.
func (e *Engine) Project(src *SourceState, ui *UIState, previous *Projection) Projection {
	rows := e.buildRows(src, ui)
	proj := Projection{
		Rows:        rows,
		DirtyRowIDs: make(map[RowID]struct{}),
	}
	if previous != nil {
		proj.Diff, proj.DirtyRowIDs = diffRows(previous.Rows, rows)
	}
	return proj
}

func (e *Engine) buildRows(src *SourceState, ui *UIState) []TimelineRow {
	var rows []TimelineRow
	if src.Metadata.ViewMode == session.ViewModeVerbose {
		rows = make([]TimelineRow, 0, len(src.Messages)+1)
		for i := range src.Messages {
			rows = append(rows, e.messageRow(&src.Messages[i], ui))
		}
	} else {
		rows = make([]TimelineRow, 0, len(src.Messages)+len(src.Turns)+1)
		for i := range src.Turns {
			rows = e.appendTurnRows(rows, &src.Turns[i], ui)
		}
	}
	return append(rows, e.spacerRow(ui))
}

// appendTurnRows emits one turn header followed by the turn's messages,
// collapsing tool runs longer than the threshold into rollup groups.
// Grouping is re-derived from scratch on every projection; only which
// rollups are expanded is stateful.
func (e *Engine) appendTurnRows(rows []TimelineRow, turn *session.TurnSummary, ui *UIState) []TimelineRow {
	rows = append(rows, e.turnHeaderRow(turn, ui))

	msgs := turn.Messages
	groupIndex := 0
	for i := 0; i < len(msgs); {
		if !msgs[i].IsTool() {
			rows = append(rows, e.messageRow(&msgs[i], ui))
			i++
			continue
		}

		j := i
		for j < len(msgs) && msgs[j].IsTool() {
			j++
		}
		run := msgs[i:j]
		if len(run) <= e.opts.RollupThreshold {
			for k := range run {
				rows = append(rows, e.messageRow(&run[k], ui))
			}
			i = j
			continue
		}

		key := RollupKey(turn.ID, groupIndex)
		groupIndex++
		expanded := ui.RollupExpanded(key)
		info := &RollupInfo{
			Key:         key,
			TurnID:      turn.ID,
			GroupIndex:  groupIndex - 1,
			HiddenCount: len(run) - 2,
			ToolNames:   distinctToolNames(run),
			Expanded:    expanded,
		}
		rows = append(rows, e.rollupRow(info, ui))
		rows = append(rows, e.messageRow(&run[0], ui))
		if expanded {
			for k := 1; k < len(run)-1; k++ {
				rows = append(rows, e.messageRow(&run[k], ui))
			}
		}
		rows = append(rows, e.messageRow(&run[len(run)-1], ui))
		i = j
	}
	return rows
}

func (e *Engine) messageRow(msg *session.Message, ui *UIState) TimelineRow {
	if msg.IsTool() {
		expanded := ui.ToolCardExpanded(msg.ID)
		render := messageRenderHash(*msg, expanded)
		return TimelineRow{
			ID:           ToolRowID(msg.ID),
			Kind:         RowKindTool,
			RenderHash:   render,
			LayoutHash:   combineHash(render, int64(ui.WidthBucket)),
			Message:      msg,
			ToolExpanded: expanded,
		}
	}
	render := messageRenderHash(*msg, false)
	return TimelineRow{
		ID:         MessageRowID(msg.ID),
		Kind:       RowKindMessage,
		RenderHash: render,
		LayoutHash: combineHash(render, int64(ui.WidthBucket)),
		Message:    msg,
	}
}

func (e *Engine) turnHeaderRow(turn *session.TurnSummary, ui *UIState) TimelineRow {
	render := turnRenderHash(*turn)
	return TimelineRow{
		ID:         TurnHeaderRowID(turn.ID),
		Kind:       RowKindTurnHeader,
		RenderHash: render,
		LayoutHash: combineHash(render, int64(ui.WidthBucket)),
		Turn:       turn,
	}
}

func (e *Engine) rollupRow(info *RollupInfo, ui *UIState) TimelineRow {
	render := rollupRenderHash(*info)
	return TimelineRow{
		ID:         RollupRowID(info.Key),
		Kind:       RowKindRollupSummary,
		RenderHash: render,
		LayoutHash: combineHash(render, int64(ui.WidthBucket)),
		Rollup:     info,
	}
}

func (e *Engine) spacerRow(ui *UIState) TimelineRow {
	render := spacerRenderHash()
	return TimelineRow{
		ID:         BottomSpacerRowID,
		Kind:       RowKindBottomSpacer,
		RenderHash: render,
		LayoutHash: combineHash(render, int64(ui.WidthBucket)),
	}
}

// diffRows walks both row lists and matches rows by identity. New IDs are
// insertions at their new index, vanished IDs are deletions at their old
// index, and surviving IDs whose RenderHash changed are reloads at their
// new index plus members of the dirty set.
func diffRows(old, current []TimelineRow) (RowDiff, map[RowID]struct{}) {
	oldByID := make(map[RowID]uint64, len(old))
	for i := range old {
		oldByID[old[i].ID] = old[i].RenderHash
	}
	currentIDs := make(map[RowID]struct{}, len(current))

	var diff RowDiff
	dirty := make(map[RowID]struct{})
	for i := range current {
		id := current[i].ID
		currentIDs[id] = struct{}{}
		prevHash, ok := oldByID[id]
		if !ok {
			diff.Insertions = append(diff.Insertions, i)
			continue
		}
		if prevHash != current[i].RenderHash {
			diff.Reloads = append(diff.Reloads, i)
			dirty[id] = struct{}{}
		}
	}
	for i := range old {
		if _, ok := currentIDs[old[i].ID]; !ok {
			diff.Deletions = append(diff.Deletions, i)
		}
	}
	return diff, dirty
}

func distinctToolNames(run []session.Message) []string {
	seen := make(map[string]struct{}, len(run))
	names := make([]string, 0, len(run))
	for _, msg := range run {
		name := msg.ToolName
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
