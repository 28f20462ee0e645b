package timeline

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/loupe-view/loupe/internal/session"
)

// rowHasher accumulates the fields that feed a row hash. Field values are
// separated by a sentinel byte so adjacent fields cannot alias.
type rowHasher struct {
	sum uint64
}

func newRowHasher() *rowHasher {
	h := fnv.New64a()
	return &rowHasher{sum: h.Sum64()}
}

func (h *rowHasher) str(value string) *rowHasher {
	f := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h.sum)
	_, _ = f.Write(buf[:])
	_, _ = f.Write([]byte(value))
	_, _ = f.Write([]byte{0x1f})
	h.sum = f.Sum64()
	return h
}

func (h *rowHasher) i64(value int64) *rowHasher {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(value))
	return h.str(string(buf[:]))
}

func (h *rowHasher) boolean(value bool) *rowHasher {
	if value {
		return h.str("1")
	}
	return h.str("0")
}

// combineHash folds an extra integer input into an existing hash. Used to
// derive LayoutHash from RenderHash plus the width bucket.
func combineHash(base uint64, extra int64) uint64 {
	f := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], base)
	binary.LittleEndian.PutUint64(buf[8:], uint64(extra))
	_, _ = f.Write(buf[:])
	return f.Sum64()
}

// messageRenderHash covers everything a message or tool row displays.
func messageRenderHash(msg session.Message, toolExpanded bool) uint64 {
	h := newRowHasher()
	h.str(msg.ID).
		str(string(msg.Type)).
		str(msg.Content).
		i64(msg.Timestamp.UnixNano()).
		str(msg.ToolName).
		str(msg.ToolInput).
		str(msg.ToolOutput).
		i64(msg.ToolDurationMs).
		i64(int64(msg.InputTokens)).
		i64(int64(msg.OutputTokens)).
		boolean(toolExpanded)
	return h.sum
}

// turnRenderHash covers everything a turn header row displays.
func turnRenderHash(turn session.TurnSummary) uint64 {
	h := newRowHasher()
	h.str(turn.ID).
		i64(int64(turn.TurnNumber)).
		i64(turn.StartedAt.UnixNano()).
		i64(turn.EndedAt.UnixNano()).
		str(string(turn.Status)).
		str(turn.Diff).
		i64(int64(turn.TokensUsed)).
		i64(int64(turn.TokenDelta))
	for _, name := range turn.ToolsUsed {
		h.str(name)
	}
	for _, file := range turn.ChangedFiles {
		h.str(file)
	}
	return h.sum
}

// rollupRenderHash covers everything a rollup summary row displays.
func rollupRenderHash(info RollupInfo) uint64 {
	h := newRowHasher()
	h.str(info.Key).
		i64(int64(info.HiddenCount)).
		boolean(info.Expanded)
	for _, name := range info.ToolNames {
		h.str(name)
	}
	return h.sum
}

// spacerRenderHash is constant: the spacer has no visual content.
func spacerRenderHash() uint64 {
	return newRowHasher().str("bottom_spacer").sum
}
