package timeline

import (
	"github.com/loupe-view/loupe/internal/session"
)

const (
	// DefaultRollupThreshold is the run length above which consecutive tool
	// messages collapse into a rollup group.
	DefaultRollupThreshold = 2

	// DefaultWidthStride is the bucketing stride for layout widths.
	DefaultWidthStride = 8
)

// Options tunes the engine. The zero value selects the defaults.
type Options struct {
	// RollupThreshold is the tool-run length above which runs collapse.
	RollupThreshold int

	// WidthStride is the bucketing stride for WidthChanged actions.
	WidthStride int
}

func (o Options) withDefaults() Options {
	if o.RollupThreshold <= 0 {
		o.RollupThreshold = DefaultRollupThreshold
	}
	if o.WidthStride <= 0 {
		o.WidthStride = DefaultWidthStride
	}
	return o
}

// Engine applies actions to the state buckets and projects them into rows.
// It holds configuration only; all state lives in the buckets passed in.
// Construct one per timeline view.
type Engine struct {
	opts Options
}

// NewEngine returns an engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Reduce applies one action to the state buckets. Pure and synchronous:
// no I/O, no blocking, no allocation proportional to history size beyond
// the inserted batch itself.
func (e *Engine) Reduce(src *SourceState, ui *UIState, action Action) {
	switch a := action.(type) {
	case AppendMessages:
		fresh := dedupeIncoming(src, a.Messages)
		if len(fresh) == 0 {
			return
		}
		src.Messages = append(src.Messages, fresh...)
		src.Metadata.MessageCount = len(src.Messages)
	case PrependMessages:
		fresh := dedupeIncoming(src, a.Messages)
		if len(fresh) == 0 {
			return
		}
		src.Messages = append(fresh, src.Messages...)
		src.Metadata.MessageCount = len(src.Messages)
	case UpdateMessage:
		for i := range src.Messages {
			if src.Messages[i].ID == a.Message.ID {
				src.Messages[i] = a.Message
				break
			}
		}
	case ToggleToolCard:
		if a.MessageID == "" {
			return
		}
		toggleMember(ui.ExpandedToolCards, a.MessageID)
	case ToggleRollup:
		if a.Key == "" {
			return
		}
		toggleMember(ui.ExpandedRollups, a.Key)
	case WidthChanged:
		ui.WidthBucket = BucketWidth(a.Width, e.opts.WidthStride)
	case SetTurns:
		src.Turns = a.Turns
	case SetMetadata:
		count := src.Metadata.MessageCount
		src.Metadata = a.Metadata
		src.Metadata.MessageCount = count
	case SetViewMode:
		src.Metadata.ViewMode = a.Mode
	}
}

// BucketWidth discretizes a raw width to its bucket floor. Deterministic and
// monotone nondecreasing, so equal widths always map to equal buckets and
// cache keys stay reproducible.
func BucketWidth(raw, stride int) int {
	if raw <= 0 {
		return 0
	}
	if stride <= 0 {
		stride = DefaultWidthStride
	}
	return raw - raw%stride
}

// dedupeIncoming drops messages whose ID is already loaded or repeated
// within the batch, and registers the survivors in the source index.
func dedupeIncoming(src *SourceState, incoming []session.Message) []session.Message {
	if len(incoming) == 0 {
		return nil
	}
	src.ensureIndex()
	fresh := make([]session.Message, 0, len(incoming))
	for _, msg := range incoming {
		if msg.ID == "" {
			continue
		}
		if _, ok := src.ids[msg.ID]; ok {
			continue
		}
		src.ids[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
	}
	return fresh
}

func toggleMember(set map[string]struct{}, member string) {
	if _, ok := set[member]; ok {
		delete(set, member)
		return
	}
	set[member] = struct{}{}
}
