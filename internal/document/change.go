package document

import (
	"go.lsp.dev/protocol"
)

// ChangeKind tags a ChangeEvent. The tag is fixed once, when the wire
// event is decoded; nothing downstream inspects optional fields again.
type ChangeKind int

const (
	// ChangeNone leaves the document untouched.
	ChangeNone ChangeKind = iota
	// ChangeFull replaces the whole document text.
	ChangeFull
	// ChangeIncremental replaces the half-open Range with Text.
	ChangeIncremental
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeFull:
		return "full"
	case ChangeIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// ChangeEvent is one decoded document edit.
type ChangeEvent struct {
	Kind ChangeKind
	// Range is meaningful only when Kind is ChangeIncremental.
	Range protocol.Range
	Text  string
}

// ContentChange mirrors the wire shape of one element of a didChange
// notification's contentChanges array. A nil Range means the client
// sent a whole-document replacement.
type ContentChange struct {
	Range       *protocol.Range `json:"range,omitempty"`
	RangeLength *uint32         `json:"rangeLength,omitempty"`
	Text        string          `json:"text"`
}

// DecodeChange fixes the event tag from the wire shape. This is the
// single place where field presence is inspected.
func DecodeChange(c ContentChange) ChangeEvent {
	if c.Range == nil {
		return ChangeEvent{Kind: ChangeFull, Text: c.Text}
	}
	return ChangeEvent{Kind: ChangeIncremental, Range: *c.Range, Text: c.Text}
}

// FullChange builds a whole-document replacement event.
func FullChange(text string) ChangeEvent {
	return ChangeEvent{Kind: ChangeFull, Text: text}
}

// IncrementalChange builds a ranged replacement event.
func IncrementalChange(r protocol.Range, text string) ChangeEvent {
	return ChangeEvent{Kind: ChangeIncremental, Range: r, Text: text}
}
