package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

const testURI = uri.URI("file:///tmp/doc.txt")

func incremental(t *testing.T, text string) *Document {
	t.Helper()
	return New(testURI, text, 1, protocol.TextDocumentSyncKindIncremental, nil)
}

func text(t *testing.T, d *Document) string {
	t.Helper()
	s, err := d.Text()
	require.NoError(t, err)
	return s
}

func rng(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func TestApplyNone(t *testing.T) {
	d := New(testURI, "stay", 1, protocol.TextDocumentSyncKindNone, nil)
	require.NoError(t, d.Apply(ChangeEvent{Kind: ChangeNone, Text: "ignored"}))
	assert.Equal(t, "stay", text(t, d))
}

func TestApplyIgnoredWhenSyncDisabled(t *testing.T) {
	d := New(testURI, "keep me", 1, protocol.TextDocumentSyncKindNone, nil)
	require.NoError(t, d.Apply(FullChange("clobbered")))
	assert.Equal(t, "keep me", text(t, d))
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 0, 0, 4), "x")))
	assert.Equal(t, "keep me", text(t, d))
}

func TestApplyFull(t *testing.T) {
	d := New(testURI, "old", 1, protocol.TextDocumentSyncKindFull, nil)
	require.NoError(t, d.Apply(FullChange("brand new")))
	assert.Equal(t, "brand new", text(t, d))
}

func TestApplyIncrementalSingleLine(t *testing.T) {
	d := incremental(t, "hello\nworld")
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 5, 0, 5), " there")))
	assert.Equal(t, "hello there\nworld", text(t, d))
}

func TestApplyIncrementalReplaceWithinLine(t *testing.T) {
	d := incremental(t, "the quick brown fox")
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 4, 0, 9), "slow")))
	assert.Equal(t, "the slow brown fox", text(t, d))
}

func TestApplyIncrementalAcrossLines(t *testing.T) {
	d := incremental(t, "one\ntwo\nthree\nfour\n")
	// Replace from mid "one" to mid "three"; "two" is dropped whole.
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 2, 2, 3), "-")))
	assert.Equal(t, "on-ee\nfour\n", text(t, d))
}

func TestApplyIncrementalAtEndOfFile(t *testing.T) {
	d := incremental(t, "a\nb\n")
	// Both lines end with a terminator, so line 2 is past the last
	// line and the edit appends.
	require.NoError(t, d.Apply(IncrementalChange(rng(2, 0, 2, 0), "c")))
	assert.Equal(t, "a\nb\nc", text(t, d))
}

func TestApplyIncrementalDeletion(t *testing.T) {
	d := incremental(t, "hello there\nworld")
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 5, 0, 11), "")))
	assert.Equal(t, "hello\nworld", text(t, d))
}

func TestApplyMismatchedRangedEventDegradesToFull(t *testing.T) {
	d := New(testURI, "original", 1, protocol.TextDocumentSyncKindFull, nil)
	require.NoError(t, d.Apply(IncrementalChange(rng(0, 0, 0, 1), "patch")))
	// Safe default: the whole content is replaced, never a crash.
	assert.Equal(t, "patch", text(t, d))
}

func TestApplyFullUnderIncrementalConfig(t *testing.T) {
	// Clients may send whole-document replacements even when the
	// server advertises incremental sync.
	d := incremental(t, "old")
	require.NoError(t, d.Apply(FullChange("new")))
	assert.Equal(t, "new", text(t, d))
}

func TestDecodeChange(t *testing.T) {
	full := DecodeChange(ContentChange{Text: "everything"})
	assert.Equal(t, ChangeFull, full.Kind)

	r := rng(1, 2, 3, 4)
	inc := DecodeChange(ContentChange{Range: &r, Text: "part"})
	assert.Equal(t, ChangeIncremental, inc.Kind)
	assert.Equal(t, r, inc.Range)
}

func TestPositionRoundTrip(t *testing.T) {
	lines := splitLines("plain ascii\nsecond line\n")
	for _, pos := range []protocol.Position{
		{Line: 0, Character: 0},
		{Line: 0, Character: 5},
		{Line: 1, Character: 11},
	} {
		row, col := PositionToRowCol(lines, pos)
		assert.Equal(t, pos, RowColToPosition(lines, row, col))
	}
}

func TestPositionMathBeyondBMP(t *testing.T) {
	// The emoji occupies two UTF-16 units but one code point. The
	// closing quote of x="😋" sits at UTF-16 offset 5 and code-point
	// offset 4.
	lines := splitLines("x=\"\U0001F60B\"\n")

	row, col := PositionToRowCol(lines, protocol.Position{Line: 0, Character: 5})
	assert.Equal(t, 0, row)
	assert.Equal(t, 4, col)

	pos := RowColToPosition(lines, 0, 4)
	assert.Equal(t, protocol.Position{Line: 0, Character: 5}, pos)
}

func TestPositionPastLastLineClamps(t *testing.T) {
	lines := splitLines("only\n")
	row, col := PositionToRowCol(lines, protocol.Position{Line: 9, Character: 3})
	assert.Equal(t, 1, row)
	assert.Equal(t, 0, col)
}

func TestOffsetAtPosition(t *testing.T) {
	d := incremental(t, "hello\nworld\n")
	off, err := d.OffsetAtPosition(protocol.Position{Line: 1, Character: 2})
	require.NoError(t, err)
	// "hello\n" is six code points, plus two on the second line.
	assert.Equal(t, 8, off)
}

func TestWordAtPosition(t *testing.T) {
	d := incremental(t, "foo.bar_baz\n")

	tests := []struct {
		name string
		char uint32
		want string
	}{
		{name: "inside second word", char: 6, want: "bar_baz"},
		{name: "on the dot", char: 3, want: ""},
		{name: "start of line", char: 0, want: "foo"},
		{name: "end of word", char: 11, want: "bar_baz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.WordAtPosition(protocol.Position{Line: 0, Character: tt.char})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWordAtPositionPastDocument(t *testing.T) {
	d := incremental(t, "short\n")
	got, err := d.WordAtPosition(protocol.Position{Line: 5, Character: 0})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransientReadsDiskFreshly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ondisk.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	d := NewTransient(uri.File(path), nil)
	assert.Equal(t, "first", text(t, d))

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o644))
	assert.Equal(t, "second", text(t, d), "disk content must never be cached")
}

func TestTransientMissingFile(t *testing.T) {
	d := NewTransient(uri.File(filepath.Join(t.TempDir(), "absent")), nil)
	_, err := d.Text()
	assert.Error(t, err)
}
