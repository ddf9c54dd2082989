// Package document keeps the in-memory mirror of one open text file
// consistent with the client's stream of edit events.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

var (
	reStartWord = regexp.MustCompile(`[A-Za-z_0-9]*$`)
	reEndWord   = regexp.MustCompile(`^[A-Za-z_0-9]*`)
)

// Document is one open text document. Tracked documents own their
// content in memory; transient documents (content never set) read the
// file at their URI freshly on every access.
type Document struct {
	URI      uri.URI
	Path     string
	Filename string

	// Version is the last value supplied by the caller, never
	// recomputed locally.
	Version int32

	syncKind protocol.TextDocumentSyncKind
	content  *string
	logger   logrus.FieldLogger
}

// New creates a tracked document owning text.
func New(u uri.URI, text string, version int32, syncKind protocol.TextDocumentSyncKind, logger logrus.FieldLogger) *Document {
	d := newDocument(u, syncKind, logger)
	d.content = &text
	d.Version = version
	return d
}

// NewTransient creates an untracked document whose content comes from
// disk on demand. It has no owner beyond the call that produced it.
func NewTransient(u uri.URI, logger logrus.FieldLogger) *Document {
	return newDocument(u, protocol.TextDocumentSyncKindNone, logger)
}

func newDocument(u uri.URI, syncKind protocol.TextDocumentSyncKind, logger logrus.FieldLogger) *Document {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	path := filesystemPath(u)
	return &Document{
		URI:      u,
		Path:     path,
		Filename: filepath.Base(path),
		syncKind: syncKind,
		logger:   logger,
	}
}

// filesystemPath derives a local path from a file URI; other schemes
// yield the empty string.
func filesystemPath(u uri.URI) string {
	parsed, err := uri.Parse(string(u))
	if err != nil || !strings.HasPrefix(string(parsed), "file://") {
		return ""
	}
	return parsed.Filename()
}

// SyncKind returns the synchronization policy fixed at creation.
func (d *Document) SyncKind() protocol.TextDocumentSyncKind { return d.syncKind }

// Text returns the current content. Transient documents read the file
// on every call so external edits stay visible.
func (d *Document) Text() (string, error) {
	if d.content != nil {
		return *d.content, nil
	}
	if d.Path == "" {
		return "", fmt.Errorf("document %s: no local file to read", d.URI)
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", d.URI, err)
	}
	return string(data), nil
}

// Lines splits the current content into lines, keeping terminators.
func (d *Document) Lines() ([]string, error) {
	text, err := d.Text()
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (d *Document) setText(text string) {
	d.content = &text
}

// Apply performs one edit event. Dispatch is on the event tag only; a
// ranged event arriving while the document is not configured for
// incremental sync is degraded to a full replacement with a warning.
// Documents with synchronization disabled ignore every event.
func (d *Document) Apply(ev ChangeEvent) error {
	if ev.Kind == ChangeNone {
		return nil
	}
	if d.syncKind == protocol.TextDocumentSyncKindNone {
		d.logger.WithField("uri", d.URI).Warn("document does not accept change events, ignoring")
		return nil
	}
	switch ev.Kind {
	case ChangeFull:
		d.setText(ev.Text)
		return nil
	case ChangeIncremental:
		if d.syncKind == protocol.TextDocumentSyncKindIncremental {
			return d.applyIncremental(ev)
		}
		d.logger.WithFields(logrus.Fields{
			"uri":      d.URI,
			"syncKind": d.syncKind,
		}).Warn("ranged change event does not match document sync kind, replacing whole content")
		d.setText(ev.Text)
		return nil
	default:
		return fmt.Errorf("document %s: unknown change kind %d", d.URI, ev.Kind)
	}
}

func (d *Document) applyIncremental(ev ChangeEvent) error {
	text, err := d.Text()
	if err != nil {
		return err
	}
	lines := splitLines(text)

	startRow, startCol := PositionToRowCol(lines, ev.Range.Start)
	endRow, endCol := PositionToRowCol(lines, ev.Range.End)

	// An edit anchored exactly at end-of-file appends.
	if startRow == len(lines) {
		d.setText(text + ev.Text)
		return nil
	}

	var out strings.Builder
	for i, line := range lines {
		if i < startRow || i > endRow {
			out.WriteString(line)
			continue
		}
		if i == startRow {
			out.WriteString(slicePrefix(line, startCol))
			out.WriteString(ev.Text)
		}
		if i == endRow {
			out.WriteString(sliceSuffix(line, endCol))
		}
		// Lines strictly between start and end are fully replaced.
	}
	d.setText(out.String())
	return nil
}

// slicePrefix returns the first n code points of s.
func slicePrefix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// sliceSuffix returns s without its first n code points.
func sliceSuffix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

// PositionToRowCol converts pos against the current content.
func (d *Document) PositionToRowCol(pos protocol.Position) (int, int, error) {
	lines, err := d.Lines()
	if err != nil {
		return 0, 0, err
	}
	row, col := PositionToRowCol(lines, pos)
	return row, col, nil
}

// RowColToPosition converts a row/column pair against the current
// content.
func (d *Document) RowColToPosition(row, col int) (protocol.Position, error) {
	lines, err := d.Lines()
	if err != nil {
		return protocol.Position{}, err
	}
	return RowColToPosition(lines, row, col), nil
}

// OffsetAtPosition returns the code-point offset of pos from the start
// of the document.
func (d *Document) OffsetAtPosition(pos protocol.Position) (int, error) {
	lines, err := d.Lines()
	if err != nil {
		return 0, err
	}
	row, col := PositionToRowCol(lines, pos)
	offset := col
	for _, line := range lines[:row] {
		offset += utf8.RuneCountInString(line)
	}
	return offset, nil
}

// WordAtPosition returns the [A-Za-z0-9_] run under pos, or the empty
// string when pos touches no such run.
func (d *Document) WordAtPosition(pos protocol.Position) (string, error) {
	lines, err := d.Lines()
	if err != nil {
		return "", err
	}
	if int(pos.Line) >= len(lines) {
		return "", nil
	}
	row, col := PositionToRowCol(lines, pos)
	line := lines[row]

	start := slicePrefix(line, col)
	end := sliceSuffix(line, col)
	return reStartWord.FindString(start) + reEndWord.FindString(end), nil
}
