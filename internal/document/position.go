package document

import (
	"go.lsp.dev/protocol"
)

// The protocol counts a Position's character offset in UTF-16 code
// units while this package indexes lines by Unicode code points. Code
// points outside the Basic Multilingual Plane occupy two UTF-16 units
// but a single code point, so the two coordinate systems drift apart
// exactly at such characters.
const maxBMP = 0xFFFF

// PositionToRowCol converts a protocol Position into a row and a
// code-point column against the given lines. A position past the last
// line clamps to (len(lines), 0).
func PositionToRowCol(lines []string, pos protocol.Position) (row, col int) {
	row = len(lines)
	if row <= int(pos.Line) {
		return row, 0
	}
	row = int(pos.Line)
	col = int(pos.Character)
	i := 0
	for _, r := range lines[row] {
		if i >= int(pos.Character) {
			break
		}
		if r > maxBMP {
			col--
		}
		i++
	}
	return row, col
}

// RowColToPosition converts a row and code-point column back into a
// protocol Position with a UTF-16 character offset.
func RowColToPosition(lines []string, row, col int) protocol.Position {
	if row >= len(lines) {
		return protocol.Position{Line: uint32(len(lines))}
	}
	character := 0
	i := 0
	for _, r := range lines[row] {
		if i >= col {
			break
		}
		character++
		if r > maxBMP {
			character++
		}
		i++
	}
	return protocol.Position{Line: uint32(row), Character: uint32(character)}
}
