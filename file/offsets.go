// Package file implements File, spec §4.5: one source buffer plus the
// CST/AST/SymbolTable built from it, and the feature-op surface
// (completion, hover, goto-definition, rename, semantic tokens,
// diagnostics) every other package reaches through. Grounded on the
// teacher's server/files.go (File/Files) and server/incremental.go
// (the encoding-aware Position<->offset math), generalized from a
// single Faust-tied struct into one driven by an injected cst.Parser
// and langdef.LanguageDefinition.
package file

import (
	"unicode/utf8"

	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/transport"
)

// GetLineIndices returns, for each line, the byte offset of its first
// character (line 0 always starts at offset 0).
func GetLineIndices(content []byte) []uint32 {
	indices := []uint32{0}
	for i, b := range content {
		if b == '\n' {
			indices = append(indices, uint32(i)+1)
		}
	}
	return indices
}

// PositionToOffset converts a Position to a byte offset into content,
// honoring encoding's code-unit width for the character component
// (ported from the teacher's PositionToOffset, typed over
// transport.PositionEncodingKind instead of a bare string).
func PositionToOffset(pos transport.Position, content []byte, encoding transport.PositionEncodingKind) uint32 {
	if len(content) == 0 {
		return 0
	}
	indices := GetLineIndices(content)
	if int(pos.Line) >= len(indices) {
		return uint32(len(content))
	}
	offset := indices[pos.Line]
	for i := uint32(0); i < pos.Character; i++ {
		if int(offset) >= len(content) {
			break
		}
		r, w := utf8.DecodeRune(content[offset:])
		if w == 0 {
			break
		}
		offset += uint32(w)
		if encoding == transport.UTF16 && r >= 0x10000 {
			i++
		}
	}
	return offset
}

// OffsetToPosition is PositionToOffset's inverse.
func OffsetToPosition(offset uint32, content []byte, encoding transport.PositionEncodingKind) transport.Position {
	if len(content) == 0 || offset == 0 {
		return transport.Position{}
	}
	var line, char uint32
	for i := uint32(0); i < offset && int(i) < len(content); {
		r, w := utf8.DecodeRune(content[i:])
		if w == 0 {
			break
		}
		if r == '\n' {
			line++
			char = 0
		} else {
			char++
			if r >= 0x10000 && encoding == transport.UTF16 {
				char++
			}
		}
		i += uint32(w)
	}
	return transport.Position{Line: line, Character: char}
}

// pointAt computes the tree-sitter Point (row, byte column) for a byte
// offset into content.
func pointAt(content []byte, offset uint32) cst.Point {
	var row, col uint32
	for i := uint32(0); i < offset && int(i) < len(content); i++ {
		if content[i] == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return cst.Point{Row: row, Column: col}
}

// applyIncrementalChange splices newText into content over [start,
// end) byte offsets.
func applyIncrementalChange(content []byte, start, end uint32, newText string) []byte {
	out := make([]byte, 0, len(content)-int(end-start)+len(newText))
	out = append(out, content[:start]...)
	out = append(out, newText...)
	out = append(out, content[end:]...)
	return out
}
