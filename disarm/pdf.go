package disarm

import (
	"bytes"
	"fmt"
	"io"
)

// pdfToken maps a dangerous PDF name to the action recorded when it is
// neutralized. Names are replaced in place with an inert name of identical
// length so cross-reference offsets in the file stay valid.
type pdfToken struct {
	name   []byte
	action Action
}

// Longer names first so /EmbeddedFiles is handled before /EmbeddedFile.
var pdfTokens = []pdfToken{
	{name: []byte("/EmbeddedFiles"), action: ActionStrippedEmbeddedFile},
	{name: []byte("/EmbeddedFile"), action: ActionStrippedEmbeddedFile},
	{name: []byte("/JavaScript"), action: ActionStrippedJavaScript},
	{name: []byte("/OpenAction"), action: ActionStrippedOpenAction},
	{name: []byte("/Launch"), action: ActionStrippedLaunch},
	{name: []byte("/AA"), action: ActionStrippedOpenAction},
	{name: []byte("/JS"), action: ActionStrippedJavaScript},
}

// neutralizePDF strips script and automation structure from a PDF by
// renaming the dictionary keys that activate it. Page and content streams
// are untouched. A disarmed PDF is a fixed point: a second pass finds no
// dangerous names and returns the bytes unchanged with zero actions.
func (e *Engine) neutralizePDF(src io.ReaderAt, size int64) (*Result, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(src, 0, size), data); err != nil {
		return &Result{Success: false}, fmt.Errorf("reading pdf: %w", err)
	}

	// Structural sanity before rewriting. A file that does not carry PDF
	// framing cannot be safely rewritten as one.
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return &Result{Success: false}, fmt.Errorf("rewriting pdf: missing %%PDF header")
	}
	if !bytes.Contains(data, []byte("%%EOF")) {
		return &Result{Success: false}, fmt.Errorf("rewriting pdf: missing %%%%EOF trailer")
	}

	var actions []Action
	seen := make(map[Action]bool)

	for _, tok := range pdfTokens {
		replaced := neutralizeName(data, tok.name)
		if replaced > 0 && !seen[tok.action] {
			seen[tok.action] = true
			actions = append(actions, tok.action)
		}
	}

	// Verify no dangerous name survived. Never report success on partial
	// neutralization.
	for _, tok := range pdfTokens {
		if countNames(data, tok.name) != 0 {
			return &Result{Success: false, Actions: actions},
				fmt.Errorf("rewriting pdf: %s still present after neutralization", tok.name)
		}
	}

	return &Result{Actions: actions, Success: true, Artifact: data}, nil
}

// neutralizeName overwrites every delimiter-bounded occurrence of a PDF name
// with an inert name of the same length. Returns how many were replaced.
func neutralizeName(data, name []byte) int {
	replacement := make([]byte, len(name))
	replacement[0] = '/'
	for i := 1; i < len(replacement); i++ {
		replacement[i] = 'X'
	}

	replaced := 0
	offset := 0
	for {
		idx := bytes.Index(data[offset:], name)
		if idx < 0 {
			return replaced
		}
		pos := offset + idx
		end := pos + len(name)
		if end >= len(data) || isPDFDelimiter(data[end]) {
			copy(data[pos:end], replacement)
			replaced++
		}
		offset = pos + len(name)
	}
}

// countNames counts delimiter-bounded occurrences of a PDF name.
func countNames(data, name []byte) int {
	count := 0
	offset := 0
	for {
		idx := bytes.Index(data[offset:], name)
		if idx < 0 {
			return count
		}
		pos := offset + idx
		end := pos + len(name)
		if end >= len(data) || isPDFDelimiter(data[end]) {
			count++
		}
		offset = pos + len(name)
	}
}

// isPDFDelimiter reports whether a byte terminates a PDF name token.
func isPDFDelimiter(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0x00, '/', '[', ']', '(', ')', '<', '>', '{', '}', '%':
		return true
	}
	return false
}
