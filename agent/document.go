// Package agent implements the page-side half of the rewrite pipeline: it
// tracks the user's selection, drives the trigger and preview affordances,
// and performs the actual text replacement. The agent owns state transitions
// only; rendering and real document access belong to the embedder, reached
// through the Document and UI interfaces.
package agent

import (
	"errors"
	"fmt"
)

// ErrRangeDetached is returned when a stored range no longer maps onto the
// document, usually because an earlier replacement consumed it.
var ErrRangeDetached = errors.New("selection range detached")

// Range is a live region of the document, captured from a selection. A range
// replaced through ReplaceWith detaches and cannot be used again.
type Range interface {
	// Text returns the current text inside the range.
	Text() string

	// ReplaceWith deletes the range contents and inserts text in its place.
	ReplaceWith(text string) error

	// Clone captures an independent copy of the range, surviving later
	// selection changes the way the original does not.
	Clone() Range
}

// EditableInput is a focused text field with caret offsets. Replacements in
// editable inputs splice the value at the caret and fire a synthetic input
// event so framework-bound fields observe the change.
type EditableInput interface {
	Value() string
	SetValue(string)

	// SelectionStart and SelectionEnd are the caret offsets into Value.
	SelectionStart() int
	SelectionEnd() int
	SetSelection(start, end int)

	// DispatchInput fires the synthetic input event.
	DispatchInput()
}

// Document abstracts the page the agent operates on.
type Document interface {
	// Selection returns the current selection text and its range. ok is
	// false when nothing is selected.
	Selection() (text string, r Range, ok bool)

	// ActiveEditable returns the focused editable input, if any.
	ActiveEditable() (EditableInput, bool)

	// RestoreSelection re-selects the given range.
	RestoreSelection(r Range)

	// ClearSelection collapses the selection.
	ClearSelection()
}

// TextBuffer is an in-memory Document over a single text region. It doubles
// as the test double and as a minimal embedder for plain-text hosts: the
// buffer itself acts as an editable input when focused.
type TextBuffer struct {
	content  string
	selStart int
	selEnd   int
	focused  bool

	// InputEvents counts synthetic input dispatches.
	InputEvents int

	generation int
}

// NewTextBuffer creates a buffer with no selection.
func NewTextBuffer(content string) *TextBuffer {
	return &TextBuffer{content: content}
}

// Content returns the full buffer text.
func (b *TextBuffer) Content() string { return b.content }

// Select sets the selection to [start, end).
func (b *TextBuffer) Select(start, end int) error {
	if start < 0 || end > len(b.content) || start > end {
		return fmt.Errorf("selection [%d, %d) out of range for %d bytes", start, end, len(b.content))
	}
	b.selStart, b.selEnd = start, end
	return nil
}

// Focus marks the buffer as the active editable input.
func (b *TextBuffer) Focus() { b.focused = true }

// Blur removes focus.
func (b *TextBuffer) Blur() { b.focused = false }

func (b *TextBuffer) Selection() (string, Range, bool) {
	if b.selStart == b.selEnd {
		return "", nil, false
	}
	r := &bufferRange{buf: b, start: b.selStart, end: b.selEnd, generation: b.generation}
	return b.content[b.selStart:b.selEnd], r, true
}

func (b *TextBuffer) ActiveEditable() (EditableInput, bool) {
	if !b.focused {
		return nil, false
	}
	return b, true
}

func (b *TextBuffer) RestoreSelection(r Range) {
	br, ok := r.(*bufferRange)
	if !ok || br.buf != b || br.generation != b.generation {
		return
	}
	b.selStart, b.selEnd = br.start, br.end
}

func (b *TextBuffer) ClearSelection() {
	b.selStart, b.selEnd = 0, 0
}

// EditableInput implementation.

func (b *TextBuffer) Value() string         { return b.content }
func (b *TextBuffer) SelectionStart() int   { return b.selStart }
func (b *TextBuffer) SelectionEnd() int     { return b.selEnd }
func (b *TextBuffer) DispatchInput()        { b.InputEvents++ }
func (b *TextBuffer) SetSelection(s, e int) { b.selStart, b.selEnd = s, e }

func (b *TextBuffer) SetValue(v string) {
	b.content = v
	b.generation++
	if b.selStart > len(v) {
		b.selStart = len(v)
	}
	if b.selEnd > len(v) {
		b.selEnd = len(v)
	}
}

// splice replaces [start, end) with text and invalidates outstanding ranges.
func (b *TextBuffer) splice(start, end int, text string) {
	b.content = b.content[:start] + text + b.content[end:]
	b.generation++
}

type bufferRange struct {
	buf        *TextBuffer
	start, end int
	generation int
}

func (r *bufferRange) Text() string {
	if r.generation != r.buf.generation {
		return ""
	}
	return r.buf.content[r.start:r.end]
}

func (r *bufferRange) ReplaceWith(text string) error {
	if r.generation != r.buf.generation {
		return ErrRangeDetached
	}
	r.buf.splice(r.start, r.end, text)
	r.generation = -1
	return nil
}

func (r *bufferRange) Clone() Range {
	clone := *r
	return &clone
}
