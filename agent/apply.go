package agent

// Replacement primitives. Both branch on the focus target: an editable input
// gets a value splice at the caret offsets plus a synthetic input event so
// framework-bound fields pick up the change; anything else gets a range
// delete-and-insert.

// applyToLiveSelection replaces whatever is selected right now.
func (a *Agent) applyToLiveSelection(text string) bool {
	if input, ok := a.doc.ActiveEditable(); ok {
		spliceInput(input, text)
		a.debugf("Text replaced in input field")
		a.doc.ClearSelection()
		return true
	}

	_, r, ok := a.doc.Selection()
	if !ok {
		a.debugf("No selection found for replacement")
		return false
	}
	if err := r.ReplaceWith(text); err != nil {
		a.debugf("Failed to replace selection: %v", err)
		return false
	}
	a.doc.ClearSelection()
	a.debugf("Text replaced in content")
	return true
}

// applyToStoredRange replaces the range captured at preview-panel open. The
// caller owns consuming the range; a nil range means it was already used or
// never captured.
func (a *Agent) applyToStoredRange(r Range, text string) bool {
	if r == nil {
		a.debugf("No stored selection range found")
		return false
	}

	if input, ok := a.doc.ActiveEditable(); ok {
		a.doc.RestoreSelection(r)
		spliceInput(input, text)
		a.doc.ClearSelection()
		a.debugf("Text replaced in input field using stored range")
		return true
	}

	a.doc.RestoreSelection(r)
	if err := r.ReplaceWith(text); err != nil {
		a.debugf("Failed to replace with stored range: %v", err)
		return false
	}
	a.doc.ClearSelection()
	a.debugf("Text replaced in content using stored range")
	return true
}

// spliceInput replaces the input's caret span [start, end) with text, leaves
// the replacement selected, and fires the synthetic input event.
func spliceInput(input EditableInput, text string) {
	start, end := input.SelectionStart(), input.SelectionEnd()
	value := input.Value()
	if start > len(value) {
		start = len(value)
	}
	if end > len(value) {
		end = len(value)
	}
	if start > end {
		start, end = end, start
	}

	input.SetValue(value[:start] + text + value[end:])
	input.SetSelection(start, start+len(text))
	input.DispatchInput()
}
