package agent

import (
	"context"
	"strings"

	"rewritehub/model"
	"rewritehub/protocol"
)

// TriggerState names the floating trigger's lifecycle state.
type TriggerState string

const (
	TriggerHidden  TriggerState = "hidden"
	TriggerVisible TriggerState = "visible"
	TriggerLoading TriggerState = "loading"
)

// OnSelectionChange is the embedder's selection-change hook. The reaction
// depends on the auto-detection mode: always shows the floating trigger,
// right-click-only tracks the text silently for the context-menu path, and
// disabled does neither.
func (a *Agent) OnSelectionChange() {
	text, _, ok := a.doc.Selection()
	trimmed := strings.TrimSpace(text)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !ok || trimmed == "" {
		a.currentSelection = ""
		a.hideTriggerLocked()
		return
	}

	a.currentSelection = trimmed

	switch a.detection {
	case model.DetectDisabled:
		a.debugf("Auto-detection disabled, no visual feedback for selection")
	case model.DetectRightClickOnly:
		a.debugf("Right-click only mode, no floating trigger shown")
	default:
		a.showTriggerLocked()
		a.debugf("Text selected: length=%d", len(trimmed))
	}
}

// TriggerRewrite is the floating-trigger action. In preview mode it opens
// the panel instead of rewriting immediately.
func (a *Agent) TriggerRewrite(ctx context.Context) {
	a.mu.Lock()
	selection := a.currentSelection
	preview := a.previewEnabled
	a.mu.Unlock()

	if selection == "" {
		a.ui.ShowError("No text selected")
		return
	}

	if preview {
		a.openPreview(selection)
		return
	}

	a.mu.Lock()
	a.setTriggerLocked(TriggerLoading)
	a.mu.Unlock()
	a.ui.ShowLoading()

	err := a.conn.Send(ctx, protocol.Message{
		Type:      protocol.TypeTriggerRewrite,
		Selection: selection,
	})
	if err != nil {
		a.debugf("Failed to send rewrite trigger: %v", err)
		a.ui.ShowError("Failed to communicate with the rewrite service")
		a.mu.Lock()
		a.setTriggerLocked(TriggerHidden)
		a.mu.Unlock()
		a.ui.HideLoading()
	}
}

// TriggerInputRewrite is the inline input-field action: the whole field value
// is selected and rewritten, and the eventual replace-selection targets this
// input regardless of where focus moves meanwhile.
func (a *Agent) TriggerInputRewrite(ctx context.Context, input EditableInput) {
	text := strings.TrimSpace(input.Value())
	if text == "" {
		return
	}

	input.SetSelection(0, len(input.Value()))

	a.mu.Lock()
	a.activeInput = input
	a.mu.Unlock()

	err := a.conn.Send(ctx, protocol.Message{
		Type:      protocol.TypeTriggerRewrite,
		Selection: text,
	})
	if err != nil {
		a.debugf("Failed to send inline rewrite trigger: %v", err)
		a.mu.Lock()
		a.activeInput = nil
		a.mu.Unlock()
		a.ui.ShowError("Failed to communicate with the rewrite service")
	}
}

// Trigger state helpers; callers hold a.mu.

func (a *Agent) showTriggerLocked() {
	if a.trigger == TriggerLoading {
		return
	}
	a.setTriggerLocked(TriggerVisible)
}

func (a *Agent) hideTriggerLocked() {
	a.setTriggerLocked(TriggerHidden)
}

func (a *Agent) setTriggerLocked(state TriggerState) {
	if a.trigger == state {
		return
	}
	a.trigger = state
	switch state {
	case TriggerVisible:
		a.ui.SetTriggerLoading(false)
		a.ui.ShowTrigger()
	case TriggerLoading:
		a.ui.SetTriggerLoading(true)
	default:
		a.ui.SetTriggerLoading(false)
		a.ui.HideTrigger()
	}
}
