package agent

import (
	"context"
	"fmt"
	"sync"

	"rewritehub/config"
	"rewritehub/model"
	"rewritehub/protocol"
)

// Conn is the agent's channel to the hub. bridge.Client implements it.
type Conn interface {
	Send(ctx context.Context, msg protocol.Message) error
	Messages() <-chan protocol.Message
	TabID() int
}

// UI is the embedder's rendering surface. The agent owns state transitions;
// the embedder owns presentation.
type UI interface {
	ShowTrigger()
	HideTrigger()
	SetTriggerLoading(loading bool)

	ShowLoading()
	UpdateLoading(message string)
	HideLoading()

	ShowSuccess(message string)
	ShowError(message string)
	ShowSetupRequired(provider string)

	// RenderPreview is called with the full panel view after every panel
	// state change.
	RenderPreview(view PreviewView)
}

const defaultStyle = "Professional concise"

// Agent is one page's rewrite agent.
type Agent struct {
	conn Conn
	doc  Document
	ui   UI

	mu               sync.Mutex
	detection        model.AutoDetection
	previewEnabled   bool
	currentSelection string
	trigger          TriggerState
	panel            previewPanel
	activeInput      EditableInput
	announced        bool
}

// New creates an agent over the given connection, document, and UI hooks.
func New(conn Conn, doc Document, ui UI) *Agent {
	return &Agent{
		conn:      conn,
		doc:       doc,
		ui:        ui,
		detection: model.DetectAlways,
		trigger:   TriggerHidden,
		panel:     previewPanel{phase: PanelClosed},
	}
}

// Run announces readiness once and then serves hub messages until the
// connection closes or ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Announce(ctx); err != nil {
		return err
	}
	for {
		select {
		case msg, ok := <-a.conn.Messages():
			if !ok {
				return nil
			}
			a.HandleMessage(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Announce sends content-script-ready. Repeated calls are no-ops; the hub
// counts a tab ready from the first announcement.
func (a *Agent) Announce(ctx context.Context) error {
	a.mu.Lock()
	if a.announced {
		a.mu.Unlock()
		return nil
	}
	a.announced = true
	a.mu.Unlock()

	if err := a.conn.Send(ctx, protocol.Message{Type: protocol.TypeAgentReady}); err != nil {
		return fmt.Errorf("announce readiness: %w", err)
	}
	a.debugf("Agent loaded and ready")
	return nil
}

// HandleMessage dispatches one hub message.
func (a *Agent) HandleMessage(ctx context.Context, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePing:
		err := a.conn.Send(ctx, protocol.Message{Type: protocol.TypePong, ID: msg.ID})
		if err != nil {
			a.debugf("Failed to answer ping: %v", err)
		}

	case protocol.TypeShowLoading:
		a.ui.ShowLoading()

	case protocol.TypeUpdateLoading:
		a.ui.UpdateLoading(msg.Text)

	case protocol.TypeHideLoading:
		a.mu.Lock()
		if a.trigger == TriggerLoading {
			a.setTriggerLocked(TriggerHidden)
		}
		a.mu.Unlock()
		a.ui.HideLoading()

	case protocol.TypeReplaceSelection:
		a.handleReplaceSelection(msg.RewrittenText)

	case protocol.TypeShowError:
		a.handleShowError(msg.Error)

	case protocol.TypeShowSetupRequired:
		a.mu.Lock()
		a.setTriggerLocked(TriggerHidden)
		a.mu.Unlock()
		a.ui.HideLoading()
		a.ui.ShowSetupRequired(msg.Provider)

	case protocol.TypeShowPreviewPanel:
		if msg.SelectedText != "" {
			a.openPreview(msg.SelectedText)
		}

	case protocol.TypePreviewResult:
		a.handlePreviewResult(msg.RewrittenText, msg.Error)

	case protocol.TypeUpdateDetection:
		a.setDetection(model.AutoDetection(msg.Mode))

	case protocol.TypeTogglePreview:
		a.setPreviewEnabled(msg.Enabled)

	default:
		a.debugf("Ignoring message type %s", msg.Type)
	}
}

// handleReplaceSelection applies a rewrite result. A pending inline-input
// rewrite targets its captured input; otherwise the live selection is
// replaced.
func (a *Agent) handleReplaceSelection(rewritten string) {
	a.mu.Lock()
	input := a.activeInput
	a.activeInput = nil
	a.mu.Unlock()

	if input != nil {
		spliceInput(input, rewritten)
		a.ui.ShowSuccess("Text rewritten successfully!")
		return
	}

	applied := a.applyToLiveSelection(rewritten)

	a.mu.Lock()
	a.currentSelection = ""
	a.setTriggerLocked(TriggerHidden)
	a.mu.Unlock()
	a.ui.HideLoading()

	if applied {
		a.ui.ShowSuccess("Text rewritten successfully!")
	} else {
		a.ui.ShowError("Failed to replace text")
	}
}

func (a *Agent) handleShowError(errText string) {
	a.mu.Lock()
	a.activeInput = nil
	a.setTriggerLocked(TriggerHidden)
	a.mu.Unlock()
	a.ui.HideLoading()
	a.ui.ShowError(errText)
}

func (a *Agent) handlePreviewResult(rewritten, errText string) {
	a.mu.Lock()
	if a.panel.phase == PanelClosed {
		a.mu.Unlock()
		a.debugf("Preview result arrived with no open panel")
		return
	}
	a.panel.finishRewrite(rewritten, errText)
	view := a.panel.view()
	a.mu.Unlock()

	a.ui.RenderPreview(view)
	if errText != "" {
		a.ui.ShowError(errText)
	}
}

// openPreview captures the live selection range and opens the panel over it.
func (a *Agent) openPreview(selected string) {
	_, r, _ := a.doc.Selection()

	a.mu.Lock()
	a.panel.open(selected, defaultStyle, r)
	view := a.panel.view()
	a.mu.Unlock()

	a.debugf("Preview panel opened, selectionLen=%d", len(selected))
	a.ui.RenderPreview(view)
}

// RequestPreview runs the panel's rewrite action with the chosen style.
func (a *Agent) RequestPreview(ctx context.Context, style, customInstructions string) {
	if style == "" {
		style = defaultStyle
	}

	a.mu.Lock()
	if a.panel.phase != PanelOpen {
		a.mu.Unlock()
		return
	}
	selected := a.panel.selectedText
	a.panel.startRewrite(style)
	view := a.panel.view()
	a.mu.Unlock()

	a.ui.RenderPreview(view)

	err := a.conn.Send(ctx, protocol.Message{
		Type:               protocol.TypeRewritePreview,
		Selection:          selected,
		Style:              style,
		CustomInstructions: customInstructions,
	})
	if err != nil {
		a.debugf("Failed to send preview request: %v", err)
		a.handlePreviewResult("", "Failed to communicate with the rewrite service")
	}
}

// ApplyPreview applies the panel's rewritten text at the stored range and
// closes the panel. The stored range is consumed even when application
// fails; a retry needs a fresh capture.
func (a *Agent) ApplyPreview() {
	a.mu.Lock()
	if a.panel.phase == PanelClosed {
		a.mu.Unlock()
		return
	}
	rewritten := a.panel.rewrittenText
	errText := a.panel.err
	r := a.panel.takeRange()
	a.mu.Unlock()

	if errText != "" {
		a.ui.ShowError("Cannot apply an error message to the page. Please try rewriting again.")
		return
	}
	if rewritten == "" {
		a.ui.ShowError("No rewritten text to apply")
		return
	}

	if a.applyToStoredRange(r, rewritten) {
		a.mu.Lock()
		a.currentSelection = ""
		a.setTriggerLocked(TriggerHidden)
		a.mu.Unlock()
		a.ui.ShowSuccess("Text applied to page successfully!")
	} else {
		a.ui.ShowError("Failed to apply text to page")
	}
	a.ClosePreview()
}

// ClosePreview closes the panel and drops the stored range.
func (a *Agent) ClosePreview() {
	a.mu.Lock()
	a.panel.close()
	view := a.panel.view()
	a.mu.Unlock()
	a.ui.RenderPreview(view)
}

func (a *Agent) setDetection(mode model.AutoDetection) {
	switch mode {
	case model.DetectAlways, model.DetectRightClickOnly, model.DetectDisabled:
	default:
		mode = model.DetectAlways
	}

	a.mu.Lock()
	a.detection = mode
	if mode != model.DetectAlways {
		a.setTriggerLocked(TriggerHidden)
	}
	a.mu.Unlock()
	a.debugf("Auto-detection mode updated: %s", mode)
}

func (a *Agent) setPreviewEnabled(enabled bool) {
	a.mu.Lock()
	a.previewEnabled = enabled
	closing := !enabled && a.panel.phase != PanelClosed
	if closing {
		a.panel.close()
	}
	view := a.panel.view()
	a.mu.Unlock()

	if closing {
		a.ui.RenderPreview(view)
	}
	a.debugf("Preview mode enabled=%t", enabled)
}

// Trigger returns the floating trigger's current state.
func (a *Agent) Trigger() TriggerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trigger
}

// Panel returns the preview panel's current view.
func (a *Agent) Panel() PreviewView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.panel.view()
}

// Selection returns the tracked selection text.
func (a *Agent) Selection() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentSelection
}

func (a *Agent) debugf(format string, args ...any) {
	if config.Debug() {
		config.DebugLog.Printf("[Agent %d] "+format, append([]any{a.conn.TabID()}, args...)...)
	}
}
