// Package background implements the rewrite orchestrator: the pipeline that
// turns a user trigger (context menu, floating button, preview panel) into a
// provider call and pushes the result back into the page.
//
// The orchestrator owns all retry and fallback policy. Provider adapters make
// exactly one HTTP call; the transport is fire-and-forget. Everything that can
// fail past the provider call degrades through the delivery ladder in
// delivery.go rather than surfacing an error to the caller.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"rewritehub/config"
	"rewritehub/model"
	"rewritehub/protocol"
	"rewritehub/provider"
	"rewritehub/storage"
)

const restrictedPageError = "This cannot work on browser system pages. Please try on a regular website."

// internalError is the user-facing text for a recovered panic; the real cause
// goes to the debug log only.
const internalError = "Something went wrong. Please try again."

// Transport is the hub-side message channel the orchestrator drives. The
// bridge.Hub implements it; tests substitute a fake.
type Transport interface {
	// Send delivers a message to the tab's agent, failing with
	// bridge.ErrNoReceiver when none is connected.
	Send(ctx context.Context, tabID int, msg protocol.Message) error

	// Ping round-trips a readiness probe to the tab's agent.
	Ping(ctx context.Context, tabID int) error

	// TabURL returns the page URL the tab's agent announced.
	TabURL(ctx context.Context, tabID int) (string, error)

	// InjectAgent loads the page agent into the tab via the privileged
	// channel.
	InjectAgent(ctx context.Context, tabID int) error

	// ReplaceDirect runs the self-contained replacement script in the tab,
	// bypassing the agent. The bool is the script's success verdict.
	ReplaceDirect(ctx context.Context, tabID int, originalText, rewrittenText string) (bool, error)

	// ShowToast injects a transient success toast.
	ShowToast(ctx context.Context, tabID int, text string) error
}

// Notifier raises a system notification when the page cannot show one.
type Notifier interface {
	Notify(title, message string) error
}

// Recorder persists rewrite outcomes. storage.HistoryStore implements it.
type Recorder interface {
	Record(ctx context.Context, rec storage.RewriteRecord) error
}

// Orchestrator coordinates rewrite requests end to end.
type Orchestrator struct {
	transport Transport
	settings  *config.SettingsStore
	history   Recorder
	notify    Notifier

	// Seams for tests. getProvider defaults to the registry lookup, sleep to
	// time.Sleep, copyText to the system clipboard.
	getProvider func(model.ProviderID) (model.Provider, error)
	sleep       func(time.Duration)
	copyText    func(string) error

	ready readySet
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithHistory attaches a rewrite history recorder.
func WithHistory(r Recorder) Option {
	return func(o *Orchestrator) { o.history = r }
}

// WithNotifier attaches a system notifier for fallback messages.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notify = n }
}

// NewOrchestrator creates an orchestrator over the given transport and
// settings store.
func NewOrchestrator(transport Transport, settings *config.SettingsStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport:   transport,
		settings:    settings,
		getProvider: provider.Get,
		sleep:       time.Sleep,
		copyText:    clipboard.WriteAll,
	}
	o.ready.init()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleAgentMessage is the sink for agent- and shim-originated messages;
// wire it as the bridge hub's handler. Rewrite work runs on its own goroutine
// so the hub's read pump never blocks on a provider call.
func (o *Orchestrator) HandleAgentMessage(tabID int, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeAgentReady:
		o.ready.add(tabID)
		if config.Debug() {
			config.DebugLog.Printf("[Background] Agent ready for tab %d", tabID)
		}

	case protocol.TypeTriggerRewrite:
		if msg.Selection == "" {
			return
		}
		go o.HandleRewrite(context.Background(), tabID, msg.Selection)

	case protocol.TypeRewritePreview:
		if msg.Selection == "" {
			return
		}
		go o.HandlePreviewRewrite(context.Background(), tabID, msg.Selection, msg.Style, msg.CustomInstructions)

	case protocol.TypeContextMenu:
		// Relayed by the shim, whose connection pumps with tab id 0; the
		// target tab rides in the message.
		target := msg.TabID
		if target == 0 {
			target = tabID
		}
		go o.HandleContextMenu(context.Background(), target, msg.Selection)
	}
}

// HandleContextMenu runs the context-menu entry point: refuse restricted
// pages, make sure the agent is up, then dispatch on the configured mode.
func (o *Orchestrator) HandleContextMenu(ctx context.Context, tabID int, selection string) {
	defer func() {
		if r := recover(); r != nil {
			config.DebugLog.Printf("[Background] Context menu handler panicked: tab=%d panic=%v", tabID, r)
			o.reportUnusablePage(ctx, tabID, internalError)
		}
	}()

	if selection == "" {
		return
	}

	if o.isPageRestricted(ctx, tabID) {
		o.reportUnusablePage(ctx, tabID, restrictedPageError)
		return
	}

	if !o.ensureAgentReady(ctx, tabID) {
		o.reportUnusablePage(ctx, tabID, "Cannot work on this page. Please try on a regular website.")
		return
	}

	settings, err := o.settings.Load()
	if err != nil {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Failed to load settings: %v", err)
		}
		settings = config.DefaultSettings()
	}

	if settings.ModeOrDefault() == model.ModePreview {
		err := o.transport.Send(ctx, tabID, protocol.Message{
			Type:         protocol.TypeShowPreviewPanel,
			SelectedText: selection,
		})
		if err != nil && config.Debug() {
			config.DebugLog.Printf("[Background] Failed to open preview panel: %v", err)
		}
		return
	}

	o.HandleRewrite(ctx, tabID, selection)
}

// reportUnusablePage tries the in-page error surface first and degrades to a
// system notification when no agent can show it.
func (o *Orchestrator) reportUnusablePage(ctx context.Context, tabID int, text string) {
	err := o.transport.Send(ctx, tabID, protocol.Message{Type: protocol.TypeShowError, Error: text})
	if err == nil {
		return
	}
	if o.notify != nil {
		if nerr := o.notify.Notify("Rewrite", text); nerr == nil {
			return
		}
	}
	if config.Debug() {
		config.DebugLog.Printf("[Background] Could not report to tab %d: %s", tabID, text)
	}
}

// attempt is the per-request view assembled from settings, credentials and
// the provider registry.
type attempt struct {
	processID  string
	providerID model.ProviderID
	prov       model.Provider
	req        model.RewriteRequest
}

// prepare resolves settings and credentials into a ready-to-send request.
// A missing API key comes back as (nil, false): the caller owes the user the
// setup-required surface, not an error.
func (o *Orchestrator) prepare(tabID int, selection, instructions string) (*attempt, bool, error) {
	configStart := time.Now()
	snap, err := o.settings.Snapshot()
	if err != nil {
		return nil, false, fmt.Errorf("load settings: %w", err)
	}

	providerID := snap.ActiveProvider()
	apiKey := snap.APIKey(providerID)

	if config.Debug() {
		config.DebugLog.Printf("[Background] Configuration loaded: provider=%s model=%s configLoadMs=%d hasKey=%t",
			providerID, snap.ModelFor(providerID), time.Since(configStart).Milliseconds(), apiKey != "")
	}

	if apiKey == "" {
		return &attempt{providerID: providerID}, false, nil
	}

	prov, err := o.getProvider(providerID)
	if err != nil {
		return nil, false, err
	}

	if instructions == "" {
		instructions = snap.InstructionsFor(providerID)
	}

	return &attempt{
		processID:  uuid.New().String(),
		providerID: providerID,
		prov:       prov,
		req: model.RewriteRequest{
			Text:         selection,
			Instructions: instructions,
			Config: model.ProviderConfig{
				APIKey: apiKey,
				Model:  snap.ModelFor(providerID),
			},
		},
	}, true, nil
}

// HandleRewrite runs the auto-replace flow: resolve config, call the
// provider, then hand the result to the delivery ladder. Loading signals are
// best-effort throughout; their failures never abort the rewrite.
func (o *Orchestrator) HandleRewrite(ctx context.Context, tabID int, selection string) {
	defer func() {
		if r := recover(); r != nil {
			config.DebugLog.Printf("[Background] Rewrite handler panicked: tab=%d panic=%v", tabID, r)
			o.failRewrite(ctx, tabID, internalError, "")
		}
	}()

	start := time.Now()

	if isBlankSelection(selection) {
		o.failRewrite(ctx, tabID, "No text selected", "")
		return
	}

	at, haveKey, err := o.prepare(tabID, selection, "")
	if err != nil {
		o.failRewrite(ctx, tabID, err.Error(), "")
		return
	}

	if !haveKey {
		err := o.transport.Send(ctx, tabID, protocol.Message{
			Type:     protocol.TypeShowSetupRequired,
			TabID:    tabID,
			Provider: string(at.providerID),
		})
		if err != nil && config.Debug() {
			config.DebugLog.Printf("[Background] Failed to send setup-required: %v", err)
		}
		return
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Rewrite starting: process=%s tab=%d selectionLen=%d",
			at.processID, tabID, len(selection))
	}

	o.signal(ctx, tabID, protocol.Message{Type: protocol.TypeShowLoading, TabID: tabID})
	o.signal(ctx, tabID, protocol.Message{
		Type: protocol.TypeUpdateLoading,
		Text: fmt.Sprintf("Connecting to %s...", at.prov.Name()),
	})
	o.signal(ctx, tabID, protocol.Message{
		Type: protocol.TypeUpdateLoading,
		Text: fmt.Sprintf("Processing with %s...", at.prov.Name()),
	})

	callStart := time.Now()
	result := at.prov.Rewrite(ctx, at.req)
	callDuration := time.Since(callStart)

	o.signal(ctx, tabID, protocol.Message{Type: protocol.TypeUpdateLoading, Text: "Finalizing rewrite..."})

	if !result.Success || result.RewrittenText == "" {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Provider call failed: process=%s provider=%s error=%q callMs=%d",
				at.processID, at.providerID, result.Error, callDuration.Milliseconds())
		}
		o.recordOutcome(ctx, at, tabID, selection, "", storage.OutcomeError, result.Error)
		o.failRewrite(ctx, tabID, friendlyError(result.Error, string(at.providerID)), string(at.providerID))
		return
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Provider response: process=%s provider=%s callMs=%d originalLen=%d rewrittenLen=%d",
			at.processID, at.providerID, callDuration.Milliseconds(), len(selection), len(result.RewrittenText))
	}

	state := o.deliverReplacement(ctx, tabID, at, selection, result.RewrittenText)

	o.signal(ctx, tabID, protocol.Message{Type: protocol.TypeHideLoading, TabID: tabID})

	if config.Debug() {
		config.DebugLog.Printf("[Background] Rewrite finished: process=%s state=%s totalMs=%d",
			at.processID, state, time.Since(start).Milliseconds())
	}
}

// HandlePreviewRewrite runs the preview flow. The panel owns its own loading
// UI, so the only message back is a single update-preview-result carrying
// either the text or the raw error.
func (o *Orchestrator) HandlePreviewRewrite(ctx context.Context, tabID int, selection, style, customInstructions string) {
	defer func() {
		if r := recover(); r != nil {
			config.DebugLog.Printf("[Background] Preview handler panicked: tab=%d panic=%v", tabID, r)
			o.sendPreviewError(ctx, tabID, internalError)
		}
	}()

	start := time.Now()

	if isBlankSelection(selection) {
		o.sendPreviewError(ctx, tabID, "No text selected")
		return
	}

	instructions := style
	if style == config.PresetCustom && customInstructions != "" {
		instructions = customInstructions
	}

	at, haveKey, err := o.prepare(tabID, selection, instructions)
	if err != nil {
		o.sendPreviewError(ctx, tabID, err.Error())
		return
	}

	if !haveKey {
		o.sendPreviewError(ctx, tabID, fmt.Sprintf(
			"No API key configured for %s. Please configure your API key in settings.", at.providerID))
		return
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Preview rewrite starting: process=%s tab=%d style=%q selectionLen=%d",
			at.processID, tabID, style, len(selection))
	}

	callStart := time.Now()
	result := at.prov.Rewrite(ctx, at.req)
	callDuration := time.Since(callStart)

	if !result.Success || result.RewrittenText == "" {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Preview provider call failed: process=%s error=%q callMs=%d",
				at.processID, result.Error, callDuration.Milliseconds())
		}
		o.recordOutcome(ctx, at, tabID, selection, "", storage.OutcomeError, result.Error)
		o.sendPreviewError(ctx, tabID, friendlyError(result.Error, string(at.providerID)))
		return
	}

	o.recordOutcome(ctx, at, tabID, selection, result.RewrittenText, storage.OutcomePreviewed, "")

	err = o.transport.Send(ctx, tabID, protocol.Message{
		Type:          protocol.TypePreviewResult,
		RewrittenText: result.RewrittenText,
		Style:         style,
	})
	if err != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Failed to send preview result: %v", err)
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Preview rewrite finished: process=%s callMs=%d totalMs=%d",
			at.processID, callDuration.Milliseconds(), time.Since(start).Milliseconds())
	}
}

// failRewrite surfaces an auto-replace failure and clears the loading state.
// Both sends are best-effort.
func (o *Orchestrator) failRewrite(ctx context.Context, tabID int, errText, providerID string) {
	err := o.transport.Send(ctx, tabID, protocol.Message{
		Type:     protocol.TypeShowError,
		TabID:    tabID,
		Error:    errText,
		Provider: providerID,
	})
	if err != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Failed to send error to tab %d: %v", tabID, err)
	}
	o.signal(ctx, tabID, protocol.Message{Type: protocol.TypeHideLoading, TabID: tabID})
}

func (o *Orchestrator) sendPreviewError(ctx context.Context, tabID int, errText string) {
	err := o.transport.Send(ctx, tabID, protocol.Message{
		Type:  protocol.TypePreviewResult,
		Error: errText,
	})
	if err != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Failed to send preview error to tab %d: %v", tabID, err)
	}
}

// signal sends a loading-state message, swallowing failures. An agent that is
// not ready yet simply misses the signal.
func (o *Orchestrator) signal(ctx context.Context, tabID int, msg protocol.Message) {
	if err := o.transport.Send(ctx, tabID, msg); err != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Loading signal %s not delivered to tab %d: %v", msg.Type, tabID, err)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, at *attempt, tabID int, original, rewritten string, outcome storage.Outcome, errText string) {
	if o.history == nil {
		return
	}
	rec := storage.RewriteRecord{
		TabID:     tabID,
		Provider:  string(at.providerID),
		Model:     at.req.Config.Model,
		Original:  original,
		Rewritten: rewritten,
		Outcome:   outcome,
		Error:     errText,
	}
	if err := o.history.Record(ctx, rec); err != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Failed to record rewrite history: %v", err)
	}
}

func isBlankSelection(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
