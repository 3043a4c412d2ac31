package background

import (
	"context"
	"errors"
	"time"

	"rewritehub/bridge"
	"rewritehub/config"
	"rewritehub/protocol"
	"rewritehub/storage"
)

// DeliveryState names where a replacement ended up on the delivery ladder.
type DeliveryState string

const (
	// StateApplied means the text landed in the page, either through the
	// agent or through direct injection.
	StateApplied DeliveryState = "applied"

	// StateManualFallback means every delivery path failed and the rewritten
	// text was handed to the user out of band.
	StateManualFallback DeliveryState = "manual-fallback"
)

const (
	deliveryMaxAttempts = 3
	deliveryRetryDelay  = 500 * time.Millisecond
)

const successToast = "Text rewritten successfully!"

// deliverReplacement walks the delivery ladder for an auto-replace result:
//
//	agent delivery (3 attempts, retrying only no-receiver)
//	-> direct injection with the selection safety check
//	-> manual fallback (clipboard + notification)
//
// The ladder never fails upward; the worst outcome is StateManualFallback
// with the text preserved on the clipboard.
func (o *Orchestrator) deliverReplacement(ctx context.Context, tabID int, at *attempt, original, rewritten string) DeliveryState {
	if config.Debug() {
		config.DebugLog.Printf("[Background] Starting text replacement: tab=%d agentReady=%t attempts=%d",
			tabID, o.ready.has(tabID), deliveryMaxAttempts)
	}

	if o.deliverViaAgent(ctx, tabID, rewritten) {
		o.recordOutcome(ctx, at, tabID, original, rewritten, storage.OutcomeApplied, "")
		return StateApplied
	}

	if o.deliverViaInjection(ctx, tabID, original, rewritten) {
		o.recordOutcome(ctx, at, tabID, original, rewritten, storage.OutcomeApplied, "")
		return StateApplied
	}

	o.manualFallback(ctx, tabID, at, original, rewritten)
	return StateManualFallback
}

// deliverViaAgent sends replace-selection to the tab's agent, retrying only
// the no-receiver case. Other transport failures mean retrying cannot help,
// so they fall through to direct injection immediately.
func (o *Orchestrator) deliverViaAgent(ctx context.Context, tabID int, rewritten string) bool {
	for attemptNum := 1; attemptNum <= deliveryMaxAttempts; attemptNum++ {
		err := o.transport.Send(ctx, tabID, protocol.Message{
			Type:          protocol.TypeReplaceSelection,
			TabID:         tabID,
			RewrittenText: rewritten,
		})
		if err == nil {
			if config.Debug() {
				config.DebugLog.Printf("[Background] Replacement delivered to agent on attempt %d", attemptNum)
			}
			return true
		}

		if !errors.Is(err, bridge.ErrNoReceiver) {
			if config.Debug() {
				config.DebugLog.Printf("[Background] Replacement send failed: %v", err)
			}
			return false
		}

		if config.Debug() {
			config.DebugLog.Printf("[Background] Agent not ready for replacement, attempt %d/%d",
				attemptNum, deliveryMaxAttempts)
		}
		if attemptNum < deliveryMaxAttempts {
			o.sleep(deliveryRetryDelay)
		}
	}
	return false
}

// deliverViaInjection bypasses the agent: the privileged channel re-reads the
// live selection, verifies it still matches the text the rewrite came from,
// and splices in the replacement. A changed selection fails the check and
// nothing is mutated.
func (o *Orchestrator) deliverViaInjection(ctx context.Context, tabID int, original, rewritten string) bool {
	ok, err := o.transport.ReplaceDirect(ctx, tabID, original, rewritten)
	if err != nil {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Direct injection failed: %v", err)
		}
		return false
	}
	if !ok {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Direct replacement refused, selection changed or missing")
		}
		return false
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Text replaced via direct injection")
	}
	if terr := o.transport.ShowToast(ctx, tabID, successToast); terr != nil && config.Debug() {
		config.DebugLog.Printf("[Background] Failed to show success toast: %v", terr)
	}
	return true
}

// manualFallback preserves the result when no delivery path worked: the
// rewritten text goes onto the clipboard, into the history store, and a
// system notification tells the user where to find it.
func (o *Orchestrator) manualFallback(ctx context.Context, tabID int, at *attempt, original, rewritten string) {
	config.DebugLog.Printf("[Background] REWRITTEN TEXT READY, paste to replace your selection: provider=%s original=%q rewritten=%q",
		at.providerID, original, rewritten)

	copied := false
	if o.copyText != nil {
		if err := o.copyText(rewritten); err != nil {
			if config.Debug() {
				config.DebugLog.Printf("[Background] Failed to copy rewritten text to clipboard: %v", err)
			}
		} else {
			copied = true
		}
	}

	o.recordOutcome(ctx, at, tabID, original, rewritten, storage.OutcomeManualFallback, "")

	if o.notify != nil {
		msg := "Text rewritten, but the page could not be updated. Check the rewrite history for the result."
		if copied {
			msg = "Text rewritten and copied to your clipboard. Paste it to replace your selection."
		}
		if err := o.notify.Notify("Rewrite complete", msg); err != nil && config.Debug() {
			config.DebugLog.Printf("[Background] Failed to raise fallback notification: %v", err)
		}
	}
}
