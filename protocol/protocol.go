// Package protocol defines the message format exchanged between the hub and
// page agents. Messages are flat JSON objects with a type discriminator, sent
// one per WebSocket frame. This is an internal RPC contract, not a public API:
// there is no versioning and no validation beyond the discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type discriminates message kinds.
type Type string

const (
	// Agent lifecycle and readiness.
	TypeHello      Type = "hello"
	TypeAgentReady Type = "content-script-ready"
	TypePing       Type = "ping"
	TypePong       Type = "pong"

	// Hub -> agent UI signals.
	TypeShowLoading       Type = "show-loading"
	TypeUpdateLoading     Type = "update-loading"
	TypeHideLoading       Type = "hide-loading"
	TypeReplaceSelection  Type = "replace-selection"
	TypeShowError         Type = "show-error"
	TypeShowSetupRequired Type = "show-setup-required"
	TypeShowPreviewPanel  Type = "show-preview-panel"
	TypePreviewResult     Type = "update-preview-result"
	TypeUpdateDetection   Type = "update-auto-detection"
	TypeTogglePreview     Type = "toggle-preview-mode"

	// Agent -> hub user actions.
	TypeTriggerRewrite Type = "trigger-rewrite"
	TypeRewritePreview Type = "rewrite-preview"

	// Privileged injection channel (hub -> browser shim).
	TypeInjectAgent   Type = "inject-agent"
	TypeReplaceDirect Type = "replace-direct"
	TypeInjectResult  Type = "inject-result"
	TypeShowToast     Type = "show-toast"

	// Context menu relay (shim -> hub). TabID names the target tab since the
	// shim connection is not bound to one.
	TypeContextMenu Type = "context-menu"
)

// Message is the wire envelope. Fields are a union over all message kinds;
// only the ones relevant to Type are populated.
type Message struct {
	Type Type `json:"type"`

	// ID correlates round-trip exchanges (ping/pong, replace-direct).
	ID string `json:"id,omitempty"`

	// TabID identifies the target tab on hub->agent traffic.
	TabID int `json:"tabId,omitempty"`

	// URL is the page URL, announced in hello.
	URL string `json:"url,omitempty"`

	// Selection carries the selected text on trigger messages.
	Selection string `json:"selection,omitempty"`

	// SelectedText seeds the preview panel on show-preview-panel.
	SelectedText string `json:"selectedText,omitempty"`

	// RewrittenText carries a rewrite result.
	RewrittenText string `json:"rewrittenText,omitempty"`

	// OriginalText is the text the rewrite was computed from, used by the
	// direct-injection safety check.
	OriginalText string `json:"originalText,omitempty"`

	// Error carries a user-facing error string.
	Error string `json:"error,omitempty"`

	// Provider names the provider involved (setup-required, errors).
	Provider string `json:"provider,omitempty"`

	// Style and CustomInstructions select instructions on rewrite-preview.
	Style              string `json:"style,omitempty"`
	CustomInstructions string `json:"customInstructions,omitempty"`

	// Text is a free-form display string (update-loading, show-toast).
	Text string `json:"message,omitempty"`

	// Mode carries the auto-detection mode on update-auto-detection.
	Mode string `json:"mode,omitempty"`

	// Enabled carries the flag on toggle-preview-mode.
	Enabled bool `json:"enabled,omitempty"`

	// OK carries the boolean outcome on inject-result.
	OK bool `json:"ok,omitempty"`
}

// Encode marshals m for the wire.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return b, nil
}

// Decode unmarshals a frame. Messages without a type discriminator are
// rejected; unknown types are passed through for the receiver to ignore.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode message: missing type discriminator")
	}
	return m, nil
}
