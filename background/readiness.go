package background

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rewritehub/bridge"
	"rewritehub/config"
)

// restrictedPrefixes lists URL schemes the privileged channel can never
// script. file:// is deliberately absent so local pages stay testable.
var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"moz-extension://",
	"edge://",
	"about:",
	"chrome-search://",
	"chrome-devtools://",
	"view-source:",
	"data:",
}

// agentSettleDelay is how long a freshly injected agent gets to initialize
// before the confirming ping.
const agentSettleDelay = 1 * time.Second

// IsRestrictedURL reports whether url cannot host the page agent.
func IsRestrictedURL(url string) bool {
	for _, prefix := range restrictedPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// isPageRestricted resolves the tab's URL and checks it. An unresolvable tab
// counts as not restricted; the readiness probe catches dead tabs anyway.
func (o *Orchestrator) isPageRestricted(ctx context.Context, tabID int) bool {
	url, err := o.transport.TabURL(ctx, tabID)
	if err != nil {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Failed to resolve URL for tab %d: %v", tabID, err)
		}
		return false
	}
	return IsRestrictedURL(url)
}

// ensureAgentReady probes the tab's agent and injects it on demand: ping, and
// on no-receiver inject the agent, give it one settle delay, then ping once
// more. Any other ping failure means the tab is unusable.
func (o *Orchestrator) ensureAgentReady(ctx context.Context, tabID int) bool {
	err := o.transport.Ping(ctx, tabID)
	if err == nil {
		return true
	}
	if !errors.Is(err, bridge.ErrNoReceiver) {
		return false
	}

	if config.Debug() {
		config.DebugLog.Printf("[Background] Agent not ready for tab %d, injecting", tabID)
	}

	if err := o.transport.InjectAgent(ctx, tabID); err != nil {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Failed to inject agent into tab %d: %v", tabID, err)
		}
		return false
	}

	o.sleep(agentSettleDelay)

	if err := o.transport.Ping(ctx, tabID); err != nil {
		if config.Debug() {
			config.DebugLog.Printf("[Background] Agent still not ready after injection for tab %d", tabID)
		}
		return false
	}
	if config.Debug() {
		config.DebugLog.Printf("[Background] Agent ready after injection for tab %d", tabID)
	}
	return true
}

// readySet tracks tabs whose agents announced readiness. Entries are never
// removed; a stale entry only means one wasted delivery attempt before the
// retry ladder kicks in.
type readySet struct {
	mu   sync.Mutex
	tabs map[int]struct{}
}

func (r *readySet) init() {
	r.tabs = make(map[int]struct{})
}

func (r *readySet) add(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[tabID] = struct{}{}
}

func (r *readySet) has(tabID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tabs[tabID]
	return ok
}
