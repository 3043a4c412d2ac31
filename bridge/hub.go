// Package bridge carries messages between the hub process and page agents.
//
// Agents connect over WebSocket and are keyed by an opaque tab id assigned at
// hello time. The channel is deliberately best-effort: a send to a tab whose
// agent is gone, was never injected, or is mid-navigation fails with
// ErrNoReceiver, and the background package's retry/fallback ladder decides
// what happens next. An optional privileged "shim" connection (the browser
// side with scripting access) serves the injection channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"rewritehub/config"
	"rewritehub/protocol"
)

// ErrNoReceiver is returned when a message targets a tab with no live agent
// connection. This is the only failure class the delivery ladder retries.
var ErrNoReceiver = errors.New("receiving end does not exist")

// ErrNoShim is returned when the injection channel is needed but no
// privileged browser connection is attached.
var ErrNoShim = errors.New("browser shim not connected")

const defaultCallTimeout = 5 * time.Second

// AgentMessageHandler receives agent-originated messages (readiness
// announcements, rewrite triggers).
type AgentMessageHandler func(tabID int, msg protocol.Message)

type agentConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	url     string
}

func (a *agentConn) write(ctx context.Context, msg protocol.Message) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wsjson.Write(ctx, a.conn, msg)
}

// Hub tracks connected agents and routes messages by tab id.
type Hub struct {
	mu      sync.Mutex
	agents  map[int]*agentConn
	shim    *agentConn
	nextTab int
	pending map[string]chan protocol.Message

	handler     AgentMessageHandler
	callTimeout time.Duration
}

// NewHub creates an empty hub. SetHandler must be called before serving.
func NewHub() *Hub {
	return &Hub{
		agents:      make(map[int]*agentConn),
		pending:     make(map[string]chan protocol.Message),
		nextTab:     1,
		callTimeout: defaultCallTimeout,
	}
}

// SetHandler registers the sink for agent-originated messages.
func (h *Hub) SetHandler(handler AgentMessageHandler) {
	h.handler = handler
}

// HandleAgent is the HTTP handler page agents connect to. The first frame
// must be a hello carrying the page URL; the hub assigns a tab id and echoes
// it back, then pumps messages until the connection drops.
func (h *Hub) HandleAgent(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	ctx := r.Context()

	var hello protocol.Message
	helloCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	err = wsjson.Read(helloCtx, conn, &hello)
	cancel()
	if err != nil || hello.Type != protocol.TypeHello {
		conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return
	}

	ac := &agentConn{conn: conn, url: hello.URL}

	h.mu.Lock()
	tabID := h.nextTab
	h.nextTab++
	h.agents[tabID] = ac
	h.mu.Unlock()

	if err := ac.write(ctx, protocol.Message{Type: protocol.TypeHello, TabID: tabID}); err != nil {
		h.dropAgent(tabID)
		conn.Close(websocket.StatusInternalError, "hello reply failed")
		return
	}

	if config.Debug() {
		config.DebugLog.Printf("[Hub] Agent connected: tab=%d url=%s", tabID, hello.URL)
	}

	h.pump(ctx, tabID, conn)

	h.dropAgent(tabID)
	conn.Close(websocket.StatusNormalClosure, "")
	if config.Debug() {
		config.DebugLog.Printf("[Hub] Agent disconnected: tab=%d", tabID)
	}
}

// HandleShim is the HTTP handler for the privileged browser connection that
// executes injections. Only one shim is kept; a new one replaces the old.
func (h *Hub) HandleShim(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	sc := &agentConn{conn: conn}
	h.mu.Lock()
	h.shim = sc
	h.mu.Unlock()

	if config.Debug() {
		config.DebugLog.Printf("[Hub] Browser shim connected")
	}

	h.pump(r.Context(), 0, conn)

	h.mu.Lock()
	if h.shim == sc {
		h.shim = nil
	}
	h.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) pump(ctx context.Context, tabID int, conn *websocket.Conn) {
	for {
		var msg protocol.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}

		// Correlated replies resolve a pending call; everything else is an
		// agent-originated message for the orchestrator.
		if msg.ID != "" && (msg.Type == protocol.TypePong || msg.Type == protocol.TypeInjectResult) {
			h.resolve(msg)
			continue
		}
		if h.handler != nil {
			h.handler(tabID, msg)
		}
	}
}

func (h *Hub) dropAgent(tabID int) {
	h.mu.Lock()
	delete(h.agents, tabID)
	h.mu.Unlock()
}

func (h *Hub) agent(tabID int) (*agentConn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ac, ok := h.agents[tabID]
	return ac, ok
}

func (h *Hub) resolve(msg protocol.Message) {
	h.mu.Lock()
	ch, ok := h.pending[msg.ID]
	if ok {
		delete(h.pending, msg.ID)
	}
	h.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (h *Hub) await(id string) chan protocol.Message {
	ch := make(chan protocol.Message, 1)
	h.mu.Lock()
	h.pending[id] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) abandon(id string) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

// Send delivers msg to the tab's agent, fire-and-forget. Returns
// ErrNoReceiver when the tab has no live agent.
func (h *Hub) Send(ctx context.Context, tabID int, msg protocol.Message) error {
	ac, ok := h.agent(tabID)
	if !ok {
		return fmt.Errorf("tab %d: %w", tabID, ErrNoReceiver)
	}
	if err := ac.write(ctx, msg); err != nil {
		return fmt.Errorf("send %s to tab %d: %w", msg.Type, tabID, err)
	}
	return nil
}

// Broadcast delivers msg to every connected agent, best-effort. Used for
// settings pushes where a missed tab just keeps its old mode until reload.
func (h *Hub) Broadcast(ctx context.Context, msg protocol.Message) {
	h.mu.Lock()
	conns := make([]*agentConn, 0, len(h.agents))
	for _, ac := range h.agents {
		conns = append(conns, ac)
	}
	h.mu.Unlock()

	for _, ac := range conns {
		if err := ac.write(ctx, msg); err != nil && config.Debug() {
			config.DebugLog.Printf("[Hub] Broadcast %s failed for one agent: %v", msg.Type, err)
		}
	}
}

// Ping round-trips a correlated ping to the tab's agent. A missing
// connection fails with ErrNoReceiver; a connected but unresponsive agent
// fails on timeout.
func (h *Hub) Ping(ctx context.Context, tabID int) error {
	ac, ok := h.agent(tabID)
	if !ok {
		return fmt.Errorf("tab %d: %w", tabID, ErrNoReceiver)
	}

	id := uuid.New().String()
	ch := h.await(id)
	defer h.abandon(id)

	if err := ac.write(ctx, protocol.Message{Type: protocol.TypePing, ID: id}); err != nil {
		return fmt.Errorf("ping tab %d: %w", tabID, err)
	}

	select {
	case <-ch:
		return nil
	case <-time.After(h.callTimeout):
		return fmt.Errorf("ping tab %d: timeout", tabID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TabURL returns the page URL the tab's agent announced at hello.
func (h *Hub) TabURL(ctx context.Context, tabID int) (string, error) {
	ac, ok := h.agent(tabID)
	if !ok {
		return "", fmt.Errorf("tab %d: %w", tabID, ErrNoReceiver)
	}
	return ac.url, nil
}

func (h *Hub) shimConn() (*agentConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shim == nil {
		return nil, ErrNoShim
	}
	return h.shim, nil
}

func (h *Hub) shimCall(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
	sc, err := h.shimConn()
	if err != nil {
		return protocol.Message{}, err
	}

	msg.ID = uuid.New().String()
	ch := h.await(msg.ID)
	defer h.abandon(msg.ID)

	if err := sc.write(ctx, msg); err != nil {
		return protocol.Message{}, fmt.Errorf("shim call %s: %w", msg.Type, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-time.After(h.callTimeout):
		return protocol.Message{}, fmt.Errorf("shim call %s: timeout", msg.Type)
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// InjectAgent asks the shim to load the page agent bundle into the tab.
// Restricted pages come back as an error.
func (h *Hub) InjectAgent(ctx context.Context, tabID int) error {
	reply, err := h.shimCall(ctx, protocol.Message{Type: protocol.TypeInjectAgent, TabID: tabID})
	if err != nil {
		return err
	}
	if !reply.OK {
		msg := reply.Error
		if msg == "" {
			msg = "injection rejected"
		}
		return fmt.Errorf("inject agent into tab %d: %s", tabID, msg)
	}
	return nil
}

// ReplaceDirect asks the shim to run the self-contained replacement script
// in the tab: re-read the live selection, verify it still matches
// originalText, and splice in rewrittenText. The bool is the script's own
// success verdict; false without error means the safety check failed.
func (h *Hub) ReplaceDirect(ctx context.Context, tabID int, originalText, rewrittenText string) (bool, error) {
	reply, err := h.shimCall(ctx, protocol.Message{
		Type:          protocol.TypeReplaceDirect,
		TabID:         tabID,
		OriginalText:  originalText,
		RewrittenText: rewrittenText,
	})
	if err != nil {
		return false, err
	}
	return reply.OK, nil
}

// ShowToast asks the shim to inject a transient success toast.
func (h *Hub) ShowToast(ctx context.Context, tabID int, text string) error {
	sc, err := h.shimConn()
	if err != nil {
		return err
	}
	return sc.write(ctx, protocol.Message{Type: protocol.TypeShowToast, TabID: tabID, Text: text})
}
