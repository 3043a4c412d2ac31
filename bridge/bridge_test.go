package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"rewritehub/protocol"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", hub.HandleAgent)
	mux.HandleFunc("/shim", hub.HandleShim)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialAgent(t *testing.T, wsURL, pageURL string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL+"/agent", pageURL)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHelloAssignsDistinctTabIDs(t *testing.T) {
	_, wsURL := newTestHub(t)

	first := dialAgent(t, wsURL, "https://example.com/a")
	second := dialAgent(t, wsURL, "https://example.com/b")

	if first.TabID() == 0 || second.TabID() == 0 {
		t.Fatalf("tab ids must be nonzero, got %d and %d", first.TabID(), second.TabID())
	}
	if first.TabID() == second.TabID() {
		t.Errorf("tab ids must be distinct, both got %d", first.TabID())
	}
}

func TestHelloRequiredAsFirstFrame(t *testing.T) {
	_, wsURL := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL+"/agent", nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, protocol.Message{Type: protocol.TypePing}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	var reply protocol.Message
	if err := wsjson.Read(ctx, conn, &reply); err == nil {
		t.Errorf("expected the hub to close the connection, got %+v", reply)
	}
}

func TestSendReachesAgent(t *testing.T) {
	hub, wsURL := newTestHub(t)
	client := dialAgent(t, wsURL, "https://example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := hub.Send(ctx, client.TabID(), protocol.Message{
		Type: protocol.TypeUpdateLoading,
		Text: "Processing with OpenAI...",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case msg := <-client.Messages():
		if msg.Type != protocol.TypeUpdateLoading || msg.Text != "Processing with OpenAI..." {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("message never arrived")
	}
}

func TestBroadcastReachesAllAgents(t *testing.T) {
	hub, wsURL := newTestHub(t)
	first := dialAgent(t, wsURL, "https://example.com/a")
	second := dialAgent(t, wsURL, "https://example.com/b")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Broadcast(ctx, protocol.Message{
		Type: protocol.TypeUpdateDetection,
		Mode: "disabled",
	})

	for _, client := range []*Client{first, second} {
		select {
		case msg := <-client.Messages():
			if msg.Type != protocol.TypeUpdateDetection || msg.Mode != "disabled" {
				t.Errorf("unexpected message for tab %d: %+v", client.TabID(), msg)
			}
		case <-ctx.Done():
			t.Fatalf("broadcast never reached tab %d", client.TabID())
		}
	}
}

func TestSendToUnknownTab(t *testing.T) {
	hub, _ := newTestHub(t)

	err := hub.Send(context.Background(), 42, protocol.Message{Type: protocol.TypeShowLoading})
	if !errors.Is(err, ErrNoReceiver) {
		t.Errorf("expected ErrNoReceiver, got %v", err)
	}
}

func TestPingRoundTrip(t *testing.T) {
	hub, wsURL := newTestHub(t)
	client := dialAgent(t, wsURL, "https://example.com")

	// Answer pings the way a live agent does.
	go func() {
		for msg := range client.Messages() {
			if msg.Type == protocol.TypePing {
				client.Send(context.Background(), protocol.Message{Type: protocol.TypePong, ID: msg.ID})
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Ping(ctx, client.TabID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPingUnknownTab(t *testing.T) {
	hub, _ := newTestHub(t)

	err := hub.Ping(context.Background(), 42)
	if !errors.Is(err, ErrNoReceiver) {
		t.Errorf("expected ErrNoReceiver, got %v", err)
	}
}

func TestAgentMessagesReachHandler(t *testing.T) {
	hub, wsURL := newTestHub(t)

	type received struct {
		tabID int
		msg   protocol.Message
	}
	got := make(chan received, 1)
	hub.SetHandler(func(tabID int, msg protocol.Message) {
		got <- received{tabID, msg}
	})

	client := dialAgent(t, wsURL, "https://example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Send(ctx, protocol.Message{
		Type:      protocol.TypeTriggerRewrite,
		Selection: "make this better",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case r := <-got:
		if r.tabID != client.TabID() {
			t.Errorf("handler saw tab %d, want %d", r.tabID, client.TabID())
		}
		if r.msg.Type != protocol.TypeTriggerRewrite || r.msg.Selection != "make this better" {
			t.Errorf("unexpected message: %+v", r.msg)
		}
	case <-ctx.Done():
		t.Fatal("handler never invoked")
	}
}

func TestTabURL(t *testing.T) {
	hub, wsURL := newTestHub(t)
	client := dialAgent(t, wsURL, "https://example.com/article")

	url, err := hub.TabURL(context.Background(), client.TabID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://example.com/article" {
		t.Errorf("unexpected url: %q", url)
	}
}

// dialShim connects a scripted privileged shim that answers injection calls.
// It returns once the hub has registered the shim; the handshake completes on
// the client before the server handler stores the connection.
func dialShim(t *testing.T, hub *Hub, wsURL string, handle func(protocol.Message) protocol.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL+"/shim", nil)
	if err != nil {
		t.Fatalf("failed to dial shim endpoint: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	go func() {
		for {
			var msg protocol.Message
			if err := wsjson.Read(context.Background(), conn, &msg); err != nil {
				return
			}
			reply := handle(msg)
			reply.ID = msg.ID
			if err := wsjson.Write(context.Background(), conn, reply); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := hub.shimConn(); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("shim never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Context-menu clicks travel over the shim connection and must reach the
// orchestrator handler like agent messages do.
func TestShimContextMenuReachesHandler(t *testing.T) {
	hub, wsURL := newTestHub(t)

	got := make(chan protocol.Message, 1)
	hub.SetHandler(func(tabID int, msg protocol.Message) {
		got <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL+"/shim", nil)
	if err != nil {
		t.Fatalf("failed to dial shim endpoint: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	err = wsjson.Write(ctx, conn, protocol.Message{
		Type:      protocol.TypeContextMenu,
		TabID:     3,
		Selection: "make this better",
	})
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	select {
	case msg := <-got:
		if msg.Type != protocol.TypeContextMenu || msg.TabID != 3 || msg.Selection != "make this better" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("context-menu relay never reached the handler")
	}
}

func TestInjectAgentViaShim(t *testing.T) {
	hub, wsURL := newTestHub(t)
	dialShim(t, hub, wsURL, func(msg protocol.Message) protocol.Message {
		if msg.Type != protocol.TypeInjectAgent || msg.TabID != 5 {
			t.Errorf("unexpected shim request: %+v", msg)
		}
		return protocol.Message{Type: protocol.TypeInjectResult, OK: true}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.InjectAgent(ctx, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInjectAgentRejected(t *testing.T) {
	hub, wsURL := newTestHub(t)
	dialShim(t, hub, wsURL, func(msg protocol.Message) protocol.Message {
		return protocol.Message{Type: protocol.TypeInjectResult, OK: false, Error: "restricted page"}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := hub.InjectAgent(ctx, 5)
	if err == nil {
		t.Fatal("expected an error for a rejected injection")
	}
	if !strings.Contains(err.Error(), "restricted page") {
		t.Errorf("expected the shim's reason in the error, got %v", err)
	}
}

func TestReplaceDirectVerdict(t *testing.T) {
	hub, wsURL := newTestHub(t)
	dialShim(t, hub, wsURL, func(msg protocol.Message) protocol.Message {
		if msg.OriginalText != "original" || msg.RewrittenText != "rewritten" {
			t.Errorf("unexpected replace request: %+v", msg)
		}
		// Safety check failed: not an error, just a false verdict.
		return protocol.Message{Type: protocol.TypeInjectResult, OK: false}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := hub.ReplaceDirect(ctx, 5, "original", "rewritten")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected a false verdict")
	}
}

func TestShimCallsWithoutShim(t *testing.T) {
	hub, _ := newTestHub(t)

	if err := hub.InjectAgent(context.Background(), 1); !errors.Is(err, ErrNoShim) {
		t.Errorf("expected ErrNoShim, got %v", err)
	}
	if _, err := hub.ReplaceDirect(context.Background(), 1, "a", "b"); !errors.Is(err, ErrNoShim) {
		t.Errorf("expected ErrNoShim, got %v", err)
	}
	if err := hub.ShowToast(context.Background(), 1, "hi"); !errors.Is(err, ErrNoShim) {
		t.Errorf("expected ErrNoShim, got %v", err)
	}
}
