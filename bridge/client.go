package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"rewritehub/protocol"
)

// Client is the agent-side connection to the hub. It satisfies the agent
// package's Conn interface.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	tabID   int
	msgs    chan protocol.Message
}

// Dial connects to the hub's agent endpoint, announces the page URL via
// hello, and waits for the tab id assignment.
func Dial(ctx context.Context, hubURL, pageURL string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, hubURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	c := &Client{
		conn: conn,
		msgs: make(chan protocol.Message, 16),
	}

	if err := wsjson.Write(ctx, conn, protocol.Message{Type: protocol.TypeHello, URL: pageURL}); err != nil {
		conn.Close(websocket.StatusInternalError, "hello failed")
		return nil, fmt.Errorf("send hello: %w", err)
	}

	var reply protocol.Message
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		conn.Close(websocket.StatusInternalError, "hello reply failed")
		return nil, fmt.Errorf("read hello reply: %w", err)
	}
	if reply.Type != protocol.TypeHello || reply.TabID == 0 {
		conn.Close(websocket.StatusPolicyViolation, "bad hello reply")
		return nil, fmt.Errorf("unexpected hello reply: type=%s tab=%d", reply.Type, reply.TabID)
	}
	c.tabID = reply.TabID

	go c.pump()
	return c, nil
}

func (c *Client) pump() {
	defer close(c.msgs)
	for {
		var msg protocol.Message
		if err := wsjson.Read(context.Background(), c.conn, &msg); err != nil {
			return
		}
		c.msgs <- msg
	}
}

// TabID returns the hub-assigned tab id.
func (c *Client) TabID() int {
	return c.tabID
}

// Send writes one message to the hub.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Messages returns the hub message stream. The channel closes when the
// connection drops.
func (c *Client) Messages() <-chan protocol.Message {
	return c.msgs
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
