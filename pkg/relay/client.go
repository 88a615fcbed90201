package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coopsweep/pkg/replica"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("relay client closed")

// Client is the peer end of a relay connection. It ships every local
// transaction of its document to the server and applies what comes back.
type Client struct {
	ws      *websocket.Conn
	doc     *replica.Doc
	members *replica.Membership
	send    chan Envelope
	done    chan struct{}
	stop    sync.Once
	cancel  func()

	mu     sync.Mutex
	joined map[string]bool
	hello  bool
}

// Dial connects doc to the hub at rawURL. Remote peers announced by the hub
// are joined to members, which may be nil.
func Dial(ctx context.Context, rawURL string, doc *replica.Doc, members *replica.Membership) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("peer", doc.Peer())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	if members == nil {
		members = replica.NewMembership()
	}
	c := &Client{
		ws:      ws,
		doc:     doc,
		members: members,
		send:    make(chan Envelope, sendBuffer),
		done:    make(chan struct{}),
		joined:  make(map[string]bool),
	}
	c.cancel = doc.OnUpdate(func(u replica.Update) {
		select {
		case c.send <- updateEnvelope(u):
		case <-c.done:
		}
	})
	return c, nil
}

// Peer returns the ID the client connected with.
func (c *Client) Peer() string {
	return c.doc.Peer()
}

// Greeted reports whether the hub has acknowledged the connection.
func (c *Client) Greeted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Run pumps messages until ctx is done, Close is called or the connection
// fails. It returns nil when ctx ends, ErrClosed after Close, and the read
// error otherwise.
func (c *Client) Run(ctx context.Context) error {
	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	defer c.Close()

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
				if ctx.Err() != nil {
					return nil
				}
				return ErrClosed
			default:
				return fmt.Errorf("relay read: %w", err)
			}
		}
		c.handle(env)
	}
}

func (c *Client) handle(env Envelope) {
	switch env.Type {
	case TypeHello:
		c.mu.Lock()
		c.hello = true
		c.mu.Unlock()
	case TypeUpdate:
		if env.Update != nil {
			c.doc.Apply(*env.Update)
		}
	case TypePeers:
		self := c.doc.Peer()
		for _, id := range env.Added {
			if id == self || !c.markJoined(id, true) {
				continue
			}
			c.members.Join(id)
		}
		for _, id := range env.Removed {
			if id == self || !c.markJoined(id, false) {
				continue
			}
			c.members.Leave(id)
		}
	}
}

// markJoined records a peer's presence and reports whether it changed.
func (c *Client) markJoined(id string, present bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined[id] == present {
		return false
	}
	if present {
		c.joined[id] = true
	} else {
		delete(c.joined, id)
	}
	return true
}

// Close ends the connection. Peers learnt from the hub leave members.
func (c *Client) Close() {
	c.stop.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()

		c.mu.Lock()
		peers := make([]string, 0, len(c.joined))
		for id := range c.joined {
			peers = append(peers, id)
		}
		c.joined = map[string]bool{}
		c.mu.Unlock()
		for _, id := range peers {
			c.members.Leave(id)
		}
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
