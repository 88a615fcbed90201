package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coopsweep/pkg/replica"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
	// maxMessage bounds a single envelope; a full snapshot of the largest board fits.
	maxMessage = 8 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type peerConn struct {
	ws   *websocket.Conn
	send chan Envelope
	peer string
	// gone is set, under Hub.mu, once send has been closed.
	gone bool
}

type inbound struct {
	from *peerConn
	env  Envelope
}

// Hub is the server end of one room. It owns the room's document as just
// another peer and relays every update it receives to the other connections.
type Hub struct {
	doc     *replica.Doc
	members *replica.Membership
	logf    func(format string, args ...any)

	mu      sync.Mutex
	clients map[*peerConn]bool

	register chan *peerConn
	unreg    chan *peerConn
	inbound  chan inbound
	done     chan struct{}
	stop     sync.Once
	cancels  []func()

	lastMu     sync.Mutex
	lastActive time.Time
}

// NewHub creates a hub for doc. Connected peers are joined to members for as
// long as their connection is open. logf may be nil.
func NewHub(doc *replica.Doc, members *replica.Membership, logf func(string, ...any)) *Hub {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	h := &Hub{
		doc:        doc,
		members:    members,
		logf:       logf,
		clients:    make(map[*peerConn]bool),
		register:   make(chan *peerConn),
		unreg:      make(chan *peerConn),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
	h.cancels = append(h.cancels,
		doc.OnUpdate(func(u replica.Update) {
			h.broadcast(updateEnvelope(u), nil)
		}),
		members.Observe(
			func(id string) { h.broadcast(Envelope{Type: TypePeers, Added: []string{id}}, nil) },
			func(id string) { h.broadcast(Envelope{Type: TypePeers, Removed: []string{id}}, nil) },
		),
	)
	return h
}

// Run processes connections until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer h.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case c := <-h.register:
			h.touch()
			h.mu.Lock()
			h.clients[c] = true
			c.send <- Envelope{Type: TypeHello, Peer: c.peer}
			h.mu.Unlock()

			h.sendTo(c, updateEnvelope(h.doc.Snapshot()))
			h.sendTo(c, Envelope{Type: TypePeers, Added: h.members.Peers()})
			h.members.Join(c.peer)
			h.logf("relay: %s connected", c.peer)

		case c := <-h.unreg:
			h.touch()
			if h.drop(c) {
				h.members.Leave(c.peer)
				h.logf("relay: %s disconnected", c.peer)
			}

		case in := <-h.inbound:
			h.touch()
			if in.env.Type != TypeUpdate || in.env.Update == nil {
				continue
			}
			h.doc.Apply(*in.env.Update)
			h.broadcast(in.env, in.from)
		}
	}
}

// ServeHTTP upgrades the request and serves one peer. The peer picks its ID
// with the peer query parameter; a random one is assigned otherwise.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	peer := r.URL.Query().Get("peer")
	if peer == "" {
		peer = uuid.NewString()
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("relay: upgrade: %v", err)
		return
	}
	c := &peerConn{ws: ws, send: make(chan Envelope, sendBuffer), peer: peer}

	select {
	case h.register <- c:
	case <-h.done:
		_ = ws.Close()
		return
	}
	go c.writePump()
	c.readPump(h)
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// LastActive returns when a peer last connected, disconnected or sent an update.
func (h *Hub) LastActive() time.Time {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()
	return h.lastActive
}

// Close disconnects every peer and stops Run.
func (h *Hub) Close() {
	h.stop.Do(func() {
		close(h.done)
		for _, cancel := range h.cancels {
			cancel()
		}
		h.mu.Lock()
		var gone []string
		for c := range h.clients {
			delete(h.clients, c)
			c.hangUp()
			gone = append(gone, c.peer)
		}
		h.mu.Unlock()
		for _, id := range gone {
			h.members.Leave(id)
		}
	})
}

func (h *Hub) touch() {
	h.lastMu.Lock()
	h.lastActive = time.Now()
	h.lastMu.Unlock()
}

// broadcast queues env for every connection except skip. A connection whose
// buffer is full is dropped rather than allowed to stall the room.
func (h *Hub) broadcast(env Envelope, skip *peerConn) {
	h.mu.Lock()
	var slow []*peerConn
	for c := range h.clients {
		if c == skip || c.gone {
			continue
		}
		select {
		case c.send <- env:
		default:
			c.hangUp()
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logf("relay: dropping slow peer %s", c.peer)
	}
}

func (h *Hub) sendTo(c *peerConn, env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] || c.gone {
		return
	}
	select {
	case c.send <- env:
	default:
		c.hangUp()
	}
}

// drop unregisters c and reports whether it was still registered. A slow
// connection stays registered after hangUp until its read side ends.
func (h *Hub) drop(c *peerConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return false
	}
	delete(h.clients, c)
	c.hangUp()
	return true
}

// hangUp closes the send side once, which makes writePump close the socket.
// Callers hold Hub.mu.
func (c *peerConn) hangUp() {
	if c.gone {
		return
	}
	c.gone = true
	close(c.send)
	_ = c.ws.Close()
}

func (c *peerConn) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		select {
		case h.inbound <- inbound{from: c, env: env}:
		case <-h.done:
			return
		}
	}
}

func (c *peerConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
