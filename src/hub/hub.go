package hub

import (
	"sync"
	"time"

	"github.com/devconnect/realtime/src/types"
	"github.com/rs/zerolog"
)

// MessageBridge publishes room broadcasts to other server instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(env types.Envelope) error
	Available() bool
}

// Options tunes per-client delivery behavior.
type Options struct {
	// SendBufferSize is the per-client outbound queue depth.
	SendBufferSize int
	// DropPolicy decides which message is lost when the queue is full.
	DropPolicy DropPolicy
	// PingInterval is how often the write pump pings the peer.
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.DropPolicy == "" {
		o.DropPolicy = DropNew
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// Hub owns all shared real-time state: the set of live connections, the
// identity registry, and room memberships. Connection lifecycle and inbound
// envelopes flow through the Run loop; the maps themselves are guarded by
// the mutex so queries and relays can run from any goroutine.
type Hub struct {
	clients    map[string]*Client          // connection handle -> client
	identities map[types.Identity]string   // identity -> connection handle
	rooms      map[string]map[string]bool  // room id -> set of handles

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound
	localCast  chan types.Envelope // envelopes from the bridge, no re-publish

	handlers  map[types.Namespace]map[types.EventKind]types.Handler
	onConnect []func(string)
	onDisconn []func(string)

	bridge       MessageBridge
	mu           sync.RWMutex
	logger       zerolog.Logger
	done         chan struct{}
	sendBufSize  int
	dropPolicy   DropPolicy
	pingInterval time.Duration
}

type inbound struct {
	sender *Client
	env    types.Envelope
}

// New creates a Hub with the given options.
func New(logger zerolog.Logger, opts Options) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		clients:      make(map[string]*Client),
		identities:   make(map[types.Identity]string),
		rooms:        make(map[string]map[string]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		incoming:     make(chan inbound, 256),
		localCast:    make(chan types.Envelope, 256),
		handlers:     make(map[types.Namespace]map[types.EventKind]types.Handler),
		logger:       logger,
		done:         make(chan struct{}),
		sendBufSize:  opts.SendBufferSize,
		dropPolicy:   opts.DropPolicy,
		pingInterval: opts.PingInterval,
	}
}

// SetBridge attaches a cross-instance message bridge to the hub. When set,
// room broadcasts are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// RegisterHandler registers a handler for one event kind in a namespace.
func (h *Hub) RegisterHandler(ns types.Namespace, ev types.EventKind, fn types.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers[ns] == nil {
		h.handlers[ns] = make(map[types.EventKind]types.Handler)
	}
	h.handlers[ns][ev] = fn
}

// OnConnection registers a callback for new connections.
func (h *Hub) OnConnection(cb func(handle string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, cb)
}

// OnDisconnection registers a callback invoked after a connection and all
// of its room memberships have been torn down.
func (h *Hub) OnDisconnection(cb func(handle string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconn = append(h.onDisconn, cb)
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.incoming:
			h.dispatch(in)
		case env := <-h.localCast:
			// Bridge traffic: the sender lives on another instance,
			// so every local room member receives it.
			h.broadcastLocal(env.Room, "", env)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop halts the hub event loop and closes all connections.
func (h *Hub) Stop() {
	close(h.done)
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// BroadcastToLocal delivers an envelope from the bridge to local room
// members only. It does not re-publish, preventing infinite loops.
func (h *Hub) BroadcastToLocal(env types.Envelope) {
	h.localCast <- env
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.handle] = c
	registered := false
	if id := c.Identity(); !id.Anonymous() {
		// Last connect wins: a reconnect from a new tab displaces the
		// previous mapping without closing the old connection.
		h.identities[id] = c.handle
		registered = true
	}
	h.mu.Unlock()

	h.logger.Info().
		Str("handle", c.handle).
		Str("namespace", string(c.namespace)).
		Str("identity", string(c.Identity())).
		Msg("client registered")

	if registered {
		h.announcePresence()
	}
	for _, cb := range h.onConnect {
		cb(c.handle)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.handle]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.handle)

	// Release the identity mapping only if this connection still owns it;
	// a stale disconnect must never evict a newer connection's entry.
	released := false
	if id := c.Identity(); !id.Anonymous() && h.identities[id] == c.handle {
		delete(h.identities, id)
		released = true
	}

	// Drop the connection from every room, evicting rooms left empty.
	for room, members := range h.rooms {
		if members[c.handle] {
			delete(members, c.handle)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	c.Close()
	h.logger.Info().Str("handle", c.handle).Msg("client unregistered")

	if released {
		h.announcePresence()
	}
	for _, cb := range h.onDisconn {
		cb(c.handle)
	}
}

func (h *Hub) dispatch(in inbound) {
	h.mu.RLock()
	var handler types.Handler
	if m := h.handlers[in.sender.namespace]; m != nil {
		handler = m[in.env.Event]
	}
	h.mu.RUnlock()

	if handler == nil {
		h.logger.Debug().
			Str("namespace", string(in.sender.namespace)).
			Str("event", string(in.env.Event)).
			Msg("no handler for event")
		return
	}
	if err := handler(in.sender.handle, in.env); err != nil {
		h.logger.Warn().Err(err).
			Str("handle", in.sender.handle).
			Str("event", string(in.env.Event)).
			Msg("envelope rejected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.identities = make(map[types.Identity]string)
	h.rooms = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
