package hub

import (
	"sync"
	"time"

	"github.com/devconnect/realtime/src/types"
)

// DropPolicy controls what happens when a client's outbound queue is full.
type DropPolicy string

const (
	// DropNew discards the message being enqueued. This is the default:
	// the freshest state usually follows on the next update anyway.
	DropNew DropPolicy = "drop_new"

	// DropOldest discards the oldest queued message to make room.
	DropOldest DropPolicy = "drop_oldest"
)

// Client wraps one WebSocket connection and manages its message flow.
// Its outbound queue is bounded so a slow reader can never stall
// delivery to other clients.
type Client struct {
	handle      string
	namespace   types.Namespace
	conn        types.Conn
	hub         *Hub
	send        chan types.Envelope
	dropPolicy  DropPolicy
	connectedAt time.Time

	mu       sync.RWMutex
	identity types.Identity
	rooms    map[string]bool
	done     chan struct{}
	closed   bool
}

// NewClient creates a client for the given connection. identity may be the
// zero value for an anonymous connection.
func NewClient(handle string, identity types.Identity, ns types.Namespace, conn types.Conn, h *Hub) *Client {
	return &Client{
		handle:      handle,
		namespace:   ns,
		conn:        conn,
		hub:         h,
		send:        make(chan types.Envelope, h.sendBufSize),
		dropPolicy:  h.dropPolicy,
		connectedAt: time.Now(),
		identity:    identity,
		rooms:       make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Handle returns the opaque connection handle.
func (c *Client) Handle() string { return c.handle }

// Namespace returns the event catalog this connection speaks.
func (c *Client) Namespace() types.Namespace { return c.namespace }

// Identity returns the identity bound to this connection, if any.
func (c *Client) Identity() types.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) setIdentity(id types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return types.ClientInfo{
		Handle:      c.handle,
		Identity:    c.identity,
		Namespace:   c.namespace,
		ConnectedAt: c.connectedAt,
		Rooms:       rooms,
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// enqueue places env on the outbound queue without blocking. When the queue
// is full the configured drop policy decides which message is lost. Returns
// false if env itself was dropped.
func (c *Client) enqueue(env types.Envelope) bool {
	// Held across the sends so Close cannot close the channel mid-enqueue.
	// All sends below are non-blocking, so the lock is never held long.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- env:
		return true
	default:
	}

	if c.dropPolicy != DropOldest {
		return false
	}

	// Make room by discarding the oldest queued message. The second send
	// can still lose the race against the write pump; treat that as full.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// ReadPump reads envelopes from the WebSocket and routes them to the hub.
// It blocks until the connection closes and must run in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		// The sender handle and receive time are server-stamped;
		// whatever the client put there is discarded.
		env.From = c.handle
		env.Timestamp = time.Now()
		c.hub.incoming <- inbound{sender: c, env: env}
	}
}

// WritePump drains the outbound queue onto the WebSocket and keeps the
// connection alive with periodic pings. Runs in its own goroutine; it is the
// only writer for the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.send)
	}
}
