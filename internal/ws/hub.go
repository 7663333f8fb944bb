package ws

import (
	"encoding/json"
	"sort"
	"sync"

	"inmopresence/internal/domain"
	"inmopresence/internal/metrics"

	"github.com/google/uuid"
)

// TrackedAgent is one entry in the channel's membership set. Liveness is
// the connection itself, not the timestamp; TrackedAt is informational.
type TrackedAgent struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Whatsapp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	TrackedAt int64     `json:"ts"`
}

// Client represents a single websocket subscriber. UserID is Nil for
// anonymous read-only subscribers (the public widget).
type Client struct {
	UserID uuid.UUID
	Role   string
	Email  string
	Send   chan []byte

	hub      *Hub
	mu       sync.Mutex
	closed   bool
	tracking bool
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()
	if c.hub != nil {
		c.hub.drop(c)
	}
}

// Hub maintains the agents-online channel: the subscriber set plus the
// tracked membership map. Every membership change fans a full sync frame
// out to all subscribers, so no client has to diff incremental events.
type Hub struct {
	mu sync.RWMutex
	// all connected subscribers, tracking or not
	clients map[*Client]struct{}
	// userID -> connections currently tracking that user (two tabs share
	// one membership entry)
	trackers map[uuid.UUID]map[*Client]struct{}
	// userID -> last tracked payload (last write wins)
	tracked map[uuid.UUID]TrackedAgent

	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		trackers: make(map[uuid.UUID]map[*Client]struct{}),
		tracked:  make(map[uuid.UUID]TrackedAgent),
		metrics:  m,
	}
}

// Register adds a subscriber and sends it the current membership set so
// it does not have to wait for the next change.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	c.hub = h
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ChannelSubscribers.Set(float64(n))
	}
	h.sendTo(c, h.syncFrame())
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	changed := h.removeTrackerLocked(c)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ChannelSubscribers.Set(float64(n))
	}
	if changed {
		h.broadcastSync()
	}
}

// Track adds or refreshes the client's membership entry. Only
// authenticated clients with a publicly visible role may track; the
// caller is responsible for having stamped identity fields from verified
// claims. Same user in two tabs: one entry, last payload wins.
func (h *Hub) Track(c *Client, agent TrackedAgent) {
	if c.UserID == uuid.Nil || !domain.RoleVisible(c.Role) {
		return
	}
	h.mu.Lock()
	if h.trackers[c.UserID] == nil {
		h.trackers[c.UserID] = make(map[*Client]struct{})
	}
	h.trackers[c.UserID][c] = struct{}{}
	h.tracked[c.UserID] = agent
	c.tracking = true
	h.mu.Unlock()

	h.broadcastSync()
}

// Untrack removes this connection from the membership set without
// disconnecting it (tab hidden). The entry survives while another tab of
// the same user still tracks.
func (h *Hub) Untrack(c *Client) {
	h.mu.Lock()
	changed := h.removeTrackerLocked(c)
	h.mu.Unlock()
	if changed {
		h.broadcastSync()
	}
}

// UntrackUser force-removes a user's membership on every connection.
// Used when the durable path records an explicit offline: the explicit
// signal overrides channel membership.
func (h *Hub) UntrackUser(userID uuid.UUID) {
	h.mu.Lock()
	conns, ok := h.trackers[userID]
	if ok {
		for c := range conns {
			c.tracking = false
		}
		delete(h.trackers, userID)
		delete(h.tracked, userID)
	}
	h.mu.Unlock()
	if ok {
		h.broadcastSync()
	}
}

// removeTrackerLocked unlinks the connection and reports whether the
// membership set changed. Caller holds h.mu.
func (h *Hub) removeTrackerLocked(c *Client) bool {
	if !c.tracking {
		return false
	}
	c.tracking = false
	conns := h.trackers[c.UserID]
	if conns == nil {
		return false
	}
	delete(conns, c)
	if len(conns) > 0 {
		return false
	}
	delete(h.trackers, c.UserID)
	delete(h.tracked, c.UserID)
	return true
}

// Snapshot returns the current membership, super_admin first, newest
// track first within a tier.
func (h *Hub) Snapshot() []TrackedAgent {
	h.mu.RLock()
	agents := make([]TrackedAgent, 0, len(h.tracked))
	for _, a := range h.tracked {
		agents = append(agents, a)
	}
	h.mu.RUnlock()

	sort.SliceStable(agents, func(i, j int) bool {
		ri, rj := domain.RoleRank(agents[i].Role), domain.RoleRank(agents[j].Role)
		if ri != rj {
			return ri < rj
		}
		return agents[i].TrackedAt > agents[j].TrackedAt
	})
	return agents
}

// Broadcast marshals the payload and fans it out to every subscriber.
// Slow consumers are skipped rather than blocking the channel.
func (h *Hub) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.sendBytes(c, data)
	}
}

func (h *Hub) broadcastSync() {
	h.Broadcast(h.syncFrame())
}

func (h *Hub) syncFrame() map[string]interface{} {
	return map[string]interface{}{
		"type":    "sync",
		"channel": domain.AgentsChannel,
		"agents":  h.Snapshot(),
	}
}

func (h *Hub) sendTo(c *Client, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.sendBytes(c, data)
}

func (h *Hub) sendBytes(c *Client, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
