package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pelusa-v/yummy-chat/internal/lastseen"
	"github.com/pelusa-v/yummy-chat/internal/metrics"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) ([]Outbound, error)

// Manager owns the live clients, routes inbound events to the service and
// applies the pushes it returns.
type Manager struct {
	mu      sync.RWMutex
	Clients map[string]*Client // id -> client

	svc        *Service
	lastSeen   lastseen.Recorder
	sendBuffer int
	handlers   map[string]handlerFunc
	now        func() time.Time
}

func NewManager(svc *Service, lastSeen lastseen.Recorder, sendBuffer int) *Manager {
	if lastSeen == nil {
		lastSeen = lastseen.Noop{}
	}
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	m := &Manager{
		Clients:    map[string]*Client{},
		svc:        svc,
		lastSeen:   lastSeen,
		sendBuffer: sendBuffer,
		now:        time.Now,
	}
	m.handlers = map[string]handlerFunc{
		EventIdentify:        m.onIdentify,
		EventJoinPrivate:     m.onJoin(model.KindPrivate),
		EventJoinGroup:       m.onJoin(model.KindGroup),
		EventSendPrivate:     m.onSend(svc.SendPrivate),
		EventSendGroup:       m.onSend(svc.SendGroup),
		EventSetReadCursor:   m.onCursor(svc.SetReadCursor),
		EventSetGlobalCursor: m.onCursor(svc.SetGlobalCursor),
	}
	return m
}

// NewClient creates a client for conn. username may be empty when the
// connection identifies later.
func (m *Manager) NewClient(conn ConnLike, username string) *Client {
	return &Client{
		Id:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, m.sendBuffer),
		name:    username,
		manager: m,
	}
}

// Register makes c reachable. It completes before the first dispatch.
func (m *Manager) Register(c *Client) {
	m.mu.Lock()
	m.Clients[c.Id] = c
	m.mu.Unlock()
	if name := c.Name(); name != "" {
		m.svc.Presence.Register(name, c.Id)
	}
	log.Info("Client connected", "conn", c.Id, "user", c.Name())
}

// Unregister removes c, closes its send queue and records the last-seen time
// once the user's last connection is gone.
func (m *Manager) Unregister(ctx context.Context, c *Client) {
	m.mu.Lock()
	if _, ok := m.Clients[c.Id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.Clients, c.Id)
	close(c.Send)
	m.mu.Unlock()

	m.svc.Rooms.LeaveAll(c.Id)
	name := c.Name()
	if name == "" {
		return
	}
	m.svc.Presence.Unregister(name, c.Id)
	if !m.svc.Presence.IsOnline(name) {
		if err := m.lastSeen.Record(ctx, name, m.now()); err != nil {
			log.Warn("Failed to record last seen", "user", name, "err", err)
		}
	}
	log.Info("Client disconnected", "conn", c.Id, "user", name)
}

// Serve runs c until its connection closes.
func (m *Manager) Serve(ctx context.Context, c *Client) {
	m.Register(c)
	go c.WritePump()
	c.ReadPump(ctx)
	m.Unregister(ctx, c)
}

// Dispatch handles one inbound frame. Failures are reported to c as an error event.
func (m *Manager) Dispatch(ctx context.Context, c *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.Deliver([]Outbound{errorTo(c, "", err)})
		return
	}
	h, ok := m.handlers[env.Event]
	if !ok {
		m.Deliver([]Outbound{errorTo(c, env.Event, errors.New("unknown event"))})
		return
	}
	out, err := h(ctx, c, env.Data)
	if err != nil {
		log.Debug("Event failed", "event", env.Event, "conn", c.Id, "user", c.Name(), "err", err)
		out = append(out, errorTo(c, env.Event, err))
	}
	m.Deliver(out)
}

func errorTo(c *Client, event string, err error) Outbound {
	return Outbound{To: []string{c.Id}, Event: EventError, Data: ErrorEvent{Event: event, Error: err.Error()}}
}

// Deliver pushes each outbound event without blocking. Unknown connections and
// full queues are skipped.
func (m *Manager) Deliver(out []Outbound) {
	for _, o := range out {
		data, err := json.Marshal(struct {
			Event string `json:"event"`
			Data  any    `json:"data"`
		}{o.Event, o.Data})
		if err != nil {
			log.Error("Failed to encode event", "event", o.Event, "err", err)
			continue
		}
		m.mu.RLock()
		for _, id := range o.To {
			c, ok := m.Clients[id]
			if !ok {
				metrics.Pushes.WithLabelValues(o.Event, "dropped").Inc()
				continue
			}
			select {
			case c.Send <- data:
				metrics.Pushes.WithLabelValues(o.Event, "delivered").Inc()
			default:
				metrics.Pushes.WithLabelValues(o.Event, "dropped").Inc()
			}
		}
		m.mu.RUnlock()
	}
}

func (m *Manager) onIdentify(_ context.Context, c *Client, data json.RawMessage) ([]Outbound, error) {
	var p IdentifyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, ErrNotIdentified
	}
	if !c.bindName(p.Username) {
		return nil, ErrIdentityMismatch
	}
	m.svc.Presence.Register(p.Username, c.Id)
	return nil, nil
}

func (m *Manager) onJoin(kind model.Kind) handlerFunc {
	return func(ctx context.Context, c *Client, data json.RawMessage) ([]Outbound, error) {
		var p JoinPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		id := p.ConversationID
		if kind == model.KindGroup && p.GroupID != "" {
			id = p.GroupID
		}
		return nil, m.svc.Join(ctx, c.origin(), kind, id)
	}
}

func (m *Manager) onSend(send func(context.Context, Origin, SendPayload) ([]Outbound, error)) handlerFunc {
	return func(ctx context.Context, c *Client, data json.RawMessage) ([]Outbound, error) {
		var p SendPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return send(ctx, c.origin(), p)
	}
}

func (m *Manager) onCursor(set func(context.Context, Origin, CursorPayload) ([]Outbound, error)) handlerFunc {
	return func(ctx context.Context, c *Client, data json.RawMessage) ([]Outbound, error) {
		var p CursorPayload
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, err
			}
		}
		return set(ctx, c.origin(), p)
	}
}

// ClientJson is one entry of the online list.
type ClientJson struct {
	Id    string   `json:"id"`
	Name  string   `json:"name"`
	Rooms []string `json:"rooms,omitempty"`
}

// OnlineUsers lists users with at least one live connection, minus exclude.
func (m *Manager) OnlineUsers(exclude string) []string {
	users := m.svc.Presence.Online()
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u != exclude {
			out = append(out, u)
		}
	}
	return out
}

// ListClients lists identified clients, excluding a connection id or username.
func (m *Manager) ListClients(exclude string) []ClientJson {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClientJson, 0, len(m.Clients))
	for id, c := range m.Clients {
		name := c.Name()
		if name == "" || (exclude != "" && (exclude == id || exclude == name)) {
			continue
		}
		cj := ClientJson{Id: id, Name: name}
		if rooms := m.svc.Rooms.RoomsOf(id); len(rooms) > 0 {
			cj.Rooms = rooms
		}
		out = append(out, cj)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Id < out[j].Id
		}
		return out[i].Name < out[j].Name
	})
	return out
}
