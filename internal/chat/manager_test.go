package chat

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	out    [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, data := range f.out {
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		out = append(out, env.Event)
	}
	return out
}

type recorder struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func (r *recorder) Record(_ context.Context, username string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]time.Time{}
	}
	r.seen[username] = at
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) LastSeen(_ context.Context, username string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.seen[username]
	return at, ok, nil
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return b
}

func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatalf("nothing queued for %s", c.Id)
	}
	return Envelope{}
}

func TestDispatchSendPrivate(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	ctx := context.Background()

	alice := m.NewClient(nil, "alice")
	bob := m.NewClient(nil, "bob")
	m.Register(alice)
	m.Register(bob)

	m.Dispatch(ctx, alice, frame(t, EventSendPrivate, SendPayload{ConversationID: "f1", Message: OutgoingMessage{Content: "yo"}}))

	require.Equal(t, EventSendSuccess, recv(t, alice).Event)
	env := recv(t, bob)
	require.Equal(t, EventPrivateChat, env.Event)
	var ev ChatEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.Equal(t, "yo", ev.Message.Content)
	require.Equal(t, "alice", ev.Message.Sender)
}

func TestDispatchErrors(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	ctx := context.Background()
	anon := m.NewClient(nil, "")
	m.Register(anon)

	m.Dispatch(ctx, anon, []byte("not json"))
	require.Equal(t, EventError, recv(t, anon).Event)

	m.Dispatch(ctx, anon, frame(t, "dance", struct{}{}))
	env := recv(t, anon)
	var ev ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.Equal(t, "dance", ev.Event)

	m.Dispatch(ctx, anon, frame(t, EventSendPrivate, SendPayload{ConversationID: "f1"}))
	require.NoError(t, json.Unmarshal(recv(t, anon).Data, &ev))
	require.Equal(t, ErrNotIdentified.Error(), ev.Error)
}

func TestIdentifyRegistersPresence(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	c := m.NewClient(nil, "")
	m.Register(c)
	require.Empty(t, m.ListClients(""))

	m.Dispatch(context.Background(), c, frame(t, EventIdentify, IdentifyPayload{Username: "carol"}))
	require.Equal(t, []string{c.Id}, svc.Presence.ConnectionsFor("carol"))
	require.Equal(t, []ClientJson{{Id: c.Id, Name: "carol"}}, m.ListClients(""))
	require.Empty(t, m.ListClients("carol"))
}

func TestIdentifyCannotRebind(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	ctx := context.Background()
	carol := m.NewClient(nil, "carol")
	m.Register(carol)

	m.Dispatch(ctx, carol, frame(t, EventIdentify, IdentifyPayload{Username: "bob"}))
	env := recv(t, carol)
	require.Equal(t, EventError, env.Event)
	var ev ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.Equal(t, ErrIdentityMismatch.Error(), ev.Error)
	require.Equal(t, "carol", carol.Name())
	require.False(t, svc.Presence.IsOnline("bob"))

	// Still carol, so the friendship between alice and bob stays closed.
	m.Dispatch(ctx, carol, frame(t, EventSendPrivate, SendPayload{ConversationID: "f1", Message: OutgoingMessage{Content: "forged"}}))
	require.Equal(t, EventError, recv(t, carol).Event)
	require.Empty(t, contents(t, svc, "f1", "alice"))

	// Repeating the own name is accepted.
	m.Dispatch(ctx, carol, frame(t, EventIdentify, IdentifyPayload{Username: "carol"}))
	require.Empty(t, carol.Send)
}

func TestIdentifyBindsOnce(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	ctx := context.Background()
	c := m.NewClient(nil, "")
	m.Register(c)

	m.Dispatch(ctx, c, frame(t, EventIdentify, IdentifyPayload{Username: "alice"}))
	require.Empty(t, c.Send)
	m.Dispatch(ctx, c, frame(t, EventIdentify, IdentifyPayload{Username: "bob"}))
	require.Equal(t, EventError, recv(t, c).Event)
	require.Equal(t, "alice", c.Name())
	require.Equal(t, []string{c.Id}, svc.Presence.ConnectionsFor("alice"))
	require.Nil(t, svc.Presence.ConnectionsFor("bob"))
}

func TestListClientsShowsRooms(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 4)
	ctx := context.Background()
	alice := m.NewClient(nil, "alice")
	bob := m.NewClient(nil, "bob")
	m.Register(alice)
	m.Register(bob)

	m.Dispatch(ctx, alice, frame(t, EventJoinGroup, JoinPayload{GroupID: "g1"}))
	require.Equal(t, []ClientJson{
		{Id: alice.Id, Name: "alice", Rooms: []string{"group/g1"}},
		{Id: bob.Id, Name: "bob"},
	}, m.ListClients(""))

	require.Equal(t, []string{"alice", "bob"}, m.OnlineUsers(""))
	require.Equal(t, []string{"bob"}, m.OnlineUsers("alice"))
}

func TestDeliverDropsWhenFull(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	m := NewManager(svc, nil, 1)
	c := m.NewClient(nil, "alice")
	m.Register(c)

	out := []Outbound{{To: []string{c.Id, "gone"}, Event: EventGroupChat, Data: "x"}}
	m.Deliver(out)
	m.Deliver(out) // queue full, skipped
	recv(t, c)
	require.Empty(t, c.Send)
}

func TestServeLifecycle(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	rec := &recorder{}
	m := NewManager(svc, rec, 8)
	ctx := context.Background()

	conn := newFakeConn()
	c := m.NewClient(conn, "alice")
	done := make(chan struct{})
	go func() {
		m.Serve(ctx, c)
		close(done)
	}()

	conn.in <- frame(t, EventJoinPrivate, JoinPayload{ConversationID: "f1"})
	conn.in <- frame(t, EventSendPrivate, SendPayload{ConversationID: "f1", Message: OutgoingMessage{Content: "bye"}})
	close(conn.in)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	select {
	case <-conn.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed")
	}

	require.Equal(t, []string{EventSendSuccess}, conn.events(t))
	require.False(t, svc.Presence.IsOnline("alice"))
	require.Empty(t, svc.Rooms.RoomsOf(c.Id))
	_, ok, err := rec.LastSeen(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	// Unregistering twice is harmless.
	m.Unregister(ctx, c)
}
