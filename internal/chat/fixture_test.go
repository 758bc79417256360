package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const directorySeed = `
friendships:
  - id: f1
    sender: alice
    receiver: bob
  - id: f2
    sender: carol
    receiver: alice
groups:
  - id: g1
    members: [alice, bob, carol]
`

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// tickClock advances one second per call so stored messages are ordered.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newService(t *testing.T, policy GroupPolicy) *Service {
	t.Helper()
	st := memory.New()
	dir := directory.NewMemory(st)
	require.NoError(t, dir.Seed(context.Background(), strings.NewReader(directorySeed)))
	svc, err := NewService(Options{
		Store:       st,
		Friendships: dir.Friendships(),
		Groups:      dir.Groups(),
		GroupPolicy: policy,
		Now:         (&tickClock{t: epoch}).Now,
	})
	require.NoError(t, err)
	return svc
}

func send(t *testing.T, svc *Service, from, connID, conversationID, content string) []Outbound {
	t.Helper()
	ctx := context.Background()
	origin := Origin{Username: from, ConnID: connID}
	p := SendPayload{ConversationID: conversationID, Message: OutgoingMessage{Content: content}}
	kind, err := svc.Participants().KindOf(ctx, from, conversationID)
	require.NoError(t, err)
	var out []Outbound
	if kind == "group" {
		out, err = svc.SendGroup(ctx, origin, p)
	} else {
		out, err = svc.SendPrivate(ctx, origin, p)
	}
	require.NoError(t, err)
	return out
}

// pushed collects the recipients of every outbound with the given event.
func pushed(out []Outbound, event string) []string {
	var to []string
	for _, o := range out {
		if o.Event == event {
			to = append(to, o.To...)
		}
	}
	return to
}

func contents(t *testing.T, svc *Service, conversationID, username string) []string {
	t.Helper()
	msgs, err := svc.Conversations.ListAll(context.Background(), conversationID, username)
	require.NoError(t, err)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
