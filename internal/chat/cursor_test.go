package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()

	require.False(t, svc.Cursors.Advance(ctx, "carol", "f1", epoch))
	require.True(t, svc.Cursors.Advance(ctx, "bob", "f1", epoch))

	got, ok, err := svc.Cursors.Get(ctx, "bob", "f1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(epoch))

	// Last write wins, even backwards.
	require.True(t, svc.Cursors.Advance(ctx, "bob", "f1", epoch.Add(-time.Hour)))
	got, _, err = svc.Cursors.Get(ctx, "bob", "f1")
	require.NoError(t, err)
	require.True(t, got.Equal(epoch.Add(-time.Hour)))

	_, ok, err = svc.Cursors.Get(ctx, "alice", "f1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSendAdvancesSenderCursor(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()
	out := send(t, svc, "alice", "a1", "g1", "hi")
	msg := out[0].Data.(ChatEvent).Message

	got, ok, err := svc.Cursors.Get(ctx, "alice", "g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(msg.CreateTime))

	_, ok, err = svc.Cursors.Get(ctx, "bob", "g1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAdvanceAll(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()
	ids := svc.Cursors.AdvanceAll(ctx, "alice", epoch)
	require.ElementsMatch(t, []string{"f1", "f2", "g1"}, ids)

	for _, id := range ids {
		got, ok, err := svc.Cursors.Get(ctx, "alice", id)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, got.Equal(epoch))
	}
	require.Empty(t, svc.Cursors.AdvanceAll(ctx, "nobody", epoch))
}

func TestSetReadCursorBroadcast(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()
	svc.Presence.Register("alice", "a1")
	svc.Presence.Register("bob", "b1")
	svc.Presence.Register("bob", "b2")
	svc.Presence.Register("carol", "c1")

	out, err := svc.SetReadCursor(ctx, Origin{Username: "alice", ConnID: "a1"}, CursorPayload{ConversationID: "f1", Time: epoch})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.ElementsMatch(t, []string{"b1", "b2"}, out[0].To)
	require.Equal(t, MemberCursorEvent{Username: "alice", ConversationID: "f1", Time: epoch}, out[0].Data)

	_, err = svc.SetReadCursor(ctx, Origin{Username: "carol", ConnID: "c1"}, CursorPayload{ConversationID: "f1", Time: epoch})
	require.ErrorIs(t, err, ErrNoVisibilityContext)
}

func TestSetGlobalCursorBroadcast(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()
	svc.Presence.Register("bob", "b1")
	svc.Presence.Register("carol", "c1")

	out, err := svc.SetGlobalCursor(ctx, Origin{Username: "alice", ConnID: "a1"}, CursorPayload{Time: epoch})
	require.NoError(t, err)

	byConversation := map[string][]string{}
	for _, o := range out {
		require.Equal(t, EventUpdateMemberCursor, o.Event)
		ev := o.Data.(MemberCursorEvent)
		byConversation[ev.ConversationID] = o.To
	}
	require.Equal(t, []string{"b1"}, byConversation["f1"])
	require.Equal(t, []string{"c1"}, byConversation["f2"])
	require.ElementsMatch(t, []string{"b1", "c1"}, byConversation["g1"])
}

func TestInbox(t *testing.T) {
	svc := newService(t, GroupPolicyAll)
	ctx := context.Background()
	send(t, svc, "bob", "b1", "f1", "ping")
	send(t, svc, "bob", "b1", "f1", "ping again")
	send(t, svc, "carol", "c1", "g1", "group hello")

	list, err := svc.Inbox(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)

	threads := map[string]*ThreadPreview{}
	for _, p := range list {
		threads[p.ThreadID] = p
	}
	require.Equal(t, "g1", list[0].ThreadID)
	require.Equal(t, 2, threads["f1"].Unread)
	require.Equal(t, "bob", threads["f1"].Title)
	require.Equal(t, "ping again", threads["f1"].LastBody)
	require.Equal(t, 1, threads["g1"].Unread)
	require.Equal(t, "carol", threads["f2"].Title)
	require.Zero(t, threads["f2"].Unread)

	require.True(t, svc.MarkRead(ctx, "alice", "f1"))
	list, err = svc.Inbox(ctx, "alice")
	require.NoError(t, err)
	for _, p := range list {
		if p.ThreadID == "f1" {
			require.Zero(t, p.Unread)
		}
	}

	// The sender's own messages never count as unread.
	list, err = svc.Inbox(ctx, "bob")
	require.NoError(t, err)
	for _, p := range list {
		if p.ThreadID == "f1" {
			require.Zero(t, p.Unread)
		}
	}
}
