// Package storetest is a conformance suite every store backend must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, sender, content string, offset time.Duration) model.Message {
	return model.Message{ID: id, Sender: sender, Content: content, CreateTime: base.Add(offset)}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("create log twice conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLog(ctx, "c1"))
		err := s.CreateLog(ctx, "c1")
		var conflict *store.ConflictError
		require.True(t, errors.As(err, &conflict), "got %v", err)
	})

	t.Run("append requires a log", func(t *testing.T) {
		s := newStore(t)
		err := s.AppendMessage(ctx, "missing", msg("m1", "alice", "hi", 0))
		require.ErrorIs(t, err, store.ErrConversationNotFound)
	})

	t.Run("append duplicate id conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLog(ctx, "c1"))
		require.NoError(t, s.CreateLog(ctx, "c2"))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m1", "alice", "first", 0)))

		err := s.AppendMessage(ctx, "c1", msg("m1", "bob", "second", time.Second))
		var conflict *store.ConflictError
		require.True(t, errors.As(err, &conflict), "got %v", err)

		// Ids are only unique within one conversation.
		require.NoError(t, s.AppendMessage(ctx, "c2", msg("m1", "bob", "elsewhere", 0)))

		all, err := s.Messages(ctx, "c1", model.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, "first", all[0].Content)

		require.NoError(t, s.IncrementRef(ctx, "c1", "m1"))
		got, err := s.GetMessage(ctx, "c1", "m1")
		require.NoError(t, err)
		require.Equal(t, "first", got.Content)
		require.EqualValues(t, 1, got.RefCount)
	})

	t.Run("messages are ordered and filtered", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLog(ctx, "c1"))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m2", "bob", "second", 2*time.Minute)))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m1", "alice", "First words", time.Minute)))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m3", "alice", "third", 3*time.Minute)))

		all, err := s.Messages(ctx, "c1", model.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m2", "m3"}, ids(all))

		start, end := base.Add(time.Minute), base.Add(2*time.Minute)
		ranged, err := s.Messages(ctx, "c1", model.Filter{Start: &start, End: &end})
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m2"}, ids(ranged))

		bySender, err := s.Messages(ctx, "c1", model.Filter{Sender: "alice"})
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m3"}, ids(bySender))

		byContent, err := s.Messages(ctx, "c1", model.Filter{Content: "first"})
		require.NoError(t, err)
		require.Equal(t, []string{"m1"}, ids(byContent))
	})

	t.Run("messages of unknown conversation", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Messages(ctx, "missing", model.Filter{})
		require.ErrorIs(t, err, store.ErrConversationNotFound)
	})

	t.Run("increment ref is targeted", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLog(ctx, "c1"))
		require.NoError(t, s.CreateLog(ctx, "c2"))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m1", "alice", "hi", 0)))
		require.NoError(t, s.AppendMessage(ctx, "c1", msg("m2", "bob", "yo", time.Second)))

		require.NoError(t, s.IncrementRef(ctx, "c1", "m1"))
		require.NoError(t, s.IncrementRef(ctx, "c1", "m1"))
		require.ErrorIs(t, s.IncrementRef(ctx, "c1", "nope"), store.ErrMessageNotFound)
		require.ErrorIs(t, s.IncrementRef(ctx, "c2", "m1"), store.ErrMessageNotFound)

		m1, err := s.GetMessage(ctx, "c1", "m1")
		require.NoError(t, err)
		require.EqualValues(t, 2, m1.RefCount)
		m2, err := s.GetMessage(ctx, "c1", "m2")
		require.NoError(t, err)
		require.EqualValues(t, 0, m2.RefCount)
	})

	t.Run("ref message round trips", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLog(ctx, "c1"))
		q := msg("m2", "bob", "agreed", time.Second)
		q.RefMessage = &model.RefBrief{MsgID: "m1", Content: "hi", Sender: "alice"}
		require.NoError(t, s.AppendMessage(ctx, "c1", q))

		got, err := s.GetMessage(ctx, "c1", "m2")
		require.NoError(t, err)
		require.Equal(t, q.RefMessage, got.RefMessage)
		require.True(t, q.CreateTime.Equal(got.CreateTime))

		_, err = s.GetMessage(ctx, "c1", "m9")
		require.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("hide is per list and idempotent", func(t *testing.T) {
		s := newStore(t)
		sender := model.ListKey{ConversationID: "c1", Side: model.SideSender}
		receiver := model.ListKey{ConversationID: "c1", Side: model.SideReceiver}
		require.NoError(t, s.Hide(ctx, sender, "m1"))
		require.NoError(t, s.Hide(ctx, sender, "m1"))

		hidden, err := s.Hidden(ctx, sender)
		require.NoError(t, err)
		require.Len(t, hidden, 1)
		require.Contains(t, hidden, "m1")

		other, err := s.Hidden(ctx, receiver)
		require.NoError(t, err)
		require.Empty(t, other)
	})

	t.Run("cursor set and read", func(t *testing.T) {
		s := newStore(t)
		key := model.ListKey{ConversationID: "g1", Side: model.SideMember, Member: "carol"}
		_, ok, err := s.Cursor(ctx, key)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.SetCursor(ctx, key, base.Add(time.Hour)))
		require.NoError(t, s.SetCursor(ctx, key, base))
		got, ok, err := s.Cursor(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, base.Equal(got), "cursors are last-write-wins, got %v", got)
	})
}
