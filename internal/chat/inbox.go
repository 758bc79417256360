package chat

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

// Inbox builds one preview per conversation of username. Unread counts the
// visible messages from other senders newer than the user's read cursor.
func (s *Service) Inbox(ctx context.Context, username string) ([]*ThreadPreview, error) {
	ids, err := s.participants.ConversationsOf(ctx, username)
	if err != nil {
		return nil, err
	}
	list := make([]*ThreadPreview, 0, len(ids))
	for _, id := range ids {
		p, err := s.preview(ctx, username, id)
		if err != nil {
			log.Warn("Skipping inbox thread", "user", username, "conversation", id, "err", err)
			continue
		}
		list = append(list, p)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].LastTs > list[j].LastTs })
	return list, nil
}

func (s *Service) preview(ctx context.Context, username, conversationID string) (*ThreadPreview, error) {
	kind, err := s.participants.KindOf(ctx, username, conversationID)
	if err != nil {
		return nil, err
	}
	p := &ThreadPreview{ThreadID: conversationID, Kind: kind, Title: conversationID}
	if kind == model.KindPrivate {
		if other, err := s.friends.CounterpartOf(ctx, username, conversationID); err == nil {
			p.Title = other
		}
	}

	msgs, err := s.Conversations.ListAll(ctx, conversationID, username)
	if err != nil {
		return nil, err
	}
	cursor, hasCursor, err := s.Cursors.Get(ctx, username, conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Sender != username && (!hasCursor || m.CreateTime.After(cursor)) {
			p.Unread++
		}
	}
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		p.LastBody, p.LastTs = last.Content, last.CreateTime.Unix()
	}
	return p, nil
}

// MarkRead moves username's cursor in the thread to now.
func (s *Service) MarkRead(ctx context.Context, username, threadID string) bool {
	return s.Cursors.Advance(ctx, username, threadID, s.now())
}
