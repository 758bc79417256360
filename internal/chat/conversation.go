package chat

import (
	"context"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

// Conversations is the append-only message log of every conversation. Listings
// are per caller: messages on the caller's delete list are left out.
type Conversations struct {
	logs       store.LogStore
	visibility *Visibility
}

func NewConversations(logs store.LogStore, visibility *Visibility) *Conversations {
	return &Conversations{logs: logs, visibility: visibility}
}

// CreateLog opens an empty log. A second call for the same id fails with a
// *store.ConflictError.
func (c *Conversations) CreateLog(ctx context.Context, conversationID string) error {
	return c.logs.CreateLog(ctx, conversationID)
}

// Append reports false together with ErrConversationNotFound when no log exists.
func (c *Conversations) Append(ctx context.Context, conversationID string, msg model.Message) (bool, error) {
	if err := c.logs.AppendMessage(ctx, conversationID, msg); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Conversations) ListAll(ctx context.Context, conversationID, username string) ([]model.Message, error) {
	return c.List(ctx, conversationID, username, model.Filter{})
}

// ListByTimeRange is inclusive on both ends.
func (c *Conversations) ListByTimeRange(ctx context.Context, conversationID, username string, start, end time.Time) ([]model.Message, error) {
	return c.List(ctx, conversationID, username, model.Filter{Start: &start, End: &end})
}

func (c *Conversations) ListBySender(ctx context.Context, conversationID, username, sender string) ([]model.Message, error) {
	return c.List(ctx, conversationID, username, model.Filter{Sender: sender})
}

func (c *Conversations) ListByContent(ctx context.Context, conversationID, username, text string) ([]model.Message, error) {
	return c.List(ctx, conversationID, username, model.Filter{Content: text})
}

// List returns the messages matching filter that username has not hidden.
func (c *Conversations) List(ctx context.Context, conversationID, username string, filter model.Filter) ([]model.Message, error) {
	key, err := c.visibility.ResolveList(ctx, conversationID, username)
	if err != nil {
		return nil, err
	}
	hidden, err := c.visibility.Hidden(ctx, key)
	if err != nil {
		return nil, err
	}
	msgs, err := c.logs.Messages(ctx, conversationID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !IsHidden(hidden, m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Conversations) IncrementRef(ctx context.Context, conversationID, msgID string) error {
	return c.logs.IncrementRef(ctx, conversationID, msgID)
}

func (c *Conversations) GetRef(ctx context.Context, conversationID, msgID string) (model.RefInfo, error) {
	m, err := c.logs.GetMessage(ctx, conversationID, msgID)
	if err != nil {
		return model.RefInfo{}, err
	}
	return model.RefInfo{RefCount: m.RefCount, RefMessage: m.RefMessage}, nil
}
