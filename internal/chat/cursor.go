package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

// Cursors tracks the last-read time of each participant. A cursor is stored
// under the same list key as the participant's delete list and is not forced
// to move forward: the last write wins.
type Cursors struct {
	visibility   *Visibility
	participants *Participants
	presence     *Presence
	store        store.CursorStore
}

func NewCursors(visibility *Visibility, participants *Participants, presence *Presence, st store.CursorStore) *Cursors {
	return &Cursors{visibility: visibility, participants: participants, presence: presence, store: st}
}

// Advance sets username's cursor in one conversation. It reports false when the
// user has no context there or the write fails.
func (c *Cursors) Advance(ctx context.Context, username, conversationID string, t time.Time) bool {
	key, err := c.visibility.ResolveList(ctx, conversationID, username)
	if err != nil {
		log.Debug("No cursor context", "user", username, "conversation", conversationID, "err", err)
		return false
	}
	if err := c.store.SetCursor(ctx, key, t); err != nil {
		log.Error("Failed to set cursor", "key", key, "err", err)
		return false
	}
	return true
}

// AdvanceAll sets the cursor in every conversation of username and returns the
// ids that were updated. Updates are independent; a failure skips one id.
func (c *Cursors) AdvanceAll(ctx context.Context, username string, t time.Time) []string {
	ids, err := c.participants.ConversationsOf(ctx, username)
	if err != nil {
		log.Error("Failed to list conversations", "user", username, "err", err)
		return nil
	}
	updated := make([]string, 0, len(ids))
	for _, id := range ids {
		if c.Advance(ctx, username, id, t) {
			updated = append(updated, id)
		}
	}
	return updated
}

// Get returns username's cursor; ok is false when none was set.
func (c *Cursors) Get(ctx context.Context, username, conversationID string) (time.Time, bool, error) {
	key, err := c.visibility.ResolveList(ctx, conversationID, username)
	if err != nil {
		return time.Time{}, false, err
	}
	return c.store.Cursor(ctx, key)
}

// BroadcastCursor tells the live connections of every other participant of
// each conversation where username's cursor now is.
func (c *Cursors) BroadcastCursor(ctx context.Context, username string, t time.Time, conversationIDs []string) []Outbound {
	var out []Outbound
	for _, id := range conversationIDs {
		others, err := c.participants.Others(ctx, username, id)
		if err != nil {
			log.Debug("Skipping cursor broadcast", "conversation", id, "err", err)
			continue
		}
		var to []string
		for _, u := range others {
			to = append(to, c.presence.ConnectionsFor(u)...)
		}
		if len(to) == 0 {
			continue
		}
		out = append(out, Outbound{
			To:    to,
			Event: EventUpdateMemberCursor,
			Data:  MemberCursorEvent{Username: username, ConversationID: id, Time: t},
		})
	}
	return out
}
