package chat

import (
	"context"
	"fmt"

	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

// HiddenSet is a participant's tombstones, keyed by message id.
type HiddenSet map[string]struct{}

// IsHidden is an O(1) membership test.
func IsHidden(set HiddenSet, msgID string) bool {
	_, ok := set[msgID]
	return ok
}

// Visibility resolves which delete list governs a participant and mutates it.
type Visibility struct {
	friends directory.Friendships
	groups  directory.Groups
	store   store.VisibilityStore
}

func NewVisibility(friends directory.Friendships, groups directory.Groups, st store.VisibilityStore) *Visibility {
	return &Visibility{friends: friends, groups: groups, store: st}
}

// ResolveList returns the friendship side for private conversations and the
// member's own list for groups. The same key addresses the participant's cursor.
func (v *Visibility) ResolveList(ctx context.Context, conversationID, username string) (model.ListKey, error) {
	role, err := v.friends.RoleOf(ctx, username, conversationID)
	if err != nil {
		return model.ListKey{}, fmt.Errorf("resolve friendship role: %w", err)
	}
	switch role {
	case model.RoleSender:
		return model.ListKey{ConversationID: conversationID, Side: model.SideSender}, nil
	case model.RoleReceiver:
		return model.ListKey{ConversationID: conversationID, Side: model.SideReceiver}, nil
	}
	role, err = v.groups.RoleOf(ctx, username, conversationID)
	if err != nil {
		return model.ListKey{}, fmt.Errorf("resolve group role: %w", err)
	}
	if role == model.RoleMember {
		return model.ListKey{ConversationID: conversationID, Side: model.SideMember, Member: username}, nil
	}
	return model.ListKey{}, ErrNoVisibilityContext
}

// Hide hides msgID from username only.
func (v *Visibility) Hide(ctx context.Context, conversationID, username, msgID string) error {
	key, err := v.ResolveList(ctx, conversationID, username)
	if err != nil {
		return err
	}
	return v.store.Hide(ctx, key, msgID)
}

func (v *Visibility) Hidden(ctx context.Context, key model.ListKey) (HiddenSet, error) {
	set, err := v.store.Hidden(ctx, key)
	if err != nil {
		return nil, err
	}
	return HiddenSet(set), nil
}
