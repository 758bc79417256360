package chat

import (
	"context"
	"fmt"

	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

// Participants answers membership questions across friendships and groups.
type Participants struct {
	friends directory.Friendships
	groups  directory.Groups
}

func NewParticipants(friends directory.Friendships, groups directory.Groups) *Participants {
	return &Participants{friends: friends, groups: groups}
}

// KindOf returns the kind of conversation username takes part in, or
// ErrNoVisibilityContext when they take part in none with that id.
func (p *Participants) KindOf(ctx context.Context, username, conversationID string) (model.Kind, error) {
	role, err := p.friends.RoleOf(ctx, username, conversationID)
	if err != nil {
		return "", err
	}
	if role == model.RoleSender || role == model.RoleReceiver {
		return model.KindPrivate, nil
	}
	role, err = p.groups.RoleOf(ctx, username, conversationID)
	if err != nil {
		return "", err
	}
	if role == model.RoleMember {
		return model.KindGroup, nil
	}
	return "", ErrNoVisibilityContext
}

// Require checks username takes part in a conversation of the given kind.
func (p *Participants) Require(ctx context.Context, username, conversationID string, kind model.Kind) error {
	got, err := p.KindOf(ctx, username, conversationID)
	if err != nil {
		return err
	}
	if got != kind {
		return fmt.Errorf("%s is not a %s conversation: %w", conversationID, kind, ErrNoVisibilityContext)
	}
	return nil
}

// Others returns every participant of the conversation except username.
func (p *Participants) Others(ctx context.Context, username, conversationID string) ([]string, error) {
	kind, err := p.KindOf(ctx, username, conversationID)
	if err != nil {
		return nil, err
	}
	if kind == model.KindPrivate {
		other, err := p.friends.CounterpartOf(ctx, username, conversationID)
		if err != nil {
			return nil, err
		}
		return []string{other}, nil
	}
	members, err := p.groups.MembersOf(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != username {
			out = append(out, m)
		}
	}
	return out, nil
}

// ConversationsOf lists the user's private conversations followed by their groups.
func (p *Participants) ConversationsOf(ctx context.Context, username string) ([]string, error) {
	private, err := p.friends.ConversationsOf(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	groups, err := p.groups.GroupsOf(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return append(private, groups...), nil
}
