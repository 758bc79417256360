// Package directory is the read side of the friendship and group services.
// Membership CRUD lives elsewhere; the chat core only asks who participates.
package directory

import (
	"context"
	"errors"

	"github.com/pelusa-v/yummy-chat/internal/model"
)

var ErrNotFound = errors.New("conversation not found in directory")

// Friendships resolves private conversations. A friendship's id is its conversation id.
type Friendships interface {
	// RoleOf returns RoleSender, RoleReceiver or RoleNone.
	RoleOf(ctx context.Context, username, conversationID string) (model.Role, error)
	// CounterpartOf returns ErrNotFound when the user is not part of the friendship.
	CounterpartOf(ctx context.Context, username, conversationID string) (string, error)
	ConversationsOf(ctx context.Context, username string) ([]string, error)
}

// Groups resolves group conversations. A group's id is its conversation id.
type Groups interface {
	// MembersOf returns ErrNotFound for unknown groups.
	MembersOf(ctx context.Context, groupID string) ([]string, error)
	// RoleOf returns RoleMember or RoleNone.
	RoleOf(ctx context.Context, username, groupID string) (model.Role, error)
	GroupsOf(ctx context.Context, username string) ([]string, error)
}

// Friendship is one private conversation between two users.
type Friendship struct {
	ID       string `yaml:"id" bson:"_id"`
	Sender   string `yaml:"sender" bson:"sender"`
	Receiver string `yaml:"receiver" bson:"receiver"`
}

// Group is one group conversation.
type Group struct {
	ID      string   `yaml:"id" bson:"_id"`
	Members []string `yaml:"members" bson:"members"`
}
