package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// ConflictError indicates a uniqueness violation.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

// LogStore holds the message log of every conversation.
type LogStore interface {
	CreateLog(ctx context.Context, conversationID string) error
	// AppendMessage returns ErrConversationNotFound when no log exists.
	AppendMessage(ctx context.Context, conversationID string, msg model.Message) error
	// Messages returns matching messages ordered by create time.
	Messages(ctx context.Context, conversationID string, filter model.Filter) ([]model.Message, error)
	GetMessage(ctx context.Context, conversationID, msgID string) (*model.Message, error)
	IncrementRef(ctx context.Context, conversationID, msgID string) error
}

// VisibilityStore keeps per-participant tombstones.
type VisibilityStore interface {
	Hide(ctx context.Context, key model.ListKey, msgID string) error
	Hidden(ctx context.Context, key model.ListKey) (map[string]struct{}, error)
}

// CursorStore keeps per-participant read cursors.
type CursorStore interface {
	SetCursor(ctx context.Context, key model.ListKey, t time.Time) error
	// Cursor returns ok=false when no cursor has been set.
	Cursor(ctx context.Context, key model.ListKey) (t time.Time, ok bool, err error)
}

// Store is everything a backend provides.
type Store interface {
	LogStore
	VisibilityStore
	CursorStore
	Close(ctx context.Context) error
}

// Loader creates a store from the config carried in ctx.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a store backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store backend.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered backend names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named backend.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
