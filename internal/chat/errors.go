package chat

import (
	"errors"

	"github.com/pelusa-v/yummy-chat/internal/store"
)

var (
	ErrConversationNotFound = store.ErrConversationNotFound
	ErrMessageNotFound      = store.ErrMessageNotFound
	// ErrNoVisibilityContext means the user is neither side of the friendship
	// nor a member of the group, so no delete list or cursor applies.
	ErrNoVisibilityContext = errors.New("Delete list not found")
	ErrIncompleteQuote     = errors.New("quoted message needs msgID, content and sender")
	ErrNotIdentified       = errors.New("connection has not identified")
	// ErrIdentityMismatch rejects an identify for a name other than the
	// connection's own. A connection's identity never changes once set.
	ErrIdentityMismatch = errors.New("connection is already identified as another user")
)
