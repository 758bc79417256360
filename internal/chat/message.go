package chat

import (
	"encoding/json"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/model"
)

// Inbound events.
const (
	EventIdentify        = "identify"
	EventJoinPrivate     = "join_private"
	EventJoinGroup       = "join_group"
	EventSendPrivate     = "send_private"
	EventSendGroup       = "send_group"
	EventSetReadCursor   = "set_read_cursor"
	EventSetGlobalCursor = "set_global_cursor"
)

// Outbound events.
const (
	EventPrivateChat        = "private_chat"
	EventGroupChat          = "group_chat"
	EventSendSuccess        = "send_msg_successfully"
	EventUpdateMemberCursor = "update_member_cursor"
	EventError              = "error"
)

// Envelope is the frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type IdentifyPayload struct {
	Username string `json:"username"`
}

type JoinPayload struct {
	ConversationID string `json:"conversationId,omitempty"` // join_private
	GroupID        string `json:"groupId,omitempty"`        // join_group
}

// OutgoingMessage is what a client submits; the server fills sender and,
// when absent, id and create time.
type OutgoingMessage struct {
	ID         string    `json:"id,omitempty"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"createTime,omitempty"`
}

type SendPayload struct {
	ConversationID string          `json:"conversationId"`
	Message        OutgoingMessage `json:"message"`
	IsQuote        bool            `json:"isQuote"`
	Quote          *model.RefBrief `json:"quote,omitempty"`
}

type CursorPayload struct {
	ConversationID string    `json:"conversationId,omitempty"` // empty for set_global_cursor
	Time           time.Time `json:"time"`
}

// ChatEvent is the data of private_chat, group_chat and send_msg_successfully.
type ChatEvent struct {
	ConversationID string        `json:"conversationId"`
	Message        model.Message `json:"message"`
}

type MemberCursorEvent struct {
	Username       string    `json:"username"`
	ConversationID string    `json:"conversationId"`
	Time           time.Time `json:"time"`
}

type ErrorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// Outbound is one event to push to a set of connections.
type Outbound struct {
	To    []string
	Event string
	Data  any
}

// Origin identifies the connection an inbound event came from.
type Origin struct {
	Username string
	ConnID   string
}

type ThreadPreview struct {
	ThreadID string     `json:"thread_id"`
	Kind     model.Kind `json:"kind"`
	Title    string     `json:"title"`
	LastBody string     `json:"last_body"`
	LastTs   int64      `json:"last_ts"`
	Unread   int        `json:"unread"`
}
