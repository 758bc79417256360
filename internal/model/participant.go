package model

import "fmt"

// Side names which visibility list / cursor governs a participant.
type Side string

const (
	SideSender   Side = "sender"
	SideReceiver Side = "receiver"
	SideMember   Side = "member"
)

// ListKey identifies one participant's delete list and cursor in a conversation.
// Member is only set for group conversations.
type ListKey struct {
	ConversationID string `json:"conversationId" bson:"conversation_id"`
	Side           Side   `json:"side" bson:"side"`
	Member         string `json:"member,omitempty" bson:"member"`
}

func (k ListKey) String() string {
	if k.Member == "" {
		return fmt.Sprintf("%s/%s", k.ConversationID, k.Side)
	}
	return fmt.Sprintf("%s/%s/%s", k.ConversationID, k.Side, k.Member)
}

// Role is a participant's position in a friendship or group.
type Role string

const (
	RoleNone     Role = ""
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
	RoleMember   Role = "member"
)

// Kind tells private conversations from group conversations.
type Kind string

const (
	KindPrivate Kind = "private"
	KindGroup   Kind = "group"
)
