package chat

import (
	"context"
	"fmt"

	"github.com/pelusa-v/yummy-chat/internal/config"
	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

// GroupPolicy selects which connections receive group_chat.
type GroupPolicy string

const (
	// GroupPolicyAll pushes to every identified connection.
	GroupPolicyAll GroupPolicy = config.GroupFanoutAll
	// GroupPolicyMembers pushes to the connections of the group's members.
	GroupPolicyMembers GroupPolicy = config.GroupFanoutMembers
	// GroupPolicyRoom pushes to the connections that joined the group room.
	GroupPolicyRoom GroupPolicy = config.GroupFanoutRoom
)

func ParseGroupPolicy(s string) (GroupPolicy, error) {
	switch p := GroupPolicy(s); p {
	case GroupPolicyAll, GroupPolicyMembers, GroupPolicyRoom:
		return p, nil
	case "":
		return GroupPolicyAll, nil
	}
	return "", fmt.Errorf("unknown group fanout policy %q", s)
}

// Fanout computes the pushes for a stored message. It never writes to sockets;
// the Manager applies the returned Outbound values.
type Fanout struct {
	presence *Presence
	rooms    *Rooms
	friends  directory.Friendships
	groups   directory.Groups
	policy   GroupPolicy
}

func NewFanout(presence *Presence, rooms *Rooms, friends directory.Friendships, groups directory.Groups, policy GroupPolicy) *Fanout {
	return &Fanout{presence: presence, rooms: rooms, friends: friends, groups: groups, policy: policy}
}

func (f *Fanout) Policy() GroupPolicy { return f.policy }

// Private pushes private_chat to every connection of the counterpart, acks the
// origin connection and echoes to the sender's other devices.
func (f *Fanout) Private(ctx context.Context, origin Origin, conversationID string, msg model.Message) ([]Outbound, error) {
	counterpart, err := f.friends.CounterpartOf(ctx, origin.Username, conversationID)
	if err != nil {
		return nil, err
	}
	ev := ChatEvent{ConversationID: conversationID, Message: msg}
	out := []Outbound{ack(origin, ev)}
	if to := f.presence.ConnectionsFor(counterpart); len(to) > 0 {
		out = append(out, Outbound{To: to, Event: EventPrivateChat, Data: ev})
	}
	if to := without(f.presence.ConnectionsFor(origin.Username), origin.ConnID); len(to) > 0 {
		out = append(out, Outbound{To: to, Event: EventPrivateChat, Data: ev})
	}
	return out, nil
}

// Group pushes group_chat according to the configured policy. The origin
// connection only gets the ack.
func (f *Fanout) Group(ctx context.Context, origin Origin, groupID string, msg model.Message) ([]Outbound, error) {
	var recipients []string
	switch f.policy {
	case GroupPolicyMembers:
		members, err := f.groups.MembersOf(ctx, groupID)
		if err != nil {
			return nil, err
		}
		for _, u := range members {
			recipients = append(recipients, f.presence.ConnectionsFor(u)...)
		}
	case GroupPolicyRoom:
		recipients = f.rooms.Members(GroupRoom(groupID))
	default:
		recipients = f.presence.All()
	}

	ev := ChatEvent{ConversationID: groupID, Message: msg}
	out := []Outbound{ack(origin, ev)}
	if to := without(recipients, origin.ConnID); len(to) > 0 {
		out = append(out, Outbound{To: to, Event: EventGroupChat, Data: ev})
	}
	return out, nil
}

func ack(origin Origin, ev ChatEvent) Outbound {
	return Outbound{To: []string{origin.ConnID}, Event: EventSendSuccess, Data: ev}
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
