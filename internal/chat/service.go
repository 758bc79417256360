package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/metrics"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

// Options wires a Service. Presence and Rooms are created when nil.
type Options struct {
	Store       store.Store
	Friendships directory.Friendships
	Groups      directory.Groups
	Presence    *Presence
	Rooms       *Rooms
	GroupPolicy GroupPolicy
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service is the messaging core. Event methods return the pushes to apply
// instead of writing to connections.
type Service struct {
	Conversations *Conversations
	Visibility    *Visibility
	References    *References
	Cursors       *Cursors
	Presence      *Presence
	Rooms         *Rooms
	Fanout        *Fanout

	participants *Participants
	friends      directory.Friendships
	clock        func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Friendships == nil || opts.Groups == nil {
		return nil, errors.New("chat service needs a store, friendships and groups")
	}
	policy, err := ParseGroupPolicy(string(opts.GroupPolicy))
	if err != nil {
		return nil, err
	}
	if opts.Presence == nil {
		opts.Presence = NewPresence()
	}
	if opts.Rooms == nil {
		opts.Rooms = NewRooms()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	participants := NewParticipants(opts.Friendships, opts.Groups)
	visibility := NewVisibility(opts.Friendships, opts.Groups, opts.Store)
	conversations := NewConversations(opts.Store, visibility)
	return &Service{
		Conversations: conversations,
		Visibility:    visibility,
		References:    NewReferences(conversations),
		Cursors:       NewCursors(visibility, participants, opts.Presence, opts.Store),
		Presence:      opts.Presence,
		Rooms:         opts.Rooms,
		Fanout:        NewFanout(opts.Presence, opts.Rooms, opts.Friendships, opts.Groups, policy),
		participants:  participants,
		friends:       opts.Friendships,
		clock:         opts.Now,
	}, nil
}

// now is millisecond precision UTC, the resolution every store keeps.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

// Participants exposes membership lookups to the HTTP layer.
func (s *Service) Participants() *Participants { return s.participants }

// SendPrivate stores a private message and fans it out.
func (s *Service) SendPrivate(ctx context.Context, origin Origin, p SendPayload) ([]Outbound, error) {
	msg, err := s.persist(ctx, origin, model.KindPrivate, p)
	if err != nil {
		return nil, err
	}
	return s.Fanout.Private(ctx, origin, p.ConversationID, msg)
}

// SendGroup stores a group message and fans it out.
func (s *Service) SendGroup(ctx context.Context, origin Origin, p SendPayload) ([]Outbound, error) {
	msg, err := s.persist(ctx, origin, model.KindGroup, p)
	if err != nil {
		return nil, err
	}
	return s.Fanout.Group(ctx, origin, p.ConversationID, msg)
}

func (s *Service) persist(ctx context.Context, origin Origin, kind model.Kind, p SendPayload) (model.Message, error) {
	if origin.Username == "" {
		return model.Message{}, ErrNotIdentified
	}
	if err := s.participants.Require(ctx, origin.Username, p.ConversationID, kind); err != nil {
		return model.Message{}, err
	}
	msg := model.Message{
		ID:         p.Message.ID,
		Content:    p.Message.Content,
		Sender:     origin.Username,
		CreateTime: p.Message.CreateTime.UTC().Truncate(time.Millisecond),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if p.Message.CreateTime.IsZero() {
		msg.CreateTime = s.now()
	}

	if p.IsQuote {
		res, err := s.References.Quote(ctx, p.ConversationID, msg, p.Quote)
		if !res.Appended {
			return model.Message{}, err
		}
		if err != nil {
			// The message is stored; deliver it with its snapshot regardless.
			log.Warn("Quoted message count not updated", "conversation", p.ConversationID, "err", err)
		}
		ref := *p.Quote
		msg.RefMessage = &ref
	} else if _, err := s.Conversations.Append(ctx, p.ConversationID, msg); err != nil {
		return model.Message{}, err
	}
	metrics.MessagesStored.WithLabelValues(string(kind)).Inc()

	s.Cursors.Advance(ctx, origin.Username, p.ConversationID, msg.CreateTime)
	return msg, nil
}

// SetReadCursor moves the sender's cursor in one conversation and tells the
// other participants.
func (s *Service) SetReadCursor(ctx context.Context, origin Origin, p CursorPayload) ([]Outbound, error) {
	if origin.Username == "" {
		return nil, ErrNotIdentified
	}
	t := s.cursorTime(p.Time)
	if !s.Cursors.Advance(ctx, origin.Username, p.ConversationID, t) {
		return nil, ErrNoVisibilityContext
	}
	return s.Cursors.BroadcastCursor(ctx, origin.Username, t, []string{p.ConversationID}), nil
}

// SetGlobalCursor moves the sender's cursor in every conversation.
func (s *Service) SetGlobalCursor(ctx context.Context, origin Origin, p CursorPayload) ([]Outbound, error) {
	if origin.Username == "" {
		return nil, ErrNotIdentified
	}
	t := s.cursorTime(p.Time)
	ids := s.Cursors.AdvanceAll(ctx, origin.Username, t)
	return s.Cursors.BroadcastCursor(ctx, origin.Username, t, ids), nil
}

func (s *Service) cursorTime(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t.UTC().Truncate(time.Millisecond)
}

// Join subscribes the origin connection to a conversation room after checking
// the user takes part in it.
func (s *Service) Join(ctx context.Context, origin Origin, kind model.Kind, conversationID string) error {
	if origin.Username == "" {
		return ErrNotIdentified
	}
	if err := s.participants.Require(ctx, origin.Username, conversationID, kind); err != nil {
		return err
	}
	room := PrivateRoom(conversationID)
	if kind == model.KindGroup {
		room = GroupRoom(conversationID)
	}
	s.Rooms.Join(origin.ConnID, room)
	return nil
}
