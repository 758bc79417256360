package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

func init() {
	store.Register(store.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (store.Store, error) {
			return New(), nil
		},
	})
}

// Store keeps everything in process memory. Contents are lost on restart.
type Store struct {
	mu      sync.RWMutex
	logs    map[string][]model.Message
	hidden  map[model.ListKey]map[string]struct{}
	cursors map[model.ListKey]time.Time
}

func New() *Store {
	return &Store{
		logs:    map[string][]model.Message{},
		hidden:  map[model.ListKey]map[string]struct{}{},
		cursors: map[model.ListKey]time.Time{},
	}
}

func (s *Store) CreateLog(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[conversationID]; ok {
		return &store.ConflictError{Resource: "conversation log", ID: conversationID}
	}
	s.logs[conversationID] = []model.Message{}
	return nil
}

func (s *Store) AppendMessage(_ context.Context, conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}
	for i := range log {
		if log[i].ID == msg.ID {
			return &store.ConflictError{Resource: "message", ID: msg.ID}
		}
	}
	if msg.RefMessage != nil {
		ref := *msg.RefMessage
		msg.RefMessage = &ref
	}
	s.logs[conversationID] = append(log, msg)
	return nil
}

func (s *Store) Messages(_ context.Context, conversationID string, filter model.Filter) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}
	out := make([]model.Message, 0, len(log))
	for _, m := range log {
		if filter.Match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out, nil
}

func (s *Store) GetMessage(_ context.Context, conversationID, msgID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.indexOf(conversationID, msgID)
	if err != nil {
		return nil, err
	}
	m := s.logs[conversationID][i]
	return &m, nil
}

func (s *Store) IncrementRef(_ context.Context, conversationID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexOf(conversationID, msgID)
	if err != nil {
		return err
	}
	s.logs[conversationID][i].RefCount++
	return nil
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(conversationID, msgID string) (int, error) {
	log, ok := s.logs[conversationID]
	if !ok {
		return -1, fmt.Errorf("%w: %s", store.ErrMessageNotFound, msgID)
	}
	for i := range log {
		if log[i].ID == msgID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", store.ErrMessageNotFound, msgID)
}

func (s *Store) Hide(_ context.Context, key model.ListKey, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.hidden[key]
	if !ok {
		set = map[string]struct{}{}
		s.hidden[key] = set
	}
	set[msgID] = struct{}{}
	return nil
}

func (s *Store) Hidden(_ context.Context, key model.ListKey) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.hidden[key]))
	for id := range s.hidden[key] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) SetCursor(_ context.Context, key model.ListKey, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = t
	return nil
}

func (s *Store) Cursor(_ context.Context, key model.ListKey) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cursors[key]
	return t, ok, nil
}

func (s *Store) Close(context.Context) error { return nil }
