package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
	"gopkg.in/yaml.v3"
)

// LogCreator opens the message log of a new conversation.
type LogCreator interface {
	CreateLog(ctx context.Context, conversationID string) error
}

// Memory is an in-process directory. Adding a friendship or group opens its log.
type Memory struct {
	mu          sync.RWMutex
	friendships map[string]Friendship
	groups      map[string]map[string]struct{}
	logs        LogCreator
}

func NewMemory(logs LogCreator) *Memory {
	return &Memory{
		friendships: map[string]Friendship{},
		groups:      map[string]map[string]struct{}{},
		logs:        logs,
	}
}

func (m *Memory) openLog(ctx context.Context, id string) error {
	if m.logs == nil {
		return nil
	}
	err := m.logs.CreateLog(ctx, id)
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		// Persistent stores keep logs across restarts.
		log.Debug("Conversation log already exists", "conversation", id)
		return nil
	}
	return err
}

// AddFriendship registers a private conversation between f.Sender and f.Receiver.
func (m *Memory) AddFriendship(ctx context.Context, f Friendship) error {
	if f.ID == "" || f.Sender == "" || f.Receiver == "" {
		return fmt.Errorf("friendship needs id, sender and receiver: %+v", f)
	}
	m.mu.Lock()
	if _, ok := m.groups[f.ID]; ok {
		m.mu.Unlock()
		return &store.ConflictError{Resource: "group", ID: f.ID}
	}
	m.friendships[f.ID] = f
	m.mu.Unlock()
	return m.openLog(ctx, f.ID)
}

// AddGroup registers a group conversation.
func (m *Memory) AddGroup(ctx context.Context, g Group) error {
	if g.ID == "" {
		return errors.New("group needs an id")
	}
	m.mu.Lock()
	if _, ok := m.friendships[g.ID]; ok {
		m.mu.Unlock()
		return &store.ConflictError{Resource: "friendship", ID: g.ID}
	}
	members := map[string]struct{}{}
	for _, u := range g.Members {
		members[u] = struct{}{}
	}
	m.groups[g.ID] = members
	m.mu.Unlock()
	return m.openLog(ctx, g.ID)
}

type seedFile struct {
	Friendships []Friendship `yaml:"friendships"`
	Groups      []Group      `yaml:"groups"`
}

// Seed loads friendships and groups from YAML.
func (m *Memory) Seed(ctx context.Context, r io.Reader) error {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode directory seed: %w", err)
	}
	for _, f := range seed.Friendships {
		if err := m.AddFriendship(ctx, f); err != nil {
			return err
		}
	}
	for _, g := range seed.Groups {
		if err := m.AddGroup(ctx, g); err != nil {
			return err
		}
	}
	log.Info("Directory seeded", "friendships", len(seed.Friendships), "groups", len(seed.Groups))
	return nil
}

// SeedFile is Seed reading from a file path.
func (m *Memory) SeedFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Seed(ctx, f)
}

func (m *Memory) Friendships() Friendships { return memoryFriendships{m} }
func (m *Memory) Groups() Groups           { return memoryGroups{m} }

type memoryFriendships struct{ m *Memory }

func (f memoryFriendships) RoleOf(_ context.Context, username, conversationID string) (model.Role, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	fr, ok := f.m.friendships[conversationID]
	switch {
	case !ok:
		return model.RoleNone, nil
	case fr.Sender == username:
		return model.RoleSender, nil
	case fr.Receiver == username:
		return model.RoleReceiver, nil
	}
	return model.RoleNone, nil
}

func (f memoryFriendships) CounterpartOf(_ context.Context, username, conversationID string) (string, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	fr, ok := f.m.friendships[conversationID]
	switch {
	case !ok:
	case fr.Sender == username:
		return fr.Receiver, nil
	case fr.Receiver == username:
		return fr.Sender, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, conversationID)
}

func (f memoryFriendships) ConversationsOf(_ context.Context, username string) ([]string, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	var out []string
	for id, fr := range f.m.friendships {
		if fr.Sender == username || fr.Receiver == username {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memoryGroups struct{ m *Memory }

func (g memoryGroups) MembersOf(_ context.Context, groupID string) ([]string, error) {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	members, ok := g.m.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	out := make([]string, 0, len(members))
	for u := range members {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (g memoryGroups) RoleOf(_ context.Context, username, groupID string) (model.Role, error) {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	if _, ok := g.m.groups[groupID][username]; ok {
		return model.RoleMember, nil
	}
	return model.RoleNone, nil
}

func (g memoryGroups) GroupsOf(_ context.Context, username string) ([]string, error) {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	var out []string
	for id, members := range g.m.groups {
		if _, ok := members[username]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
