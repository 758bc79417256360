package chat

import (
	"sort"
	"sync"

	"github.com/pelusa-v/yummy-chat/internal/metrics"
)

// Presence maps usernames to their live connections (one user, many devices)
// and back. State is process-local and lost on restart.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{} // username -> set(connID)
	byConn map[string]string              // connID -> username
}

func NewPresence() *Presence {
	return &Presence{
		byUser: map[string]map[string]struct{}{},
		byConn: map[string]string{},
	}
}

// Register adds connID to username's set. A connection that was registered
// under another name moves to the new one.
func (p *Presence) Register(username, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.byConn[connID]; ok && prev != username {
		p.removeLocked(prev, connID)
	}
	set, ok := p.byUser[username]
	if !ok {
		set = map[string]struct{}{}
		p.byUser[username] = set
	}
	set[connID] = struct{}{}
	p.byConn[connID] = username
	p.reportLocked()
}

// Unregister removes connID; the username entry goes away with its last connection.
func (p *Presence) Unregister(username, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(username, connID)
	p.reportLocked()
}

func (p *Presence) removeLocked(username, connID string) {
	if set, ok := p.byUser[username]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(p.byUser, username)
		}
	}
	if p.byConn[connID] == username {
		delete(p.byConn, connID)
	}
}

func (p *Presence) reportLocked() {
	metrics.OnlineConnections.Set(float64(len(p.byConn)))
	metrics.OnlineUsers.Set(float64(len(p.byUser)))
}

// ConnectionsFor returns a sorted copy of username's connections; nil when offline.
func (p *Presence) ConnectionsFor(username string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.byUser[username]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *Presence) UsernameFor(connID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byConn[connID]
	return u, ok
}

func (p *Presence) IsOnline(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[username]) > 0
}

// All returns every identified connection.
func (p *Presence) All() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.byConn))
	for id := range p.byConn {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Online returns the usernames with at least one connection.
func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
