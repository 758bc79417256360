package chat

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// normalizeRoom trims spaces, collapses slashes and drops the leading slash.
func normalizeRoom(room string) string {
	r := strings.TrimSpace(room)
	if r == "" {
		return ""
	}
	r = path.Clean("/" + r)
	r = strings.TrimPrefix(r, "/")
	return r
}

func PrivateRoom(conversationID string) string { return normalizeRoom("private/" + conversationID) }
func GroupRoom(groupID string) string          { return normalizeRoom("group/" + groupID) }

// Rooms tracks which connections joined which conversation rooms.
type Rooms struct {
	mu        sync.RWMutex
	RoomConns map[string]map[string]bool // room -> connIDs
	ConnRooms map[string]map[string]bool // connID -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		RoomConns: map[string]map[string]bool{},
		ConnRooms: map[string]map[string]bool{},
	}
}

// Join subscribes connID to room. Joining twice is a no-op.
func (s *Rooms) Join(connID, room string) bool {
	r := normalizeRoom(room)
	if r == "" || connID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ConnRooms[connID]; !ok {
		s.ConnRooms[connID] = map[string]bool{}
	}
	s.ConnRooms[connID][r] = true
	if _, ok := s.RoomConns[r]; !ok {
		s.RoomConns[r] = map[string]bool{}
	}
	s.RoomConns[r][connID] = true
	return true
}

// LeaveAll drops every subscription of a closing connection.
func (s *Rooms) LeaveAll(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := range s.ConnRooms[connID] {
		s.leaveLocked(connID, r)
	}
}

func (s *Rooms) leaveLocked(connID, r string) {
	if rooms, ok := s.ConnRooms[connID]; ok {
		delete(rooms, r)
		if len(rooms) == 0 {
			delete(s.ConnRooms, connID)
		}
	}
	if conns, ok := s.RoomConns[r]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.RoomConns, r)
		}
	}
}

// Members returns the connections in room, sorted.
func (s *Rooms) Members(room string) []string {
	r := normalizeRoom(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.RoomConns[r]))
	for id := range s.RoomConns[r] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Rooms) RoomsOf(connID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ConnRooms[connID]))
	for r := range s.ConnRooms[connID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
