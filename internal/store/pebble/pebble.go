// Package pebble is an embedded store backend on cockroachdb/pebble.
//
// Key layout (\x00 separates components):
//
//	log\x00<conv>                              -> marker
//	msg\x00<conv>\x00<unixnano>-<seq>          -> JSON message, insertion ordered
//	idx\x00<conv>\x00<msgID>                   -> msg key
//	hide\x00<conv>\x00<side>\x00<member>\x00<msgID> -> empty
//	cursor\x00<conv>\x00<side>\x00<member>     -> time.MarshalBinary
package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/pebble"
	"github.com/pelusa-v/yummy-chat/internal/config"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

func init() {
	store.Register(store.Plugin{
		Name: "pebble",
		Loader: func(ctx context.Context) (store.Store, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.PebblePath == "" {
				return nil, errors.New("pebble store: pebble-path is required")
			}
			return Open(cfg.PebblePath)
		},
	})
}

const sep = "\x00"

// Store implements store.Store on a pebble database.
type Store struct {
	db *pebble.DB
	// mu serialises read-modify-write sequences.
	mu  sync.Mutex
	seq uint64
}

// Open opens (or creates) a pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble store: open %s: %w", path, err)
	}
	log.Info("Pebble store opened", "path", path)
	return &Store{db: db}, nil
}

func key(parts ...string) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func prefix(parts ...string) []byte {
	return append(key(parts...), sep...)
}

// upperBound returns the smallest key greater than every key with the given prefix.
func upperBound(p []byte) []byte {
	out := append([]byte{}, p...)
	return append(out, 0xff)
}

func (s *Store) has(k []byte) (bool, error) {
	_, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (s *Store) get(k []byte) ([]byte, error) {
	v, closer, err := s.db.Get(k)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, v...), nil
}

func (s *Store) CreateLog(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key("log", conversationID)
	ok, err := s.has(k)
	if err != nil {
		return fmt.Errorf("pebble store: create log: %w", err)
	}
	if ok {
		return &store.ConflictError{Resource: "conversation log", ID: conversationID}
	}
	return s.db.Set(k, []byte{1}, pebble.Sync)
}

func (s *Store) AppendMessage(_ context.Context, conversationID string, msg model.Message) error {
	ok, err := s.has(key("log", conversationID))
	if err != nil {
		return fmt.Errorf("pebble store: append: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}

	// The idx check and the batch commit must not interleave with another append.
	s.mu.Lock()
	defer s.mu.Unlock()
	idxKey := key("idx", conversationID, msg.ID)
	dup, err := s.has(idxKey)
	if err != nil {
		return fmt.Errorf("pebble store: append: %w", err)
	}
	if dup {
		return &store.ConflictError{Resource: "message", ID: msg.ID}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("pebble store: marshal message: %w", err)
	}
	n := atomic.AddUint64(&s.seq, 1)
	msgKey := key("msg", conversationID, fmt.Sprintf("%020d-%06d", time.Now().UTC().UnixNano(), n%1000000))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(msgKey, data, nil); err != nil {
		return err
	}
	if err := b.Set(idxKey, msgKey, nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble store: append: %w", err)
	}
	return nil
}

func (s *Store) Messages(_ context.Context, conversationID string, filter model.Filter) ([]model.Message, error) {
	ok, err := s.has(key("log", conversationID))
	if err != nil {
		return nil, fmt.Errorf("pebble store: messages: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}
	p := prefix("msg", conversationID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: p, UpperBound: upperBound(p)})
	if err != nil {
		return nil, fmt.Errorf("pebble store: messages: %w", err)
	}
	defer iter.Close()

	var out []model.Message
	for iter.First(); iter.Valid(); iter.Next() {
		var m model.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("pebble store: decode %q: %w", iter.Key(), err)
		}
		if filter.Match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out, nil
}

func (s *Store) lookup(conversationID, msgID string) ([]byte, *model.Message, error) {
	msgKey, err := s.get(key("idx", conversationID, msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", store.ErrMessageNotFound, msgID)
	}
	if err != nil {
		return nil, nil, err
	}
	data, err := s.get(msgKey)
	if err != nil {
		return nil, nil, fmt.Errorf("pebble store: dangling index for %s: %w", msgID, err)
	}
	var m model.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, err
	}
	return msgKey, &m, nil
}

func (s *Store) GetMessage(_ context.Context, conversationID, msgID string) (*model.Message, error) {
	_, m, err := s.lookup(conversationID, msgID)
	return m, err
}

func (s *Store) IncrementRef(_ context.Context, conversationID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgKey, m, err := s.lookup(conversationID, msgID)
	if err != nil {
		return err
	}
	m.RefCount++
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Set(msgKey, data, pebble.Sync)
}

func listParts(k model.ListKey) []string {
	return []string{k.ConversationID, string(k.Side), k.Member}
}

func (s *Store) Hide(_ context.Context, k model.ListKey, msgID string) error {
	parts := append([]string{"hide"}, listParts(k)...)
	return s.db.Set(key(append(parts, msgID)...), nil, pebble.Sync)
}

func (s *Store) Hidden(_ context.Context, k model.ListKey) (map[string]struct{}, error) {
	p := prefix(append([]string{"hide"}, listParts(k)...)...)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: p, UpperBound: upperBound(p)})
	if err != nil {
		return nil, fmt.Errorf("pebble store: hidden: %w", err)
	}
	defer iter.Close()
	out := map[string]struct{}{}
	for iter.First(); iter.Valid(); iter.Next() {
		out[string(bytes.TrimPrefix(iter.Key(), p))] = struct{}{}
	}
	return out, nil
}

func (s *Store) SetCursor(_ context.Context, k model.ListKey, t time.Time) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Set(key(append([]string{"cursor"}, listParts(k)...)...), data, pebble.Sync)
}

func (s *Store) Cursor(_ context.Context, k model.ListKey) (time.Time, bool, error) {
	data, err := s.get(key(append([]string{"cursor"}, listParts(k)...)...))
	if errors.Is(err, pebble.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var t time.Time
	if err := t.UnmarshalBinary(data); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *Store) Close(context.Context) error {
	if err := s.db.Close(); err != nil {
		return err
	}
	log.Info("Pebble store closed")
	return nil
}
