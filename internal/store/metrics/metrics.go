package metrics

import (
	"context"
	"time"

	"github.com/pelusa-v/yummy-chat/internal/metrics"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store"
)

// Wrap returns a Store that records StoreLatency for every operation.
func Wrap(inner store.Store) store.Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.Store
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) CreateLog(ctx context.Context, conversationID string) error {
	defer observe("create_log", time.Now())
	return m.inner.CreateLog(ctx, conversationID)
}

func (m *metricsStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	defer observe("append_message", time.Now())
	return m.inner.AppendMessage(ctx, conversationID, msg)
}

func (m *metricsStore) Messages(ctx context.Context, conversationID string, filter model.Filter) ([]model.Message, error) {
	defer observe("messages", time.Now())
	return m.inner.Messages(ctx, conversationID, filter)
}

func (m *metricsStore) GetMessage(ctx context.Context, conversationID, msgID string) (*model.Message, error) {
	defer observe("get_message", time.Now())
	return m.inner.GetMessage(ctx, conversationID, msgID)
}

func (m *metricsStore) IncrementRef(ctx context.Context, conversationID, msgID string) error {
	defer observe("increment_ref", time.Now())
	return m.inner.IncrementRef(ctx, conversationID, msgID)
}

func (m *metricsStore) Hide(ctx context.Context, key model.ListKey, msgID string) error {
	defer observe("hide", time.Now())
	return m.inner.Hide(ctx, key, msgID)
}

func (m *metricsStore) Hidden(ctx context.Context, key model.ListKey) (map[string]struct{}, error) {
	defer observe("hidden", time.Now())
	return m.inner.Hidden(ctx, key)
}

func (m *metricsStore) SetCursor(ctx context.Context, key model.ListKey, t time.Time) error {
	defer observe("set_cursor", time.Now())
	return m.inner.SetCursor(ctx, key, t)
}

func (m *metricsStore) Cursor(ctx context.Context, key model.ListKey) (time.Time, bool, error) {
	defer observe("cursor", time.Now())
	return m.inner.Cursor(ctx, key)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}
