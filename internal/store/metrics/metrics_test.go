package metrics

import (
	"testing"

	"github.com/pelusa-v/yummy-chat/internal/store"
	"github.com/pelusa-v/yummy-chat/internal/store/memory"
	"github.com/pelusa-v/yummy-chat/internal/store/storetest"
)

func TestWrappedStoreBehavesLikeInner(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return Wrap(memory.New())
	})
}
