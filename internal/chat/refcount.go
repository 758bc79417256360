package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

// QuoteResult reports both writes of a quote. Appended without Incremented
// means the new message exists but the quoted message's counter was not bumped.
type QuoteResult struct {
	Appended    bool
	Incremented bool
}

// References enacts "quote a message".
type References struct {
	conversations *Conversations
}

func NewReferences(conversations *Conversations) *References {
	return &References{conversations: conversations}
}

// Quote appends msg carrying brief as its RefMessage, then increments the quoted
// message's RefCount. The two writes are not atomic.
func (r *References) Quote(ctx context.Context, conversationID string, msg model.Message, brief *model.RefBrief) (QuoteResult, error) {
	var res QuoteResult
	if !brief.Complete() {
		return res, ErrIncompleteQuote
	}
	ref := *brief
	msg.RefMessage = &ref

	ok, err := r.conversations.Append(ctx, conversationID, msg)
	if err != nil {
		return res, err
	}
	res.Appended = ok

	if err := r.conversations.IncrementRef(ctx, conversationID, ref.MsgID); err != nil {
		log.Warn("Quote stored without ref increment", "conversation", conversationID, "msg", msg.ID, "quoted", ref.MsgID, "err", err)
		return res, fmt.Errorf("increment ref of %s: %w", ref.MsgID, err)
	}
	res.Incremented = true
	return res, nil
}
