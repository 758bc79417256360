package model

import (
	"strings"
	"time"
)

// Message is one entry of a conversation log. Only RefCount changes after insert.
type Message struct {
	ID         string    `json:"id" bson:"msg_id"`
	Content    string    `json:"content" bson:"content"`
	Sender     string    `json:"sender" bson:"sender"`
	CreateTime time.Time `json:"createTime" bson:"create_time"`
	RefCount   int64     `json:"refCount" bson:"ref_count"`
	RefMessage *RefBrief `json:"refMessage,omitempty" bson:"ref_message,omitempty"`
}

// RefBrief is the snapshot of a quoted message, captured when the quote is sent.
type RefBrief struct {
	MsgID   string `json:"msgID" bson:"msg_id"`
	Content string `json:"content" bson:"content"`
	Sender  string `json:"sender" bson:"sender"`
}

// Complete reports whether every field of the brief is set.
func (b *RefBrief) Complete() bool {
	return b != nil && b.MsgID != "" && b.Content != "" && b.Sender != ""
}

// RefInfo is the quote state of a single message.
type RefInfo struct {
	RefCount   int64     `json:"refCount"`
	RefMessage *RefBrief `json:"refMessage,omitempty"`
}

// Filter narrows a log listing. Zero fields match everything.
type Filter struct {
	Start   *time.Time
	End     *time.Time
	Sender  string
	Content string
}

// Match applies the filter in memory. The time range is inclusive on both ends
// and content matching is a case-insensitive substring test.
func (f Filter) Match(m Message) bool {
	if f.Start != nil && m.CreateTime.Before(*f.Start) {
		return false
	}
	if f.End != nil && m.CreateTime.After(*f.End) {
		return false
	}
	if f.Sender != "" && m.Sender != f.Sender {
		return false
	}
	if f.Content != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.Content)) {
		return false
	}
	return true
}
