package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterMatch_TimeRangeIsInclusive(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	f := Filter{Start: &start, End: &end}

	require.True(t, f.Match(Message{CreateTime: start}))
	require.True(t, f.Match(Message{CreateTime: end}))
	require.False(t, f.Match(Message{CreateTime: start.Add(-time.Nanosecond)}))
	require.False(t, f.Match(Message{CreateTime: end.Add(time.Nanosecond)}))
}

func TestFilterMatch_SenderAndContent(t *testing.T) {
	m := Message{Sender: "alice", Content: "Lunch at Noon?"}

	require.True(t, Filter{Sender: "alice"}.Match(m))
	require.False(t, Filter{Sender: "bob"}.Match(m))
	require.True(t, Filter{Content: "noon"}.Match(m))
	require.False(t, Filter{Content: "dinner"}.Match(m))
}

func TestRefBriefComplete(t *testing.T) {
	var nilBrief *RefBrief
	require.False(t, nilBrief.Complete())
	require.False(t, (&RefBrief{MsgID: "m1", Content: "hi"}).Complete())
	require.True(t, (&RefBrief{MsgID: "m1", Content: "hi", Sender: "bob"}).Complete())
}
