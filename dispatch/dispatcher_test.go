package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/chatgate/mention"
)

type fakeSender struct {
	requests []SendRequest
	failAt   map[int]error
}

func (f *fakeSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	index := len(f.requests)
	f.requests = append(f.requests, req)
	if err, ok := f.failAt[index]; ok {
		return SendResult{}, err
	}
	return SendResult{MessageID: "msg-" + req.UUID}, nil
}

type fakeStatus struct {
	patches []StatusPatch
}

func (f *fakeStatus) Patch(_ context.Context, patch StatusPatch) {
	f.patches = append(f.patches, patch)
}

func TestDispatchSingleChunkWithMentionNodes(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, Options{})

	sent := d.Dispatch(context.Background(), Request{
		Account: "acc-1",
		Target:  "group:12345",
		Text:    "Hey @alice01 and @1282 done",
		KnownIDs: mention.IDSet{
			UserIDs:  []string{"alice01"},
			AgentIDs: []int64{1282},
		},
	})

	assert.Equal(t, 1, sent)
	require.Len(t, sender.requests, 1)
	nodes := sender.requests[0].Nodes
	require.Len(t, nodes, 3)
	assert.Equal(t, NodeAt, nodes[0].Type)
	assert.Equal(t, []string{"alice01"}, nodes[0].UserIDs)
	assert.False(t, nodes[0].AtAll)
	assert.Equal(t, NodeAtAgent, nodes[1].Type)
	assert.Equal(t, []int64{1282}, nodes[1].AgentIDs)
	assert.Equal(t, NodeText, nodes[2].Type)
	// no explicit caller mentions, so the text carries no extra prefix
	assert.Equal(t, "Hey @alice01 and @1282 done", nodes[2].Text)
	assert.NotEmpty(t, sender.requests[0].UUID)
}

func TestDispatchFirstChunkOnlyCarriesMentions(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, Options{ChunkLimit: 10})

	text := strings.Repeat("a", 25)
	sent := d.Dispatch(context.Background(), Request{
		Target:    "group:9",
		Text:      text,
		AtUserIDs: []string{"bob02"},
	})

	assert.Equal(t, 3, sent)
	require.Len(t, sender.requests, 3)

	first := sender.requests[0].Nodes
	require.Len(t, first, 2)
	assert.Equal(t, NodeAt, first[0].Type)
	assert.Equal(t, []string{"bob02"}, first[0].UserIDs)
	assert.Equal(t, "@bob02 "+strings.Repeat("a", 10), first[1].Text)

	for _, req := range sender.requests[1:] {
		require.Len(t, req.Nodes, 1)
		assert.Equal(t, NodeText, req.Nodes[0].Type)
		assert.NotContains(t, req.Nodes[0].Text, "@bob02")
	}
	// chunking itself stays lossless; only the first chunk gains the prefix
	joined := sender.requests[0].Nodes[1].Text + sender.requests[1].Nodes[0].Text + sender.requests[2].Nodes[0].Text
	assert.Equal(t, "@bob02 "+text, joined)
}

func TestDispatchAtAll(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, Options{})

	sent := d.Dispatch(context.Background(), Request{
		Target:    "group:7",
		Text:      "announcement",
		AtAll:     true,
		AtUserIDs: []string{"ignored"},
	})

	assert.Equal(t, 1, sent)
	nodes := sender.requests[0].Nodes
	require.Len(t, nodes, 2)
	assert.Equal(t, NodeAt, nodes[0].Type)
	assert.True(t, nodes[0].AtAll)
	assert.Empty(t, nodes[0].UserIDs)
	assert.Equal(t, "@all announcement", nodes[1].Text)
}

func TestDispatchChunkFailureContinues(t *testing.T) {
	sender := &fakeSender{failAt: map[int]error{1: errors.New("boom")}}
	d := NewDispatcher(nil, sender, Options{ChunkLimit: 5})

	sent := d.Dispatch(context.Background(), Request{
		Target: "group:1",
		Text:   strings.Repeat("x", 14),
	})

	assert.Equal(t, 2, sent)
	assert.Len(t, sender.requests, 3)
}

func TestDispatchEmptyTextIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, Options{})

	assert.Equal(t, 0, d.Dispatch(context.Background(), Request{Target: "group:1", Text: "   \n"}))
	assert.Empty(t, sender.requests)
}

func TestDispatchReportsOutboundActivity(t *testing.T) {
	sender := &fakeSender{failAt: map[int]error{0: errors.New("boom")}}
	status := &fakeStatus{}
	d := NewDispatcher(nil, sender, Options{ChunkLimit: 5, Status: status})
	d.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	sent := d.Dispatch(context.Background(), Request{
		Target: "group:1",
		Text:   strings.Repeat("y", 9),
	})

	assert.Equal(t, 1, sent)
	require.Len(t, status.patches, 1)
	require.NotNil(t, status.patches[0].LastOutboundAt)
	assert.Nil(t, status.patches[0].LastInboundAt)
	assert.Equal(t, 2026, status.patches[0].LastOutboundAt.Year())
}

func TestDispatchDirectTargetSkipsResolution(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, Options{})

	sent := d.Dispatch(context.Background(), Request{
		Target:   "user-42",
		Text:     "hi @alice01",
		KnownIDs: mention.IDSet{UserIDs: []string{"alice01"}},
	})

	assert.Equal(t, 1, sent)
	nodes := sender.requests[0].Nodes
	require.Len(t, nodes, 1)
	assert.Equal(t, NodeText, nodes[0].Type)
	assert.Equal(t, "hi @alice01", nodes[0].Text)
}
