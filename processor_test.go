package chatgate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/chatgate/dispatch"
	"github.com/memohai/chatgate/followup"
	"github.com/memohai/chatgate/replypolicy"
)

type fakeAccounts struct {
	account replypolicy.AccountConfig
	err     error
}

func (f *fakeAccounts) Resolve(_ context.Context, _ string) (replypolicy.AccountConfig, error) {
	return f.account, f.err
}

type fakeAgent struct {
	reply    AgentReply
	err      error
	requests []AgentRequest
}

func (f *fakeAgent) Run(_ context.Context, req AgentRequest) (AgentReply, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type fakeSessions struct {
	records []SessionRecord
}

func (f *fakeSessions) Persist(_ context.Context, record SessionRecord) error {
	f.records = append(f.records, record)
	return nil
}

type fakeSender struct {
	requests []dispatch.SendRequest
}

func (f *fakeSender) Send(_ context.Context, req dispatch.SendRequest) (dispatch.SendResult, error) {
	f.requests = append(f.requests, req)
	return dispatch.SendResult{MessageID: "m1"}, nil
}

type fakeStatus struct {
	patches []dispatch.StatusPatch
}

func (f *fakeStatus) Patch(_ context.Context, patch dispatch.StatusPatch) {
	f.patches = append(f.patches, patch)
}

type harness struct {
	processor *Processor
	agent     *fakeAgent
	sessions  *fakeSessions
	sender    *fakeSender
	status    *fakeStatus
	tracker   *followup.Tracker
}

func newHarness(t *testing.T, account replypolicy.AccountConfig, reply AgentReply) *harness {
	t.Helper()
	agent := &fakeAgent{reply: reply}
	sessions := &fakeSessions{}
	sender := &fakeSender{}
	status := &fakeStatus{}
	tracker := followup.NewTracker(nil)
	dispatcher := dispatch.NewDispatcher(nil, sender, dispatch.Options{Status: status})
	processor := NewProcessor(nil, &fakeAccounts{account: account}, agent, sessions, tracker, dispatcher, status)
	return &harness{processor: processor, agent: agent, sessions: sessions, sender: sender, status: status, tracker: tracker}
}

func groupPayload(body []any) map[string]any {
	return map[string]any{
		"conversationId":   "12345",
		"conversationType": "2",
		"senderStaffId":    "bob02",
		"senderNick":       "Bob",
		"body":             body,
	}
}

func TestHandleInboundSkipWritesNothing(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "mention_only"}, AgentReply{Text: "hi"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "text", "text": "no bot here"},
	}))

	require.NoError(t, err)
	assert.Empty(t, h.sessions.records)
	assert.Empty(t, h.agent.requests)
	assert.Empty(t, h.sender.requests)
	// inbound activity is still reported even when the message is skipped
	require.Len(t, h.status.patches, 1)
	assert.NotNil(t, h.status.patches[0].LastInboundAt)
}

func TestHandleInboundRecordOnly(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "record"}, AgentReply{Text: "hi"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "text", "text": "context worth keeping"},
	}))

	require.NoError(t, err)
	require.Len(t, h.sessions.records, 1)
	assert.Equal(t, "acc-1:group:12345", h.sessions.records[0].SessionKey)
	assert.Empty(t, h.agent.requests)
	assert.Empty(t, h.sender.requests)
}

func TestHandleInboundMentionReplyPath(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "mention_only"}, AgentReply{Text: "done"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "at", "displayName": "MyBot", "agentId": float64(99)},
		map[string]any{"type": "text", "text": " deploy please "},
		map[string]any{"type": "at", "displayName": "Alice", "staffId": "alice01"},
	}))

	require.NoError(t, err)
	require.Len(t, h.agent.requests, 1)
	req := h.agent.requests[0]
	assert.True(t, req.WasMentioned)
	assert.Empty(t, req.GroupSystemPrompt)
	// the bot's own at-item is excluded; Alice lands in the mention hint
	assert.Contains(t, req.Text, "deploy please")
	assert.Contains(t, req.Text, "[mentioned users: alice01]")

	require.Len(t, h.sender.requests, 1)
	assert.Equal(t, "group:12345", h.sender.requests[0].Target)
	assert.True(t, h.tracker.WithinWindow("12345", 60))
	require.Len(t, h.sessions.records, 1)
	assert.True(t, h.sessions.records[0].WasMentioned)
}

func TestHandleInboundSentinelSuppressesSend(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "proactive"}, AgentReply{Text: "NO_REPLY"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "text", "text": "just chatter"},
	}))

	require.NoError(t, err)
	require.Len(t, h.agent.requests, 1)
	assert.NotEmpty(t, h.agent.requests[0].GroupSystemPrompt)
	assert.Empty(t, h.sender.requests)
	assert.False(t, h.tracker.WithinWindow("12345", 3600))
}

func TestHandleInboundDirectAlwaysReplies(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "mention_only"}, AgentReply{Text: "sure"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", map[string]any{
		"conversationId":   "c-1",
		"conversationType": "1",
		"senderStaffId":    "alice01",
		"text":             "help me out",
	})

	require.NoError(t, err)
	require.Len(t, h.agent.requests, 1)
	assert.False(t, h.agent.requests[0].WasMentioned)
	require.Len(t, h.sender.requests, 1)
	assert.Equal(t, "alice01", h.sender.requests[0].Target)
	// direct replies do not feed the group follow-up window
	assert.False(t, h.tracker.WithinWindow("c-1", 3600))
}

func TestHandleInboundGroupOverride(t *testing.T) {
	account := replypolicy.AccountConfig{
		BotName:   "MyBot",
		ReplyMode: "mention_only",
		Groups: map[string]replypolicy.GroupOverride{
			"12345": {ReplyMode: "ignore"},
		},
	}
	h := newHarness(t, account, AgentReply{Text: "hi"})

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "at", "displayName": "MyBot", "agentId": float64(99)},
	}))

	require.NoError(t, err)
	assert.Empty(t, h.agent.requests)
	assert.Empty(t, h.sender.requests)
}

func TestHandleInboundAgentFailure(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot", ReplyMode: "proactive"}, AgentReply{})
	h.agent.err = errors.New("gateway down")

	err := h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "text", "text": "hello"},
	}))

	require.Error(t, err)
	assert.Empty(t, h.sender.requests)
}

func TestHandleInboundEmptyPayload(t *testing.T) {
	h := newHarness(t, replypolicy.AccountConfig{BotName: "MyBot"}, AgentReply{Text: "hi"})

	require.NoError(t, h.processor.HandleInbound(context.Background(), "acc-1", nil))
	require.NoError(t, h.processor.HandleInbound(context.Background(), "acc-1", map[string]any{"text": "   "}))
	assert.Empty(t, h.agent.requests)
	assert.Empty(t, h.status.patches)
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "acc:group:1", SessionKey("acc", "group", "1"))
}

func TestFollowUpAcrossMessages(t *testing.T) {
	account := replypolicy.AccountConfig{
		BotName:               "MyBot",
		ReplyMode:             "mention_only",
		FollowUpEnabled:       true,
		FollowUpWindowSeconds: 300,
	}
	h := newHarness(t, account, AgentReply{Text: "first answer"})

	// first message mentions the bot and produces a reply
	require.NoError(t, h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "at", "displayName": "MyBot", "agentId": float64(99)},
		map[string]any{"type": "text", "text": "status?"},
	})))
	require.Len(t, h.sender.requests, 1)

	// the unmentioned follow-up inside the window still reaches the agent
	require.NoError(t, h.processor.HandleInbound(context.Background(), "acc-1", groupPayload([]any{
		map[string]any{"type": "text", "text": "and the second node?"},
	})))
	require.Len(t, h.agent.requests, 2)
	assert.False(t, h.agent.requests[1].WasMentioned)
	assert.NotEmpty(t, h.agent.requests[1].GroupSystemPrompt)
	assert.Len(t, h.sender.requests, 2)
}
