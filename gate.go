// Package chatgate is the mention-aware gating and dispatch core of a
// chat-bot channel adapter. For every inbound message it decides whether the
// agent should respond, and for every reply it resolves who gets notified
// and how the text is split across the transport size limit. Transport,
// credential handling, history persistence, and the agent itself stay behind
// the collaborator interfaces defined here.
package chatgate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/chatgate/inbound"
	"github.com/memohai/chatgate/mention"
	"github.com/memohai/chatgate/replypolicy"
)

// AccountResolver returns the effective configuration for an account: bot
// display name, reply-mode settings, watch list, and per-group overrides.
type AccountResolver interface {
	Resolve(ctx context.Context, accountID string) (replypolicy.AccountConfig, error)
}

// AgentRequest is the core's contract with the agent runtime: the query
// text, a wasMentioned flag, and an optional group system prompt.
type AgentRequest struct {
	AccountID         string
	SessionKey        string
	ConversationKind  inbound.ChatKind
	ConversationID    string
	SenderID          string
	SenderName        string
	Text              string
	WasMentioned      bool
	GroupSystemPrompt string
}

// AgentReply is the agent's answer plus any mention directives it issued.
type AgentReply struct {
	Text      string
	AtAll     bool
	AtUserIDs []string
}

// AgentRunner resolves a route and produces the reply; invocation details
// are out of scope for this core.
type AgentRunner interface {
	Run(ctx context.Context, req AgentRequest) (AgentReply, error)
}

// SessionRecord is one inbound message persisted as conversation context.
type SessionRecord struct {
	AccountID      string
	SessionKey     string
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	WasMentioned   bool
	ReceivedAt     time.Time
}

// SessionStore persists inbound context for later agent runs.
type SessionStore interface {
	Persist(ctx context.Context, record SessionRecord) error
}

// SessionKey derives the agent session key from account, conversation kind,
// and conversation id.
func SessionKey(accountID string, kind inbound.ChatKind, conversationID string) string {
	return strings.Join([]string{accountID, string(kind), conversationID}, ":")
}

// mentionHint renders the resolved mention ids as a human-readable line the
// agent can see inside the message body.
func mentionHint(ids mention.IDSet) string {
	if ids.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, 2)
	if len(ids.UserIDs) > 0 {
		parts = append(parts, "users: "+strings.Join(ids.UserIDs, ", "))
	}
	if len(ids.AgentIDs) > 0 {
		rendered := make([]string, 0, len(ids.AgentIDs))
		for _, id := range ids.AgentIDs {
			rendered = append(rendered, strconv.FormatInt(id, 10))
		}
		parts = append(parts, "agents: "+strings.Join(rendered, ", "))
	}
	return "\n[mentioned " + strings.Join(parts, "; ") + "]"
}
