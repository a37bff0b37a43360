// Package dispatch turns an agent reply into one or more structured send
// calls: it resolves and merges mention directives, splits text across the
// transport size limit, and attaches mention markers to the first chunk only.
package dispatch

import (
	"context"
	"strings"
	"time"
)

// DefaultChunkLimit is the transport message size limit in characters,
// owned by this core.
const DefaultChunkLimit = 4000

type NodeType string

const (
	NodeText     NodeType = "text"
	NodeMarkdown NodeType = "markdown"
	NodeAt       NodeType = "at"
	NodeAtAgent  NodeType = "at_agent"
	NodeLink     NodeType = "link"
)

// Node is one typed content fragment of an outbound message. At-nodes carry
// either a user-id list or the all marker; at-agent-nodes carry agent ids.
type Node struct {
	Type     NodeType `json:"type"`
	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	Label    string   `json:"label,omitempty"`
	UserIDs  []string `json:"user_ids,omitempty"`
	AtAll    bool     `json:"at_all,omitempty"`
	AgentIDs []int64  `json:"agent_ids,omitempty"`
}

// SendRequest is one call to the external send primitive. UUID is a fresh
// idempotency key per call.
type SendRequest struct {
	Target string `json:"target"`
	Nodes  []Node `json:"nodes"`
	UUID   string `json:"uuid"`
}

// SendResult is the success payload of a send call.
type SendResult struct {
	MessageID string `json:"message_id"`
}

// Sender is the external send primitive; it owns transport, auth, and
// timeouts.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// StatusPatch updates channel activity timestamps; nil fields are untouched.
type StatusPatch struct {
	LastInboundAt  *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty"`
}

// StatusSink receives activity patches. Implementations must not block.
type StatusSink interface {
	Patch(ctx context.Context, patch StatusPatch)
}

// IsGroupTarget reports whether target addresses a group conversation
// ("group:<numeric-id>", case-insensitive).
func IsGroupTarget(target string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(target)), "group:")
}

// GroupID extracts the conversation id from a group target.
func GroupID(target string) (string, bool) {
	trimmed := strings.TrimSpace(target)
	if !IsGroupTarget(trimmed) {
		return "", false
	}
	return trimmed[len("group:"):], true
}
