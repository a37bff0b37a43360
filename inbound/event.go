// Package inbound normalizes loosely-typed webhook payloads into one
// canonical event type. Chat platforms spell the same fields several ways
// depending on message age and conversation kind; each field here resolves
// through a single ordered list of accessor attempts so the fallback chains
// live in exactly one place.
package inbound

import (
	"strings"
	"time"

	"github.com/memohai/chatgate/mention"
)

type ChatKind string

const (
	ChatGroup  ChatKind = "group"
	ChatDirect ChatKind = "direct"
)

// Event is the canonical inbound message the rest of the core consumes.
type Event struct {
	ConversationID string
	Kind           ChatKind
	SenderID       string
	SenderName     string
	ReceivedAt     time.Time
	Body           []mention.BodyItem
}

// IsEmpty reports whether the event carries nothing worth processing.
func (e Event) IsEmpty() bool {
	return len(e.Body) == 0 || strings.TrimSpace(mention.PlainText(e.Body)) == ""
}
