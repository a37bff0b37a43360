package inbound

import (
	"strconv"
	"strings"
	"time"

	"github.com/memohai/chatgate/mention"
)

// Accessor fallback chains, in priority order. Documented here once; every
// alternate spelling accepted from a payload appears in exactly one list.
var (
	senderIDKeys        = []string{"senderStaffId", "senderId", "staffId", "fromUserId"}
	senderNameKeys      = []string{"senderNick", "senderName", "nick", "nickname"}
	conversationIDKeys  = []string{"conversationId", "openConversationId", "chatId"}
	conversationTypeKey = []string{"conversationType", "chatType"}
	timestampKeys       = []string{"createAt", "createdAt", "timestamp", "msgtime"}
	bodyKeys            = []string{"body", "items", "richText"}
	textKeys            = []string{"text", "content", "msg"}
)

// Normalize converts a raw payload map into a canonical Event. It never
// fails: missing or malformed fields degrade to zero values, and unknown
// body-item kinds are dropped.
func Normalize(payload map[string]any) Event {
	evt := Event{
		ConversationID: firstString(payload, conversationIDKeys),
		Kind:           resolveKind(firstString(payload, conversationTypeKey)),
		SenderID:       firstString(payload, senderIDKeys),
		SenderName:     firstString(payload, senderNameKeys),
		ReceivedAt:     resolveTimestamp(payload),
		Body:           resolveBody(payload),
	}
	return evt
}

func resolveKind(raw string) ChatKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "2", "group", "chat":
		return ChatGroup
	default:
		return ChatDirect
	}
}

func resolveTimestamp(payload map[string]any) time.Time {
	for _, key := range timestampKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		value, ok := asInt64(raw)
		if !ok || value <= 0 {
			continue
		}
		// millisecond epochs dominate; anything small enough is seconds
		if value > 1_000_000_000_000 {
			return time.UnixMilli(value).UTC()
		}
		return time.Unix(value, 0).UTC()
	}
	return time.Now().UTC()
}

func resolveBody(payload map[string]any) []mention.BodyItem {
	for _, key := range bodyKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}
		return decodeItems(items)
	}
	// no structured body: fall back to a bare text field
	if text := firstString(payload, textKeys); text != "" {
		return []mention.BodyItem{{Kind: mention.KindText, Content: text}}
	}
	return nil
}

func decodeItems(items []any) []mention.BodyItem {
	body := make([]mention.BodyItem, 0, len(items))
	for _, raw := range items {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch strings.ToUpper(firstString(entry, []string{"type", "kind", "tag"})) {
		case "TEXT":
			body = append(body, mention.BodyItem{
				Kind:    mention.KindText,
				Content: firstString(entry, []string{"text", "content"}),
			})
		case "AT":
			item := mention.BodyItem{
				Kind:        mention.KindAt,
				DisplayName: firstString(entry, []string{"displayName", "nick", "name"}),
			}
			if agentID, ok := asInt64(firstValue(entry, []string{"agentId", "robotId"})); ok && agentID != 0 {
				item.AgentID = agentID
			} else {
				item.HumanID = firstString(entry, []string{"humanId", "staffId", "userId"})
			}
			body = append(body, item)
		case "LINK":
			body = append(body, mention.BodyItem{
				Kind:  mention.KindLink,
				Label: firstString(entry, []string{"label", "title", "text"}),
			})
		default:
			// unknown kinds carry nothing the gating logic can use
			continue
		}
	}
	return body
}

func firstValue(payload map[string]any, keys []string) any {
	for _, key := range keys {
		if raw, ok := payload[key]; ok && raw != nil {
			return raw
		}
	}
	return nil
}

func firstString(payload map[string]any, keys []string) string {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		if value := asString(raw); value != "" {
			return value
		}
	}
	return ""
}

func asString(raw any) string {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(value, 10)
	case int:
		return strconv.Itoa(value)
	default:
		return ""
	}
}

func asInt64(raw any) (int64, bool) {
	switch value := raw.(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case float64:
		if value != float64(int64(value)) {
			return 0, false
		}
		return int64(value), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
