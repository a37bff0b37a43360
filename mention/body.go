// Package mention parses structured mention data out of normalized message
// bodies. A body is an ordered sequence of typed items (text, at, link); all
// functions here are pure and tolerate malformed items by skipping them.
package mention

import "strings"

type ItemKind string

const (
	KindText ItemKind = "text"
	KindAt   ItemKind = "at"
	KindLink ItemKind = "link"
)

// BodyItem is one fragment of an inbound message body. For KindAt items,
// HumanID and AgentID are mutually exclusive; AgentID zero means unset.
// DisplayName may accompany either id or stand alone.
type BodyItem struct {
	Kind        ItemKind
	Content     string
	Label       string
	DisplayName string
	HumanID     string
	AgentID     int64
}

// IDSet holds the mention identities extracted from one body, deduplicated
// and in first-seen order. UserIDs keep the casing of their first occurrence.
type IDSet struct {
	UserIDs  []string
	AgentIDs []int64
}

func (s IDSet) IsEmpty() bool {
	return len(s.UserIDs) == 0 && len(s.AgentIDs) == 0
}

// PlainText folds the body into display text: text content as-is, at-items
// as their bare display name, links as their label.
func PlainText(body []BodyItem) string {
	var b strings.Builder
	for _, item := range body {
		switch item.Kind {
		case KindText:
			b.WriteString(item.Content)
		case KindAt:
			b.WriteString(item.DisplayName)
		case KindLink:
			b.WriteString(item.Label)
		}
	}
	return b.String()
}

// RawText folds the body keeping mention markers: at-items render as
// "@name" so downstream consumers can see who was addressed. The at-handling
// rule is the only divergence from PlainText.
func RawText(body []BodyItem) string {
	var b strings.Builder
	for _, item := range body {
		switch item.Kind {
		case KindText:
			b.WriteString(item.Content)
		case KindAt:
			name := item.DisplayName
			if name == "" {
				name = item.HumanID
			}
			if name == "" {
				continue
			}
			b.WriteString("@")
			b.WriteString(name)
		case KindLink:
			b.WriteString(item.Label)
		}
	}
	return b.String()
}
