package dispatch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/memohai/chatgate/mention"
)

var atTokenPattern = regexp.MustCompile(`@([\w.]+)`)

// MentionPlan is the merged set of notification directives for one reply.
// ExplicitUserIDs are the caller-directed mentions (rendered as a visible
// prefix); UserIDs additionally contains ids auto-resolved from the reply
// text. Both lists are deduplicated, user ids case-insensitively.
type MentionPlan struct {
	AtAll           bool
	ExplicitUserIDs []string
	UserIDs         []string
	AgentIDs        []int64
}

// BuildMentionPlan merges caller-directed mentions with mentions resolved
// from @-tokens in the reply text. At-all takes precedence and suppresses
// everything else. Token resolution only happens for group targets with a
// non-empty known-id set; unknown tokens are left alone.
func BuildMentionPlan(atAll bool, explicitUserIDs []string, text string, known mention.IDSet, group bool) MentionPlan {
	if atAll {
		return MentionPlan{AtAll: true}
	}
	plan := MentionPlan{}
	for _, id := range explicitUserIDs {
		id = strings.TrimSpace(id)
		if id == "" || containsFold(plan.UserIDs, id) {
			continue
		}
		plan.ExplicitUserIDs = append(plan.ExplicitUserIDs, id)
		plan.UserIDs = append(plan.UserIDs, id)
	}
	if !group || known.IsEmpty() {
		return plan
	}

	users := make(map[string]string, len(known.UserIDs))
	for _, id := range known.UserIDs {
		users[strings.ToLower(id)] = id
	}
	agents := make(map[string]int64, len(known.AgentIDs))
	for _, id := range known.AgentIDs {
		agents[strconv.FormatInt(id, 10)] = id
	}

	for _, match := range atTokenPattern.FindAllStringSubmatch(text, -1) {
		token := strings.ToLower(match[1])
		if id, ok := users[token]; ok {
			if !containsFold(plan.UserIDs, id) {
				plan.UserIDs = append(plan.UserIDs, id)
			}
			continue
		}
		if id, ok := agents[token]; ok && !containsAgent(plan.AgentIDs, id) {
			plan.AgentIDs = append(plan.AgentIDs, id)
		}
	}
	return plan
}

// FormatPrefix renders the visible mention notation for the first chunk:
// the all marker, or the caller's explicit user ids as "@id" tokens with a
// trailing space. Auto-resolved ids are already present in the text and get
// no prefix.
func FormatPrefix(plan MentionPlan) string {
	if plan.AtAll {
		return "@all "
	}
	if len(plan.ExplicitUserIDs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, id := range plan.ExplicitUserIDs {
		b.WriteString("@")
		b.WriteString(id)
		b.WriteString(" ")
	}
	return b.String()
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func containsAgent(list []int64, value int64) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
