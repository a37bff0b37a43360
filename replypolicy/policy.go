// Package replypolicy resolves per-conversation reply configuration and
// decides whether the bot should engage with an inbound group message.
package replypolicy

import "strings"

// ReplyMode governs when the bot engages in a conversation.
type ReplyMode string

const (
	// ModeIgnore drops the message entirely.
	ModeIgnore ReplyMode = "ignore"
	// ModeRecord persists context but never replies.
	ModeRecord ReplyMode = "record"
	// ModeMentionOnly replies only when the bot is mentioned directly.
	ModeMentionOnly ReplyMode = "mention_only"
	// ModeMentionAndWatch additionally engages when a watched identity is
	// mentioned by someone else.
	ModeMentionAndWatch ReplyMode = "mention_and_watch"
	// ModeProactive always authorizes a reply; the model suppresses its own
	// output via the silent sentinel when it has nothing to say.
	ModeProactive ReplyMode = "proactive"
)

// DefaultFollowUpWindowSeconds applies when a follow-up window is enabled
// but not sized.
const DefaultFollowUpWindowSeconds = 180

// ParseReplyMode normalizes a configured mode string. Dashes and casing are
// tolerated; unknown values report false.
func ParseReplyMode(raw string) (ReplyMode, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	switch ReplyMode(normalized) {
	case ModeIgnore, ModeRecord, ModeMentionOnly, ModeMentionAndWatch, ModeProactive:
		return ReplyMode(normalized), true
	default:
		return "", false
	}
}

// AccountConfig is the effective account-level configuration returned by the
// account resolver: bot display name, reply-mode settings, watch list, and
// per-group overrides. RequireMention is the legacy boolean that predates
// explicit reply modes.
type AccountConfig struct {
	BotName               string
	ReplyMode             string
	RequireMention        *bool
	WatchList             []string
	FollowUpEnabled       bool
	FollowUpWindowSeconds int
	ExtraSystemPrompt     string
	Groups                map[string]GroupOverride
}

// GroupOverride carries per-conversation overrides; nil/empty fields fall
// back to the account level.
type GroupOverride struct {
	ReplyMode             string
	FollowUpEnabled       *bool
	FollowUpWindowSeconds *int
	WatchList             []string
	ExtraSystemPrompt     string
}

// GroupPolicy is the fully-resolved policy for one conversation.
type GroupPolicy struct {
	Mode                  ReplyMode
	FollowUpEnabled       bool
	FollowUpWindowSeconds int
	WatchList             []string
	ExtraSystemPrompt     string
}

// Resolve merges account settings with an optional per-group override.
// Precedence per field: group override, then account setting, then the
// legacy-inferred default.
func Resolve(account AccountConfig, group *GroupOverride) GroupPolicy {
	policy := GroupPolicy{
		Mode:                  legacyReplyMode(account),
		FollowUpEnabled:       account.FollowUpEnabled,
		FollowUpWindowSeconds: account.FollowUpWindowSeconds,
		WatchList:             account.WatchList,
		ExtraSystemPrompt:     strings.TrimSpace(account.ExtraSystemPrompt),
	}
	if mode, ok := ParseReplyMode(account.ReplyMode); ok {
		policy.Mode = mode
	}
	if group != nil {
		if mode, ok := ParseReplyMode(group.ReplyMode); ok {
			policy.Mode = mode
		}
		if group.FollowUpEnabled != nil {
			policy.FollowUpEnabled = *group.FollowUpEnabled
		}
		if group.FollowUpWindowSeconds != nil {
			policy.FollowUpWindowSeconds = *group.FollowUpWindowSeconds
		}
		if len(group.WatchList) > 0 {
			policy.WatchList = group.WatchList
		}
		if strings.TrimSpace(group.ExtraSystemPrompt) != "" {
			policy.ExtraSystemPrompt = strings.TrimSpace(group.ExtraSystemPrompt)
		}
	}
	if policy.FollowUpEnabled && policy.FollowUpWindowSeconds <= 0 {
		policy.FollowUpWindowSeconds = DefaultFollowUpWindowSeconds
	}
	return policy
}

// legacyReplyMode derives a mode from the two pre-mode settings: an explicit
// require-mention=false means the bot was configured to speak freely, a
// non-empty watch list means conditional engagement, anything else means
// mention-gated.
func legacyReplyMode(account AccountConfig) ReplyMode {
	if account.RequireMention != nil && !*account.RequireMention {
		return ModeProactive
	}
	if len(account.WatchList) > 0 {
		return ModeMentionAndWatch
	}
	return ModeMentionOnly
}
