package mention

import (
	"strconv"
	"strings"
)

// WasBotMentioned reports whether some at-item addresses the bot by display
// name. Matching is a case-insensitive whole-name comparison; substrings
// never count. An empty bot name never matches anything.
func WasBotMentioned(body []BodyItem, botName string) bool {
	if strings.TrimSpace(botName) == "" {
		return false
	}
	for _, item := range body {
		if item.Kind != KindAt {
			continue
		}
		if item.DisplayName == "" {
			continue
		}
		if strings.EqualFold(item.DisplayName, botName) {
			return true
		}
	}
	return false
}

// MatchWatchList scans at-items in body order against the configured watch
// entries and returns the first matching entry in its original spelling.
// Within one item the sources are tried in strict priority: human id
// (case-insensitive), then agent id (watch entry parsed as integer), then
// display name (case-insensitive).
func MatchWatchList(body []BodyItem, watch []string) (string, bool) {
	if len(watch) == 0 {
		return "", false
	}
	for _, item := range body {
		if item.Kind != KindAt {
			continue
		}
		if item.HumanID != "" {
			for _, entry := range watch {
				if entry != "" && strings.EqualFold(entry, item.HumanID) {
					return entry, true
				}
			}
		}
		if item.AgentID != 0 {
			for _, entry := range watch {
				parsed, err := strconv.ParseInt(strings.TrimSpace(entry), 10, 64)
				if err == nil && parsed == item.AgentID {
					return entry, true
				}
			}
		}
		if item.DisplayName != "" {
			for _, entry := range watch {
				if entry != "" && strings.EqualFold(entry, item.DisplayName) {
					return entry, true
				}
			}
		}
	}
	return "", false
}

// ExtractMentionIDs collects the mentioned identities from body order into an
// IDSet. An at-item carrying an agent id contributes to AgentIDs unless its
// display name names the bot itself, in which case the item is skipped
// entirely. Items carrying a human id contribute to UserIDs with a
// case-insensitive dedup key that preserves the first-seen casing.
func ExtractMentionIDs(body []BodyItem, botName string) IDSet {
	var set IDSet
	seenUsers := make(map[string]struct{})
	seenAgents := make(map[int64]struct{})
	for _, item := range body {
		if item.Kind != KindAt {
			continue
		}
		if item.AgentID != 0 {
			if botName != "" && item.DisplayName != "" && strings.EqualFold(item.DisplayName, botName) {
				continue
			}
			if _, ok := seenAgents[item.AgentID]; ok {
				continue
			}
			seenAgents[item.AgentID] = struct{}{}
			set.AgentIDs = append(set.AgentIDs, item.AgentID)
			continue
		}
		if item.HumanID == "" {
			continue
		}
		key := strings.ToLower(item.HumanID)
		if _, ok := seenUsers[key]; ok {
			continue
		}
		seenUsers[key] = struct{}{}
		set.UserIDs = append(set.UserIDs, item.HumanID)
	}
	return set
}
