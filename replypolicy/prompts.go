package replypolicy

import (
	"fmt"
	"strings"
	"unicode"
)

// SilentToken is the sentinel the agent outputs when it decides not to speak.
// Prompt builders below instruct it; IsSilentReply detects it.
const SilentToken = "NO_REPLY"

// FollowUpPrompt addresses the case where nobody mentioned the bot but the
// conversation is still inside the follow-up window of its last reply.
func FollowUpPrompt() string {
	return "You were not mentioned in this message, but you replied in this conversation moments ago. " +
		"Treat it as a possible follow-up to your reply. If it clearly continues that topic, answer it; " +
		"otherwise output exactly " + SilentToken + " and nothing else."
}

// WatchPrompt addresses the case where a watched identity was mentioned by
// someone else.
func WatchPrompt(identity string) string {
	return fmt.Sprintf(
		"The message mentions %s, who is on your watch list, but does not mention you. "+
			"Step in only if you can help with what is being asked of them. "+
			"If not, output exactly %s and nothing else.", identity, SilentToken)
}

// ProactivePrompt addresses unprompted group traffic in proactive mode.
func ProactivePrompt() string {
	return "Nobody addressed you in this message. Join the conversation only when you can add something useful. " +
		"If you have nothing to add, output exactly " + SilentToken + " and nothing else."
}

// IsSilentReply reports whether the agent's output is the silence sentinel.
// The token counts at the start or end of the text when it sits on a word
// boundary, so "NO_REPLY." suppresses but "NO_REPLY_NEEDED" does not.
func IsSilentReply(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	token := []rune(SilentToken)
	value := []rune(trimmed)
	if len(value) < len(token) {
		return false
	}
	if string(value[:len(token)]) == SilentToken {
		if len(value) == len(token) || !isWordRune(value[len(token)]) {
			return true
		}
	}
	start := len(value) - len(token)
	if string(value[start:]) == SilentToken {
		if start == 0 || !isWordRune(value[start-1]) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
