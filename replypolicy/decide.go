package replypolicy

import (
	"log/slog"
	"strings"

	"github.com/memohai/chatgate/followup"
	"github.com/memohai/chatgate/mention"
)

// Outcome is what the caller should do with an inbound message.
type Outcome string

const (
	// OutcomeSkip drops the message: no session write, no reply.
	OutcomeSkip Outcome = "skip"
	// OutcomeRecordOnly persists context without replying.
	OutcomeRecordOnly Outcome = "record_only"
	// OutcomeReply hands the message to the agent, optionally with a system
	// prompt addendum.
	OutcomeReply Outcome = "reply"
)

// Decision is the result of evaluating a policy against one message.
// SystemPrompt is only meaningful for OutcomeReply; Reason is a short tag
// for logs.
type Decision struct {
	Outcome      Outcome
	SystemPrompt string
	Reason       string
	Mentioned    bool
	WatchMatch   string
}

// Decider evaluates resolved group policies against parsed message bodies.
type Decider struct {
	tracker *followup.Tracker
	logger  *slog.Logger
}

func NewDecider(log *slog.Logger, tracker *followup.Tracker) *Decider {
	if log == nil {
		log = slog.Default()
	}
	return &Decider{
		tracker: tracker,
		logger:  log.With(slog.String("service", "replypolicy")),
	}
}

// Decide runs the reply-mode state machine for one group message.
// Watch-list and follow-up checks only run when their inputs are non-empty.
func (d *Decider) Decide(policy GroupPolicy, body []mention.BodyItem, botName, conversationID string) Decision {
	decision := d.evaluate(policy, body, botName, conversationID)
	if decision.Outcome == OutcomeReply && policy.ExtraSystemPrompt != "" {
		// the extra prompt applies even when the chosen addendum is empty
		if decision.SystemPrompt == "" {
			decision.SystemPrompt = policy.ExtraSystemPrompt
		} else {
			decision.SystemPrompt = decision.SystemPrompt + "\n\n" + policy.ExtraSystemPrompt
		}
	}
	d.logger.Debug(
		"reply decision",
		slog.String("conversation_id", conversationID),
		slog.String("mode", string(policy.Mode)),
		slog.String("outcome", string(decision.Outcome)),
		slog.String("reason", decision.Reason),
	)
	return decision
}

func (d *Decider) evaluate(policy GroupPolicy, body []mention.BodyItem, botName, conversationID string) Decision {
	switch policy.Mode {
	case ModeIgnore:
		return Decision{Outcome: OutcomeSkip, Reason: "ignore"}
	case ModeRecord:
		return Decision{Outcome: OutcomeRecordOnly, Reason: "record"}
	}

	mentioned := mention.WasBotMentioned(body, botName)
	if mentioned {
		return Decision{Outcome: OutcomeReply, Reason: "mention", Mentioned: true}
	}

	switch policy.Mode {
	case ModeMentionOnly:
		if d.withinFollowUp(policy, conversationID) {
			return Decision{Outcome: OutcomeReply, Reason: "follow_up", SystemPrompt: FollowUpPrompt()}
		}
		return Decision{Outcome: OutcomeSkip, Reason: "not_mentioned"}
	case ModeMentionAndWatch:
		if entry, ok := mention.MatchWatchList(body, policy.WatchList); ok {
			return Decision{Outcome: OutcomeReply, Reason: "watch", SystemPrompt: WatchPrompt(entry), WatchMatch: entry}
		}
		if d.withinFollowUp(policy, conversationID) {
			return Decision{Outcome: OutcomeReply, Reason: "follow_up", SystemPrompt: FollowUpPrompt()}
		}
		return Decision{Outcome: OutcomeSkip, Reason: "not_mentioned"}
	case ModeProactive:
		// a watch match still takes priority over the generic proactive prompt
		if entry, ok := mention.MatchWatchList(body, policy.WatchList); ok {
			return Decision{Outcome: OutcomeReply, Reason: "watch", SystemPrompt: WatchPrompt(entry), WatchMatch: entry}
		}
		return Decision{Outcome: OutcomeReply, Reason: "proactive", SystemPrompt: ProactivePrompt()}
	default:
		return Decision{Outcome: OutcomeSkip, Reason: "unknown_mode"}
	}
}

func (d *Decider) withinFollowUp(policy GroupPolicy, conversationID string) bool {
	if !policy.FollowUpEnabled || policy.FollowUpWindowSeconds <= 0 {
		return false
	}
	if d.tracker == nil || strings.TrimSpace(conversationID) == "" {
		return false
	}
	return d.tracker.WithinWindow(conversationID, policy.FollowUpWindowSeconds)
}
