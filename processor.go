package chatgate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/memohai/chatgate/dispatch"
	"github.com/memohai/chatgate/followup"
	"github.com/memohai/chatgate/inbound"
	"github.com/memohai/chatgate/mention"
	"github.com/memohai/chatgate/replypolicy"
)

// Processor wires the core together: normalize the payload, evaluate the
// reply policy, run the agent, and dispatch the chunked reply. One inbound
// message runs start to finish with no internal parallelism; the tracker is
// the only state shared between messages.
type Processor struct {
	accounts   AccountResolver
	agent      AgentRunner
	sessions   SessionStore
	tracker    *followup.Tracker
	decider    *replypolicy.Decider
	dispatcher *dispatch.Dispatcher
	status     dispatch.StatusSink
	logger     *slog.Logger
	now        func() time.Time
}

func NewProcessor(
	log *slog.Logger,
	accounts AccountResolver,
	agent AgentRunner,
	sessions SessionStore,
	tracker *followup.Tracker,
	dispatcher *dispatch.Dispatcher,
	status dispatch.StatusSink,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		accounts:   accounts,
		agent:      agent,
		sessions:   sessions,
		tracker:    tracker,
		decider:    replypolicy.NewDecider(log, tracker),
		dispatcher: dispatcher,
		status:     status,
		logger:     log.With(slog.String("component", "processor")),
		now:        time.Now,
	}
}

// HandleInbound processes one raw inbound payload for the account. It
// returns an error only for infrastructure failures (account resolution,
// agent run); gating outcomes and send failures are logged, not returned.
func (p *Processor) HandleInbound(ctx context.Context, accountID string, payload map[string]any) error {
	if p.accounts == nil || p.agent == nil {
		return fmt.Errorf("processor not configured")
	}
	evt := inbound.Normalize(payload)
	if evt.IsEmpty() {
		return nil
	}
	if p.status != nil {
		at := p.now()
		p.status.Patch(ctx, dispatch.StatusPatch{LastInboundAt: &at})
	}

	account, err := p.accounts.Resolve(ctx, accountID)
	if err != nil {
		return fmt.Errorf("resolve account %s: %w", accountID, err)
	}

	if evt.Kind == inbound.ChatGroup {
		return p.handleGroup(ctx, accountID, account, evt)
	}
	return p.handleDirect(ctx, accountID, account, evt)
}

// handleDirect always replies: mention gating and token resolution apply to
// group conversations only.
func (p *Processor) handleDirect(ctx context.Context, accountID string, account replypolicy.AccountConfig, evt inbound.Event) error {
	p.persist(ctx, accountID, evt, false)
	reply, err := p.runAgent(ctx, accountID, account, evt, replypolicy.Decision{Outcome: replypolicy.OutcomeReply}, mention.IDSet{})
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	p.dispatcher.Dispatch(ctx, dispatch.Request{
		Account:   accountID,
		Target:    evt.SenderID,
		Text:      reply.Text,
		AtAll:     reply.AtAll,
		AtUserIDs: reply.AtUserIDs,
	})
	return nil
}

func (p *Processor) handleGroup(ctx context.Context, accountID string, account replypolicy.AccountConfig, evt inbound.Event) error {
	var override *replypolicy.GroupOverride
	if group, ok := account.Groups[evt.ConversationID]; ok {
		override = &group
	}
	policy := replypolicy.Resolve(account, override)
	decision := p.decider.Decide(policy, evt.Body, account.BotName, evt.ConversationID)

	switch decision.Outcome {
	case replypolicy.OutcomeSkip:
		p.logger.Info(
			"inbound skipped by reply policy",
			slog.String("account", accountID),
			slog.String("conversation_id", evt.ConversationID),
			slog.String("reason", decision.Reason),
		)
		return nil
	case replypolicy.OutcomeRecordOnly:
		p.persist(ctx, accountID, evt, decision.Mentioned)
		return nil
	}

	p.persist(ctx, accountID, evt, decision.Mentioned)
	ids := mention.ExtractMentionIDs(evt.Body, account.BotName)
	reply, err := p.runAgent(ctx, accountID, account, evt, decision, ids)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}

	sent := p.dispatcher.Dispatch(ctx, dispatch.Request{
		Account:   accountID,
		Target:    "group:" + evt.ConversationID,
		Text:      reply.Text,
		AtAll:     reply.AtAll,
		AtUserIDs: reply.AtUserIDs,
		KnownIDs:  ids,
	})
	if sent > 0 && p.tracker != nil {
		p.tracker.RecordReply(evt.ConversationID)
	}
	return nil
}

// runAgent invokes the agent and filters sentinel/empty replies. A nil
// reply with nil error means nothing should be sent.
func (p *Processor) runAgent(
	ctx context.Context,
	accountID string,
	account replypolicy.AccountConfig,
	evt inbound.Event,
	decision replypolicy.Decision,
	ids mention.IDSet,
) (*AgentReply, error) {
	reply, err := p.agent.Run(ctx, AgentRequest{
		AccountID:         accountID,
		SessionKey:        SessionKey(accountID, evt.Kind, evt.ConversationID),
		ConversationKind:  evt.Kind,
		ConversationID:    evt.ConversationID,
		SenderID:          evt.SenderID,
		SenderName:        evt.SenderName,
		Text:              mention.PlainText(evt.Body) + mentionHint(ids),
		WasMentioned:      decision.Mentioned,
		GroupSystemPrompt: decision.SystemPrompt,
	})
	if err != nil {
		p.logger.Error(
			"agent run failed",
			slog.String("account", accountID),
			slog.String("conversation_id", evt.ConversationID),
			slog.Any("error", err),
		)
		return nil, err
	}
	if replypolicy.IsSilentReply(reply.Text) {
		p.logger.Debug(
			"agent chose silence",
			slog.String("account", accountID),
			slog.String("conversation_id", evt.ConversationID),
		)
		return nil, nil
	}
	return &reply, nil
}

func (p *Processor) persist(ctx context.Context, accountID string, evt inbound.Event, wasMentioned bool) {
	if p.sessions == nil {
		return
	}
	record := SessionRecord{
		AccountID:      accountID,
		SessionKey:     SessionKey(accountID, evt.Kind, evt.ConversationID),
		ConversationID: evt.ConversationID,
		SenderID:       evt.SenderID,
		SenderName:     evt.SenderName,
		Text:           mention.RawText(evt.Body),
		WasMentioned:   wasMentioned,
		ReceivedAt:     evt.ReceivedAt,
	}
	if err := p.sessions.Persist(ctx, record); err != nil {
		p.logger.Warn(
			"persist inbound context failed",
			slog.String("account", accountID),
			slog.String("conversation_id", evt.ConversationID),
			slog.Any("error", err),
		)
	}
}
