package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/memohai/chatgate/mention"
)

// Request describes one reply to deliver. AtAll/AtUserIDs are the caller's
// explicit mention directives; KnownIDs feeds @-token resolution for group
// targets. Account is log context only.
type Request struct {
	Account   string
	Target    string
	Text      string
	Markdown  bool
	AtAll     bool
	AtUserIDs []string
	KnownIDs  mention.IDSet
}

// Options tunes a Dispatcher. Zero values mean defaults: DefaultChunkLimit,
// no rate limiting, no status sink.
type Options struct {
	ChunkLimit int
	Limiter    *rate.Limiter
	Status     StatusSink
}

// Dispatcher emits chunked sends through the external send primitive.
// Chunks go out sequentially in order; a failed chunk is logged and the loop
// continues, so delivery is best-effort with no rollback.
type Dispatcher struct {
	sender     Sender
	status     StatusSink
	limiter    *rate.Limiter
	chunkLimit int
	logger     *slog.Logger
	now        func() time.Time
}

func NewDispatcher(log *slog.Logger, sender Sender, opts Options) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	limit := opts.ChunkLimit
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	return &Dispatcher{
		sender:     sender,
		status:     opts.Status,
		limiter:    opts.Limiter,
		chunkLimit: limit,
		logger:     log.With(slog.String("service", "dispatch")),
		now:        time.Now,
	}
}

// Dispatch sends the reply and returns the number of chunks delivered.
// Empty or whitespace-only text is a no-op. Send failures are captured and
// logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) int {
	if d == nil || d.sender == nil {
		return 0
	}
	if strings.TrimSpace(req.Text) == "" {
		return 0
	}
	target := strings.TrimSpace(req.Target)
	if target == "" {
		d.logger.Warn("dispatch target missing", slog.String("account", req.Account))
		return 0
	}

	plan := BuildMentionPlan(req.AtAll, req.AtUserIDs, req.Text, req.KnownIDs, IsGroupTarget(target))
	chunks := Chunk(req.Text, d.chunkLimit)

	textType := NodeText
	if req.Markdown {
		textType = NodeMarkdown
	}

	sent := 0
	for i, chunk := range chunks {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				d.logger.Warn(
					"outbound rate wait aborted",
					slog.String("account", req.Account),
					slog.String("target", target),
					slog.Any("error", err),
				)
				return sent
			}
		}
		nodes := make([]Node, 0, 3)
		if i == 0 {
			if plan.AtAll || len(plan.UserIDs) > 0 {
				nodes = append(nodes, Node{Type: NodeAt, AtAll: plan.AtAll, UserIDs: plan.UserIDs})
			}
			if len(plan.AgentIDs) > 0 {
				nodes = append(nodes, Node{Type: NodeAtAgent, AgentIDs: plan.AgentIDs})
			}
			chunk = FormatPrefix(plan) + chunk
		}
		nodes = append(nodes, Node{Type: textType, Text: chunk})

		result, err := d.sender.Send(ctx, SendRequest{
			Target: target,
			Nodes:  nodes,
			UUID:   uuid.NewString(),
		})
		if err != nil {
			d.logger.Error(
				"send chunk failed",
				slog.String("account", req.Account),
				slog.String("target", target),
				slog.Int("chunk", i),
				slog.Int("chunks", len(chunks)),
				slog.Any("error", err),
			)
			continue
		}
		sent++
		d.logger.Debug(
			"chunk sent",
			slog.String("target", target),
			slog.Int("chunk", i),
			slog.String("message_id", result.MessageID),
		)
		if d.status != nil {
			at := d.now()
			d.status.Patch(ctx, StatusPatch{LastOutboundAt: &at})
		}
	}
	return sent
}
