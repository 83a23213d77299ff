package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/delivery"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
	"github.com/scarlettdetekelala/hermes-agent/internal/store"
	"github.com/scarlettdetekelala/hermes-agent/internal/tracing"
)

const tracerName = "hermes-agent/supervisor"

// turn builds the scheduler.TurnFunc closure: steps 1-6 of spec §4.F's
// worker() (the scheduler itself owns step 7, the pending-slot loop).
func (s *Supervisor) turn(invoker *agent.Invoker) scheduler.TurnFunc {
	return func(ctx context.Context, event bus.InboundMessage, interrupt *scheduler.InterruptHandle) {
		key := event.SessionKey()
		now := time.Now()

		turnID := uuid.New()
		ctx = store.WithSessionKey(ctx, key)
		ctx = store.WithTurnID(ctx, turnID)

		ctx, span := tracing.StartSpan(ctx, tracerName, "gateway.turn",
			attribute.String("session.key", key.String()),
			attribute.String("platform", string(event.Source.Platform)),
			attribute.String("turn.id", turnID.String()),
		)
		var turnErr error
		defer func() { tracing.EndWithError(span, turnErr) }()

		log := slog.With("session_key", key, "turn_id", turnID)

		ctxt, err := s.sessions.LoadOrCreate(key, event.Source, now)
		if err != nil {
			turnErr = err
			log.Error("supervisor: session load failed", "error", err)
			return
		}

		policy := s.cfg.GetResetPolicy(event.Source.Platform, string(event.Source.ChatType))
		ctxt, _, err = session.ApplyResetIfDue(s.sessions, policy, ctxt, now)
		if err != nil {
			turnErr = err
			log.Error("supervisor: reset policy application failed", "error", err)
			return
		}

		if s.cfg.IsResetTrigger(event.Text) {
			s.handleExplicitReset(ctx, log, key, event, now)
			return
		}

		stopTyping := s.startTyping(ctx, event.Source.Platform, event.Source.ChatID)
		defer stopTyping()

		resp, err := s.invokeAgent(ctx, invoker, event, key, ctxt.History, interrupt)
		if err != nil {
			turnErr = err
			log.Error("supervisor: agent invocation failed", "error", err)
			s.deliverToOrigin(ctx, log, formatAgentError(err), event)
			return
		}

		entries := append([]session.Entry{{Role: "user", Content: event.Text}}, resp.Messages...)
		if _, err := s.sessions.Append(key, now, entries...); err != nil {
			log.Error("supervisor: session append failed", "error", err)
		}

		if resp.FinalResponse == "" {
			return
		}
		s.deliverToOrigin(ctx, log, resp.FinalResponse, event)
	}
}

// invokeAgent wraps the run_conversation call in its own child span so a
// slow or failing engine call is distinguishable in a trace from session
// I/O or delivery fan-out.
func (s *Supervisor) invokeAgent(ctx context.Context, invoker *agent.Invoker, event bus.InboundMessage, key session.Key, history []session.Entry, interrupt *scheduler.InterruptHandle) (agent.Response, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "gateway.turn.invoke")
	resp, err := invoker.Invoke(ctx, event.Text, key.String(), history, interrupt)
	tracing.EndWithError(span, err)
	return resp, err
}

func (s *Supervisor) handleExplicitReset(ctx context.Context, log *slog.Logger, key session.Key, event bus.InboundMessage, now time.Time) {
	if _, err := s.sessions.Reset(key, now); err != nil {
		log.Error("supervisor: explicit reset failed", "error", err)
		return
	}
	s.deliverToOrigin(ctx, log, "Conversation cleared. Starting fresh.", event)
}

func (s *Supervisor) deliverToOrigin(ctx context.Context, log *slog.Logger, content string, event bus.InboundMessage) {
	origin := event.Source
	targets, dropped := delivery.ResolveTargets(ctx, s.cfg, s.directory, []string{"origin"}, &origin)
	for spec, err := range dropped {
		log.Warn("supervisor: delivery target dropped", "target", spec, "error", err)
	}
	for target, res := range s.router.Deliver(ctx, content, targets, delivery.Options{}) {
		if !res.Success {
			log.Error("supervisor: delivery failed", "target", target, "error", res.Error)
		}
	}
}

// startTyping launches the typing-indicator refresh task (spec §4.F step
// 3: pings the adapter every 2s, since the platform status expires in
// ~5s) and returns a stop function safe to call on every exit path,
// including after a panic recovery higher up the call stack.
func (s *Supervisor) startTyping(ctx context.Context, platform config.Platform, chatID string) func() {
	adapter, ok := s.adapters[platform]
	if !ok || chatID == "" {
		return func() {}
	}

	typingCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		_ = adapter.SendTyping(typingCtx, chatID)
		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				_ = adapter.SendTyping(typingCtx, chatID)
			}
		}
	}()
	return cancel
}

func formatAgentError(err error) string {
	return "Sorry, something went wrong processing that: " + err.Error()
}
