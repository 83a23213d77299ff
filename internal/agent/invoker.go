// Package agent bridges a turn to the external agent engine (spec §4.G,
// §6 "Agent engine (consumed)"). The engine itself — LLM calls, tool
// execution, context compression — is an opaque collaborator; this package
// only defines the call contract and plumbs the interrupt handle through.
package agent

import (
	"context"
	"fmt"

	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

// Response is the agent engine's reply to one run_conversation call
// (spec §6): the text to deliver, the transcript entries to append to
// session history, and whether the turn ran to natural completion or
// stopped early because interrupt was observed.
type Response struct {
	FinalResponse string
	Messages      []session.Entry
	Completed     bool
}

// RunConversation is the opaque external collaborator's call signature.
// Implementations must poll interrupt at well-defined yield points (between
// tool calls, between streamed chunks) and return whatever partial output
// has accumulated when it is set — the core never force-kills this call.
type RunConversation func(ctx context.Context, prompt, sessionID string, history []session.Entry, interrupt *scheduler.InterruptHandle) (Response, error)

// ErrAgent wraps any error the agent engine returns. Per spec §7
// AgentError: the turn ends, the user receives a brief error message, and
// the session history keeps the user's message but marks the turn failed.
var ErrAgent = fmt.Errorf("agent: engine error")

// Invoker wraps one RunConversation implementation, letting the rest of
// the gateway depend on a narrow interface rather than the raw function
// type (useful for test doubles).
type Invoker struct {
	run RunConversation
}

// NewInvoker wraps run as an Invoker.
func NewInvoker(run RunConversation) *Invoker {
	return &Invoker{run: run}
}

// Invoke calls the wrapped agent engine and normalizes its error into
// ErrAgent so callers can errors.Is against a single sentinel regardless of
// what the underlying engine implementation returns.
func (i *Invoker) Invoke(ctx context.Context, prompt, sessionID string, history []session.Entry, interrupt *scheduler.InterruptHandle) (Response, error) {
	resp, err := i.run(ctx, prompt, sessionID, history, interrupt)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrAgent, err)
	}
	return resp, nil
}

// CronSessionID builds the isolated session id a cron job run uses
// (spec §4.I step 1: "cron_<job_id>_<timestamp>").
func CronSessionID(jobID string, timestamp string) string {
	return fmt.Sprintf("cron_%s_%s", jobID, timestamp)
}
