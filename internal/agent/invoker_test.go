package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

func TestInvokerPassesThroughResponse(t *testing.T) {
	inv := NewInvoker(func(_ context.Context, prompt, sessionID string, _ []session.Entry, _ *scheduler.InterruptHandle) (Response, error) {
		require.Equal(t, "hello", prompt)
		require.Equal(t, "sess-1", sessionID)
		return Response{FinalResponse: "hi there", Completed: true}, nil
	})

	resp, err := inv.Invoke(context.Background(), "hello", "sess-1", nil, scheduler.NewInterruptHandle())
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.FinalResponse)
	require.True(t, resp.Completed)
}

func TestInvokerWrapsEngineErrorAsErrAgent(t *testing.T) {
	inv := NewInvoker(func(context.Context, string, string, []session.Entry, *scheduler.InterruptHandle) (Response, error) {
		return Response{}, errors.New("boom")
	})

	_, err := inv.Invoke(context.Background(), "p", "s", nil, scheduler.NewInterruptHandle())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAgent))
}

func TestCronSessionIDFormat(t *testing.T) {
	require.Equal(t, "cron_job-1_20260730_120000", CronSessionID("job-1", "20260730_120000"))
}
