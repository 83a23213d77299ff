package session

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Stats is an approximate accounting of a session's size, surfaced in logs
// and status output. It is not used for compression — trimming history is
// the agent's concern, not the gateway's.
type Stats struct {
	EntryCount     int
	ApproxTokens   int
	HistoryRunesUp int
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// ComputeStats estimates token usage across a context's history. If the
// encoder can't be loaded (e.g. no network access to fetch its vocab file),
// it falls back to a length-based heuristic (about 4 bytes per token)
// rather than failing —
// stats are informational, never load-bearing.
func ComputeStats(ctx *Context) Stats {
	st := Stats{EntryCount: len(ctx.History)}
	enc, err := encoder()
	for _, e := range ctx.History {
		st.HistoryRunesUp += len(e.Content)
		if err == nil {
			st.ApproxTokens += len(enc.Encode(e.Content, nil, nil))
		} else {
			st.ApproxTokens += approxTokensFallback(e.Content)
		}
	}
	return st
}

// approxTokensFallback is the degraded-mode estimate: roughly 4 characters
// per token, the commonly cited average for English text under BPE
// tokenizers.
func approxTokensFallback(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}
