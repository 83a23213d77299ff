package channels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseGateDMAlwaysPasses(t *testing.T) {
	require.True(t, ResponseGate(true, false, "chat1", nil, true))
}

func TestResponseGateGroupRequiresMentionUnlessFree(t *testing.T) {
	require.False(t, ResponseGate(false, false, "chat1", nil, true))
	require.True(t, ResponseGate(false, true, "chat1", nil, true))
}

func TestResponseGateFreeListWinsOverRequireMention(t *testing.T) {
	free := map[string]struct{}{"chat1": {}}
	require.True(t, ResponseGate(false, false, "chat1", free, true))
	require.False(t, ResponseGate(false, false, "chat2", free, true))
}

func TestIsAllowedEmptyAllowlistPermitsEveryone(t *testing.T) {
	base := NewBaseChannel("test", nil, nil, 0, 0)
	require.True(t, base.IsAllowed("anyone"))
}

func TestIsAllowedRestrictsToList(t *testing.T) {
	base := NewBaseChannel("test", nil, []string{"u1", "u2"}, 0, 0)
	require.True(t, base.IsAllowed("u1"))
	require.False(t, base.IsAllowed("u3"))
}
