package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	list := NewMemoryList()
	list.now = func() time.Time { return now }

	require.NoError(t, list.Revoke(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, list.Revoke(ctx, "stale", now.Add(-time.Second)))

	revoked, err := list.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = list.IsRevoked(ctx, "stale")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = list.IsRevoked(ctx, "live")
	assert.False(t, revoked, "entries lapse with the token")
}
