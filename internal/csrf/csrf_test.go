package csrf

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/session"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsIdempotentWithinStorageLifetime(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(session.NewMemoryStorage(nil), 0)

	first, err := g.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, first, TokenLength)

	second, err := g.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateRotatesAfterClear(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(session.NewMemoryStorage(nil), 0)

	first, err := g.Generate(ctx)
	require.NoError(t, err)
	require.NoError(t, g.Clear(ctx))

	require.ErrorIs(t, g.Validate(ctx, first), ErrMissingToken)

	second, err := g.Generate(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(session.NewMemoryStorage(nil), 0)

	require.ErrorIs(t, g.Validate(ctx, "anything"), ErrMissingToken)

	token, err := g.Generate(ctx)
	require.NoError(t, err)
	require.NoError(t, g.Validate(ctx, token))
	require.ErrorIs(t, g.Validate(ctx, token+"x"), ErrMismatch)
	require.ErrorIs(t, g.Validate(ctx, ""), ErrMismatch)
}

func TestTokenExpiresWithStorage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	storage := session.NewMemoryStorage(func() time.Time { return now })
	g := NewGuard(storage, time.Hour)

	first, err := g.Generate(ctx)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	second, err := g.Generate(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
