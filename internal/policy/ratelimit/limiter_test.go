package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterGlobalScopeSpansHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: 100 * time.Millisecond, Scope: ScopeGlobal})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "global scope must pace across hosts")
}

func TestLimiterHostScopeIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: time.Second, Scope: ScopeHost})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 200*time.Millisecond, "host B should not wait on host A")
}

func TestLimiterZeroDelayUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/"))
	}
	require.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: 10 * time.Second})
	require.NoError(t, l.Wait(context.Background(), "https://a.example/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://a.example/"))
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	s, err := ParseScope("HOST")
	require.NoError(t, err)
	require.Equal(t, ScopeHost, s)
	s, err = ParseScope("")
	require.NoError(t, err)
	require.Equal(t, ScopeGlobal, s)
	_, err = ParseScope("domain")
	require.Error(t, err)
}
