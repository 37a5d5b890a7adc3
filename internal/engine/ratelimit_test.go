package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 3)
	principal := common.HexToAddress("0x4444444444444444444444444444444444444444")

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(principal), "attempt %d should be within burst", i)
	}
	assert.False(t, rl.Allow(principal), "burst exhausted")
}

func TestRateLimiter_IndependentPrincipals(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1)
	a := common.HexToAddress("0x5555555555555555555555555555555555555555")
	b := common.HexToAddress("0x6666666666666666666666666666666666666666")

	assert.True(t, rl.Allow(a))
	assert.False(t, rl.Allow(a))
	assert.True(t, rl.Allow(b), "principal b has its own bucket")
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0.01, 1)
	principal := common.HexToAddress("0x7777777777777777777777777777777777777777")

	require.True(t, rl.Allow(principal))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, principal)
	require.Error(t, err, "refill takes 100s, context expires first")
}

func TestDefaultRateLimiter(t *testing.T) {
	t.Parallel()

	rl := DefaultRateLimiter()
	principal := common.HexToAddress("0x8888888888888888888888888888888888888888")

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(principal))
	}
	assert.False(t, rl.Allow(principal))
}
