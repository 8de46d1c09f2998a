package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/segmenta-io/segmenta/internal/config"
)

func TestRouterDeterminism(t *testing.T) {
	r := NewRouter(config.RouterConfig{RolloutPercentage: 50})

	for i := 0; i < 20; i++ {
		user := fmt.Sprintf("user-%d", i)
		first := r.Decide(user)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first, r.Decide(user), "user %s flip-flopped", user)
		}
	}
}

func TestRouterRolloutDistribution(t *testing.T) {
	const users = 1000
	const rollout = 50
	r := NewRouter(config.RouterConfig{RolloutPercentage: rollout})

	unified := 0
	for i := 0; i < users; i++ {
		user := fmt.Sprintf("user-%d", i)
		first := r.Decide(user)
		assert.Equal(t, first, r.Decide(user), "user %s flip-flopped", user)
		if first {
			unified++
		}
	}

	share := float64(unified) / users
	assert.InDelta(t, float64(rollout)/100, share, 0.05,
		"unified share %.3f outside 5%% of %d%% rollout", share, rollout)
}

func TestRouterGlobalOverride(t *testing.T) {
	r := NewRouter(config.RouterConfig{UseUnified: true, RolloutPercentage: 0})
	assert.True(t, r.Decide("anyone"))

	r.SetUseUnified(false)
	// With 0% rollout and no override, nobody routes unified.
	assert.False(t, r.Decide("anyone"))
}

func TestRouterRolloutBounds(t *testing.T) {
	r := NewRouter(config.RouterConfig{RolloutPercentage: 100})
	for i := 0; i < 50; i++ {
		assert.True(t, r.Decide(fmt.Sprintf("u%d", i)))
	}

	r.SetRolloutPercentage(0)
	for i := 0; i < 50; i++ {
		assert.False(t, r.Decide(fmt.Sprintf("u%d", i)))
	}
}

func TestRouterClampsPercentage(t *testing.T) {
	r := NewRouter(config.RouterConfig{RolloutPercentage: 250})
	assert.Equal(t, 100, r.Status().RolloutPercentage)

	r.SetRolloutPercentage(-5)
	assert.Equal(t, 0, r.Status().RolloutPercentage)
}

func TestRouterTestEchoesDecision(t *testing.T) {
	r := NewRouter(config.RouterConfig{RolloutPercentage: 50})

	d := r.Test("user-1")
	assert.Equal(t, "user-1", d.UserID)
	assert.Equal(t, d.Unified, r.Decide("user-1"))
	assert.GreaterOrEqual(t, d.Bucket, 0)
	assert.Less(t, d.Bucket, 100)
}

func TestRouterStatus(t *testing.T) {
	r := NewRouter(config.RouterConfig{UseUnified: true, RolloutPercentage: 25})
	s := r.Status()
	assert.True(t, s.UseUnified)
	assert.Equal(t, 25, s.RolloutPercentage)
}
