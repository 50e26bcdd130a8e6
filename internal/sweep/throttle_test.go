package sweep

import (
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThrottle(now *time.Time) *cacheThrottle {
	return &cacheThrottle{
		c:   gocache.New(gocache.NoExpiration, 0),
		now: func() time.Time { return *now },
	}
}

func TestThrottle_FirstNotificationAllowed(t *testing.T) {
	now := time.Now()
	th := testThrottle(&now)

	assert.True(t, th.ShouldNotify("broker@example.com", instructionalCooldown))
}

func TestThrottle_SuppressedInsideCooldown(t *testing.T) {
	base := time.Now()
	now := base
	th := testThrottle(&now)

	require.True(t, th.ShouldNotify("broker@example.com", instructionalCooldown))
	th.Record("broker@example.com", now)

	now = base.Add(time.Hour)
	assert.False(t, th.ShouldNotify("broker@example.com", instructionalCooldown))
}

func TestThrottle_AllowedAfterCooldown(t *testing.T) {
	base := time.Now()
	now := base
	th := testThrottle(&now)

	th.Record("broker@example.com", now)

	now = base.Add(8 * 24 * time.Hour)
	assert.True(t, th.ShouldNotify("broker@example.com", instructionalCooldown))
}

func TestThrottle_KeysAreIndependent(t *testing.T) {
	base := time.Now()
	now := base
	th := testThrottle(&now)

	th.Record("a@example.com", now)

	now = base.Add(time.Hour)
	assert.False(t, th.ShouldNotify("a@example.com", instructionalCooldown))
	assert.True(t, th.ShouldNotify("b@example.com", instructionalCooldown))
}
