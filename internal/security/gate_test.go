package security

import (
	"testing"
	"time"

	"videoextract/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *model.SecurityConfig {
	return &model.SecurityConfig{
		Keys: []model.APIKeyConfig{
			{Key: "test-key", Name: "test", Permissions: []string{"extract"}, RequestsPerMinute: 3},
			{Key: "full-key", Name: "full", Permissions: []string{"extract", "download"}},
		},
		RequestsPerMinute: 60,
		MaxFailedAttempts: 5,
		BlockDuration:     time.Hour,
	}
}

func TestAuthenticateMissingKey(t *testing.T) {
	g := NewGate(testConfig())

	auth, err := g.Authenticate("", "1.2.3.4")
	require.Nil(t, auth)
	require.NotNil(t, err)
	assert.Equal(t, model.ErrUnauthenticated, err.Code)
	assert.Equal(t, 401, err.Status)

	// A bare missing credential is not a suspicious event.
	for i := 0; i < 10; i++ {
		g.Authenticate("", "1.2.3.4")
	}
	assert.False(t, g.IsBlocked("1.2.3.4"))
}

func TestAuthenticateInvalidKey(t *testing.T) {
	g := NewGate(testConfig())

	auth, err := g.Authenticate("wrong", "1.2.3.4")
	require.Nil(t, auth)
	require.NotNil(t, err)
	assert.Equal(t, model.ErrInvalidKey, err.Code)
}

func TestAuthenticateSuccess(t *testing.T) {
	g := NewGate(testConfig())

	auth, err := g.Authenticate("test-key", "1.2.3.4")
	require.Nil(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, "test", auth.KeyName)
	assert.Equal(t, 3, auth.Limit)
	assert.Equal(t, 2, auth.Remaining)
	assert.True(t, auth.HasPermission("extract"))
	assert.False(t, auth.HasPermission("download"))
}

func TestDefaultQuotaFallback(t *testing.T) {
	g := NewGate(testConfig())

	auth, err := g.Authenticate("full-key", "1.2.3.4")
	require.Nil(t, err)
	assert.Equal(t, 60, auth.Limit)
}

func TestRateLimitWindow(t *testing.T) {
	g := NewGate(testConfig())
	now := time.Now()
	g.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := g.Authenticate("test-key", "1.2.3.4")
		require.Nil(t, err, "request %d should be admitted", i)
	}

	_, err := g.Authenticate("test-key", "1.2.3.4")
	require.NotNil(t, err)
	assert.Equal(t, model.ErrRateLimited, err.Code)
	assert.Equal(t, 429, err.Status)
	assert.Greater(t, err.RetryAfter, int64(0))

	// Window slides: after 61 seconds everything is admitted again.
	now = now.Add(61 * time.Second)
	_, err = g.Authenticate("test-key", "1.2.3.4")
	assert.Nil(t, err)
}

func TestIPBlockAfterRepeatedFailures(t *testing.T) {
	g := NewGate(testConfig())

	for i := 0; i < 5; i++ {
		g.Authenticate("wrong", "9.9.9.9")
	}
	assert.True(t, g.IsBlocked("9.9.9.9"))

	// Even a valid key is refused from a blocked address.
	auth, err := g.Authenticate("test-key", "9.9.9.9")
	require.Nil(t, auth)
	require.NotNil(t, err)
	assert.Equal(t, model.ErrForbidden, err.Code)

	// Other addresses are unaffected.
	_, err = g.Authenticate("test-key", "8.8.8.8")
	assert.Nil(t, err)
}

func TestIPBlockExpiry(t *testing.T) {
	g := NewGate(testConfig())
	now := time.Now()
	g.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		g.Authenticate("wrong", "9.9.9.9")
	}
	require.True(t, g.IsBlocked("9.9.9.9"))

	now = now.Add(2 * time.Hour)
	assert.False(t, g.IsBlocked("9.9.9.9"))
}

func TestCheckPermission(t *testing.T) {
	g := NewGate(testConfig())

	auth, err := g.Authenticate("test-key", "1.2.3.4")
	require.Nil(t, err)

	assert.Nil(t, g.CheckPermission(auth, "extract"))

	perr := g.CheckPermission(auth, "download")
	require.NotNil(t, perr)
	assert.Equal(t, model.ErrForbidden, perr.Code)
}

func TestKeyName(t *testing.T) {
	g := NewGate(testConfig())
	assert.Equal(t, "test", g.KeyName("test-key"))
	assert.Equal(t, "", g.KeyName("unknown"))
}
