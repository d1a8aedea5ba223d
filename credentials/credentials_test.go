package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCredentials_HeadersPrefersTokenOverPassword(t *testing.T) {
	cc := NewCallCredentials(New("alice", "secret"))

	user, _, pass, hasToken := cc.Headers()
	assert.Equal(t, "alice", user)
	assert.Equal(t, "secret", pass)
	assert.False(t, hasToken)

	cc.SetToken("tok-123")
	user, token, pass, hasToken := cc.Headers()
	assert.Equal(t, "alice", user)
	assert.Equal(t, "tok-123", token)
	assert.Empty(t, pass)
	assert.True(t, hasToken)
}

func TestCallCredentials_ResetTokenFallsBackToPassword(t *testing.T) {
	cc := NewCallCredentials(New("alice", "secret"))
	cc.SetToken("tok-123")
	cc.ResetToken()

	_, _, pass, hasToken := cc.Headers()
	assert.False(t, hasToken)
	assert.Equal(t, "secret", pass)
}

func TestDriverTlsConfig_DisabledIsNotEnabled(t *testing.T) {
	cfg := Disabled()
	assert.False(t, cfg.IsEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestDriverTlsConfig_EnabledWithRootCA_FailsValidationWhenFileMissing(t *testing.T) {
	cfg := EnabledWithRootCA("/nonexistent/ca.pem")
	require.True(t, cfg.IsEnabled())
	assert.Error(t, cfg.Validate())
}

func TestDriverTlsConfig_EnabledWithNativeRootCA_HasNoCustomPath(t *testing.T) {
	cfg := EnabledWithNativeRootCA()
	assert.True(t, cfg.IsEnabled())
	assert.False(t, cfg.HasRootCAPath())
	assert.NoError(t, cfg.Validate())
}
