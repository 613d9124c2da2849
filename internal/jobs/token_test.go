package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueThenValidate(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"))

	token, expires, err := issuer.Issue("job-123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), expires, time.Second)

	jobID, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "job-123", jobID)
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret-a"))
	token, _, err := issuer.Issue("job-123")
	require.NoError(t, err)

	other := NewTokenIssuer([]byte("secret-b"))
	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestNeedsRefresh(t *testing.T) {
	assert.True(t, NeedsRefresh(time.Now().Add(10*time.Minute)))
	assert.False(t, NeedsRefresh(time.Now().Add(90*time.Minute)))
}
