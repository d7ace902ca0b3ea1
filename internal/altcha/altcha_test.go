package altcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconfiguredVerifier(t *testing.T) {
	v := NewVerifier("")

	_, err := v.Challenge()
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, v.VerifySolution("whatever"), ErrNotConfigured)
}

func TestChallengeHasSignature(t *testing.T) {
	v := NewVerifier("secret")

	ch, err := v.Challenge()
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Challenge)
	assert.NotEmpty(t, ch.Salt)
	assert.NotEmpty(t, ch.Signature)
}

func TestVerifySolutionRejectsGarbage(t *testing.T) {
	v := NewVerifier("secret")

	assert.ErrorIs(t, v.VerifySolution(""), ErrInvalidChallenge)
	assert.ErrorIs(t, v.VerifySolution("not base64 json"), ErrInvalidChallenge)
}
