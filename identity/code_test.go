package identity

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOneTimeCode(t *testing.T) {
	for _, raw := range []string{"", "12345", "1234567", "12345a", "12 456", "١٢٣٤٥٦"} {
		_, err := ParseOneTimeCode(raw)
		assert.ErrorIs(t, err, ErrInvalidCode, "%q", raw)
	}

	for _, raw := range []string{"000123", "000000", "999999", "123456"} {
		c, err := ParseOneTimeCode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, c.Expose())
	}
}

func TestNewOneTimeCodeIsSixDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		c, err := NewOneTimeCode()
		require.NoError(t, err)
		_, err = ParseOneTimeCode(c.Expose())
		require.NoError(t, err)
	}
}

func TestOneTimeCodeEqualAndRedaction(t *testing.T) {
	a, _ := ParseOneTimeCode("004242")
	b, _ := ParseOneTimeCode("004242")
	c, _ := ParseOneTimeCode("004243")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.NotContains(t, fmt.Sprintf("%v %s", a, a), "004242")
}

func TestChallengeID(t *testing.T) {
	id, err := NewChallengeID()
	require.NoError(t, err)

	parsed, err := ParseChallengeID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))

	other, err := NewChallengeID()
	require.NoError(t, err)
	assert.False(t, id.Equal(other))

	for _, raw := range []string{"", "invalid-uuid", uuid.NewSHA1(uuid.NameSpaceDNS, []byte("x")).String()} {
		_, err := ParseChallengeID(raw)
		assert.ErrorIs(t, err, ErrInvalidChallengeID, raw)
	}
}
