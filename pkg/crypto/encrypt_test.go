package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncryptor_KeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.Error(t, err)

	_, err = NewEncryptor(testKey)
	assert.NoError(t, err)
}

func TestSealOpen(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := e.SealString("Will I find love this year?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "love")

	again, err := e.SealString("Will I find love this year?")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := e.OpenString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Will I find love this year?", plain)
}

func TestOpen_LegacyPlaintext(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	plain, err := e.OpenString("an old question")
	require.NoError(t, err)
	assert.Equal(t, "an old question", plain)
}

func TestOpen_WrongKey(t *testing.T) {
	a, err := NewEncryptor(testKey)
	require.NoError(t, err)
	b, err := NewEncryptor(strings.Repeat("x", 32))
	require.NoError(t, err)

	sealed, err := a.SealString("secret")
	require.NoError(t, err)

	_, err = b.OpenString(sealed)
	assert.Error(t, err)

	_, err = a.OpenString(sealedPrefix + "!!!")
	assert.Error(t, err)
}
