package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := NewSecretBox("correct horse battery staple")
	require.NoError(t, err)
	require.NotNil(t, box)

	sealed, err := box.Seal([]byte(`{"password":"s3cret"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "s3cret")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"password":"s3cret"}`, string(opened))
}

func TestSecretBox_NonceIsRandom(t *testing.T) {
	box, err := NewSecretBox("key")
	require.NoError(t, err)

	a, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSecretBox_WrongKey(t *testing.T) {
	box, err := NewSecretBox("key-one")
	require.NoError(t, err)
	other, err := NewSecretBox("key-two")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestSecretBox_Disabled(t *testing.T) {
	box, err := NewSecretBox("")
	require.NoError(t, err)
	assert.Nil(t, box)

	sealed, err := box.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := box.Open("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(opened))

	_, err = box.Open(sealedPrefix + "AAAA")
	assert.Error(t, err, "encrypted values need a key")
}

func TestSecretBox_Corrupted(t *testing.T) {
	box, err := NewSecretBox("key")
	require.NoError(t, err)

	for _, value := range []string{sealedPrefix + "!!!", sealedPrefix + "AAAA"} {
		_, err := box.Open(value)
		assert.Error(t, err, value)
	}
}
