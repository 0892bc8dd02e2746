package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	enc, err := box.Encrypt("EAAG-access-token")
	require.NoError(t, err)
	parts := strings.Split(enc, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 32)
	assert.Len(t, parts[1], 32)

	dec, err := box.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-access-token", dec)

	other, err := box.Encrypt("EAAG-access-token")
	require.NoError(t, err)
	assert.NotEqual(t, enc, other)
}

func TestSecretBoxTamper(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)
	enc, err := box.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(enc, ":")
	parts[2] = strings.Repeat("0", len(parts[2]))
	_, err = box.Decrypt(strings.Join(parts, ":"))
	assert.Error(t, err)

	_, err = box.Decrypt("not-encoded")
	assert.Error(t, err)
}

func TestNewSecretBoxBadKey(t *testing.T) {
	_, err := NewSecretBox("abcd")
	assert.Error(t, err)
	_, err = NewSecretBox("zz")
	assert.Error(t, err)
}

func TestSignature(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	sig := SignSHA256("app-secret", body)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySHA256("app-secret", body, sig))
	assert.False(t, VerifySHA256("other", body, sig))
	assert.False(t, VerifySHA256("app-secret", body, ""))
}

func TestRandomToken(t *testing.T) {
	tok, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 64)
}
