package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "01234567890123456789012345678901"

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New("too-short")
	require.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	cases := []string{
		"",
		"hello",
		"a",
		"exactly sixteen!",
		"привет мир",
		"日本語のメッセージ 🙂",
		strings.Repeat("long content ", 200),
		"text with : colons : inside",
	}

	for _, plaintext := range cases {
		sealed, err := c.Seal(plaintext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, c.Open(sealed), "round trip for %q", plaintext)
	}
}

func TestSealProducesCiphertext(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("secret message")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret message")
	assert.Contains(t, sealed, ":")
}

func TestSealUsesFreshIV(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	a, err := c.Seal("same input")
	require.NoError(t, err)
	b, err := c.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenReturnsForeignInputUnchanged(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	cases := []string{
		"plain legacy row",
		"not-hex:not-hex",
		"deadbeef:deadbeef",
		":",
		"ff:",
	}
	for _, blob := range cases {
		assert.Equal(t, blob, c.Open(blob))
	}
}

func TestOpenWithWrongKeyDoesNotPanic(t *testing.T) {
	a, err := New(testKey)
	require.NoError(t, err)
	b, err := New("another-key-of-32-bytes-exactly!")
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	// Wrong key yields garbage or the blob itself, never a panic and
	// almost never the plaintext.
	out := b.Open(sealed)
	assert.NotEqual(t, "secret", out)
}
