package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMessenger/server/internal/models"
)

func TestSaveInfersTypeFromExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ref, msgType, err := store.Save(strings.NewReader("fake image bytes"), "photo.JPG")
	require.NoError(t, err)
	assert.Equal(t, models.MessageImage, msgType)
	assert.True(t, strings.HasPrefix(ref, "/uploads/"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	data, err := os.ReadFile(filepath.Join(store.Dir(), strings.TrimPrefix(ref, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Save(strings.NewReader("x"), "script.exe")
	assert.Equal(t, models.KindValidationFailed, models.KindOf(err))
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	refA, _, err := store.Save(strings.NewReader("a"), "clip.mp4")
	require.NoError(t, err)
	refB, _, err := store.Save(strings.NewReader("b"), "clip.mp4")
	require.NoError(t, err)
	assert.NotEqual(t, refA, refB)
}
