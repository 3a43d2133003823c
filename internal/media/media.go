// Package media stores uploaded blobs on disk and hands back stable
// references usable as message content for non-text messages.
package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"PulseMessenger/server/internal/models"
)

var typeByExt = map[string]models.MessageType{
	".jpg":  models.MessageImage,
	".jpeg": models.MessageImage,
	".png":  models.MessageImage,
	".gif":  models.MessageImage,
	".mp4":  models.MessageVideo,
	".webm": models.MessageVideo,
	".mp3":  models.MessageAudio,
	".ogg":  models.MessageAudio,
	".wav":  models.MessageAudio,
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &Store{dir: dir}, nil
}

// Save writes the blob under a fresh name and returns its reference and the
// message type inferred from the filename extension.
func (s *Store) Save(src io.Reader, originalName string) (string, models.MessageType, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	msgType, ok := typeByExt[ext]
	if !ok {
		return "", "", models.E(models.KindValidationFailed, "unsupported media type "+ext)
	}

	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", "", errors.Wrap(err, "creating media file")
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(f.Name())
		return "", "", errors.Wrap(err, "writing media file")
	}
	return "/uploads/" + name, msgType, nil
}

func (s *Store) Dir() string {
	return s.dir
}
