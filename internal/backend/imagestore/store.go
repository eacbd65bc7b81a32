// Package imagestore persists slip images under a fixed directory. Filenames
// are derived from the sender id and a second-granularity timestamp; two
// images from the same sender within one second get a numeric suffix instead
// of overwriting each other.
package imagestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slipledger/server/internal/backend/preprocess"
)

const timestampLayout = "2006-01-02_15-04-05"

type Store struct {
	directory string
	now       func() time.Time
}

// New creates the store and ensures the image directory exists.
func New(directory string) (*Store, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", directory, err)
	}
	return &Store{
		directory: directory,
		now:       time.Now,
	}, nil
}

// Save writes the image bytes and returns the stored path. The extension is
// chosen from the content: PNG data gets .png, anything else .jpg (the chat
// platform delivers JPEG when no preprocessing converts it).
func (s *Store) Save(senderID string, data []byte) (string, error) {
	extension := ".jpg"
	if preprocess.HasPNGSignature(data) {
		extension = ".png"
	}

	base := fmt.Sprintf("%s_%s", senderID, s.now().Format(timestampLayout))
	name := base + extension
	// O_EXCL claims the name atomically, so two concurrent saves can never
	// pick the same file.
	for counter := 1; ; counter++ {
		path := filepath.Join(s.directory, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s-%d%s", base, counter, extension)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to write image %s: %w", path, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write image %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to write image %s: %w", path, err)
		}
		return path, nil
	}
}
