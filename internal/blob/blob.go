// Package blob writes raw scraped HTML to the local blob tree and computes
// the content hashes recorded alongside each version.
//
// Blob keys follow the bucket layout
// entities/{entityId}/html/{tournamentId}/{isoTimestamp}__{hash}.html so a
// key alone identifies its entity, tournament, and capture time.
package blob

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer stores blob content under a data directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer rooted at dataDir, expanding a leading ~ and
// creating the directory if needed.
func NewWriter(dataDir string) (*Writer, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Writer{dataDir: dataDir}, nil
}

// Hash returns the hex sha1 of content.
func Hash(content []byte) string {
	h := sha1.New()
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Key builds the blob key for a capture.
func Key(entityID string, tournamentID int, scrapedAt time.Time, hash string) string {
	ts := scrapedAt.UTC().Format("2006-01-02T15-04-05Z")
	return fmt.Sprintf("entities/%s/html/%d/%s__%s.html", entityID, tournamentID, ts, hash)
}

// Write stores content under its computed key and returns the key, the
// content hash, and the byte size.
func (w *Writer) Write(entityID string, tournamentID int, scrapedAt time.Time, content []byte) (key, hash string, size int64, err error) {
	hash = Hash(content)
	key = Key(entityID, tournamentID, scrapedAt, hash)

	path := filepath.Join(w.dataDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", "", 0, fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", "", 0, fmt.Errorf("writing blob: %w", err)
	}

	return key, hash, int64(len(content)), nil
}

// Read returns the content stored under key.
func (w *Writer) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.dataDir, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}
