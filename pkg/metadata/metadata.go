package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Ext is appended to a card's file name to form its sidecar path
const Ext = ".json"

// CardMetadata describes a downloaded recipe card
type CardMetadata struct {
	// Core identifiers
	ID       string `json:"id"`
	Name     string `json:"name"`
	CardLink string `json:"card_link"`

	// File properties
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`

	Locale       string    `json:"locale,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// New describes the card stored at cardPath.
func New(id, name, link, cardPath, locale string, size int64) *CardMetadata {
	return &CardMetadata{
		ID:           id,
		Name:         name,
		CardLink:     link,
		FileName:     filepath.Base(cardPath),
		FileSize:     size,
		Locale:       locale,
		DownloadedAt: time.Now().UTC(),
	}
}

// SidecarPath returns the metadata path for the card at cardPath
func SidecarPath(cardPath string) string {
	return cardPath + Ext
}

// Save writes the metadata next to the card
func (m *CardMetadata) Save(cardPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(SidecarPath(cardPath), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// CleanOrphaned removes sidecars in directory whose card is gone and returns
// how many were removed.
func CleanOrphaned(directory string) (int, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pdf"+Ext) {
			continue
		}

		cardPath := filepath.Join(directory, strings.TrimSuffix(name, Ext))
		if _, err := os.Stat(cardPath); !os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(filepath.Join(directory, name)); err != nil {
			return removed, fmt.Errorf("failed to remove orphaned metadata %s: %w", name, err)
		}
		removed++
	}

	return removed, nil
}
