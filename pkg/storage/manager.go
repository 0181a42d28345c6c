package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// CardExt is the file extension of saved recipe cards
	CardExt = ".pdf"

	// DefaultKnownCacheSize bounds the in-memory set of card names seen on disk
	DefaultKnownCacheSize = 8192

	maxStemBytes = 200
)

// ErrEmptyName is returned when a card name is empty after sanitising.
var ErrEmptyName = errors.New("card name is empty")

// Manager persists recipe cards and never overwrites an existing one
type Manager struct {
	outputDir string
	known     *lru.Cache[string, struct{}]
}

// NewManager creates the output directory if needed and indexes the cards
// already in it.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	known, err := lru.New[string, struct{}](DefaultKnownCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		known:     known,
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records the cards already present in the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != CardExt {
			continue
		}
		m.known.Add(strings.TrimSuffix(entry.Name(), CardExt), struct{}{})
	}
	return nil
}

// Path returns where the card called name is stored.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, SanitizeName(name)+CardExt)
}

// Exists reports whether a card called name is already on disk.
func (m *Manager) Exists(name string) bool {
	stem := SanitizeName(name)
	if stem == "" {
		return false
	}
	if m.known.Contains(stem) {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, stem+CardExt)); err == nil {
		m.known.Add(stem, struct{}{})
		return true
	}
	return false
}

// Save writes data as the card called name. It returns false without error
// when the card already exists; the existing file is left untouched. The
// bytes are written to a temporary file first so a card on disk is always
// complete.
func (m *Manager) Save(name string, data []byte) (bool, error) {
	stem := SanitizeName(name)
	if stem == "" {
		return false, ErrEmptyName
	}
	if m.known.Contains(stem) {
		return false, nil
	}
	target := filepath.Join(m.outputDir, stem+CardExt)

	tmp, err := os.CreateTemp(m.outputDir, ".card-*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		return false, fmt.Errorf("failed to write card data: %w", err)
	}
	if closeErr != nil {
		return false, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Link fails if target exists, which makes the publish exclusive.
	err = os.Link(tmpName, target)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		m.known.Add(stem, struct{}{})
		return false, nil
	default:
		saved, werr := writeExclusive(target, data)
		if werr != nil {
			return false, werr
		}
		if !saved {
			m.known.Add(stem, struct{}{})
			return false, nil
		}
	}

	m.known.Add(stem, struct{}{})
	return true, nil
}

// writeExclusive is the fallback for filesystems without hard links.
func writeExclusive(target string, data []byte) (bool, error) {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create card file: %w", err)
	}

	_, err = f.Write(data)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return false, fmt.Errorf("failed to save card data: %w", err)
	}
	return true, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// KnownCount returns how many card names are currently cached as present
func (m *Manager) KnownCount() int {
	return m.known.Len()
}

// SanitizeName turns a recipe name into a safe file stem. Path separators,
// NUL and control characters become "_"; the result is trimmed and capped
// in length.
func SanitizeName(name string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, name)
	stem = strings.TrimSpace(stem)

	if stem == "." || stem == ".." {
		return strings.Repeat("_", len(stem))
	}

	if len(stem) > maxStemBytes {
		cut := maxStemBytes
		for cut > 0 && !utf8.RuneStart(stem[cut]) {
			cut--
		}
		stem = strings.TrimSpace(stem[:cut])
	}
	return stem
}
