package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cards")
	manager, err := NewManager(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, manager.OutputDir())

	assert.False(t, manager.Exists("Chicken Tacos"))

	saved, err := manager.Save("Chicken Tacos", []byte("first"))
	require.NoError(t, err)
	assert.True(t, saved)
	assert.True(t, manager.Exists("Chicken Tacos"))

	content, err := os.ReadFile(filepath.Join(dir, "Chicken Tacos.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestManagerSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	saved, err := manager.Save("Soup", []byte("first"))
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = manager.Save("Soup", []byte("second"))
	require.NoError(t, err)
	assert.False(t, saved)

	// A fresh manager must not overwrite either.
	again, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, again.KnownCount())
	saved, err = again.Save("Soup", []byte("third"))
	require.NoError(t, err)
	assert.False(t, saved)

	content, err := os.ReadFile(filepath.Join(dir, "Soup.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
	assertNoTempFiles(t, dir)
}

func TestManagerDoesNotOverwriteUnknownFile(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	// Appears after the initial scan.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Late.pdf"), []byte("outside"), 0o644))

	saved, err := manager.Save("Late", []byte("ours"))
	require.NoError(t, err)
	assert.False(t, saved)

	content, err := os.ReadFile(filepath.Join(dir, "Late.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "outside", string(content))
}

func TestManagerConcurrentSaves(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		saves int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved, err := manager.Save("Same Card", []byte("data"))
			assert.NoError(t, err)
			if saved {
				mu.Lock()
				saves++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, saves)
	assertNoTempFiles(t, dir)
}

func TestManagerRejectsEmptyName(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = manager.Save("  ", []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.False(t, manager.Exists(""))
}

func TestManagerIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.pdf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Card.pdf"), []byte("x"), 0o644))

	manager, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, manager.KnownCount())
	assert.True(t, manager.Exists("Card"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chicken Tacos", "Chicken Tacos"},
		{"Pasta w/ Pesto", "Pasta w_ Pesto"},
		{`Back\slash`, "Back_slash"},
		{"Nul\x00Byte", "Nul_Byte"},
		{"Tab\tNew\nLine", "Tab_New_Line"},
		{"  padded  ", "padded"},
		{"..", "__"},
		{"Crème brûlée", "Crème brûlée"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}

	long := strings.Repeat("é", 150)
	got := SanitizeName(long)
	assert.LessOrEqual(t, len(got), maxStemBytes)
	assert.True(t, strings.HasPrefix(long, got))
}

func TestManagerPath(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(manager.OutputDir(), "a_b.pdf"), manager.Path("a/b"))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".card-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
