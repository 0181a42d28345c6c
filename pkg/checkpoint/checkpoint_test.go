package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipecards/pkg/logger"
)

func openTemp(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(dir, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, dir
}

func TestCheckpointLifecycle(t *testing.T) {
	m, dir := openTemp(t)
	assert.Equal(t, filepath.Join(dir, FileName), m.Path())

	cp, err := m.Load("US")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, m.Exists("US"))

	require.NoError(t, m.Save(&Checkpoint{Key: "US", NextOffset: 500, Total: 1000, Pages: 1, Saved: 42}))
	assert.True(t, m.Exists("US"))

	cp, err = m.Load("US")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 500, cp.NextOffset)
	assert.Equal(t, 1000, cp.Total)
	assert.Equal(t, 42, cp.Saved)
	assert.Equal(t, currentVersion, cp.Version)
	assert.False(t, cp.CreatedAt.IsZero())
	assert.False(t, cp.UpdatedAt.Before(cp.CreatedAt))

	created := cp.CreatedAt
	cp.NextOffset = 1000
	cp.Pages = 2
	require.NoError(t, m.Save(cp))

	cp, err = m.Load("US")
	require.NoError(t, err)
	assert.Equal(t, 1000, cp.NextOffset)
	assert.True(t, cp.CreatedAt.Equal(created))

	require.NoError(t, m.Delete("US"))
	assert.False(t, m.Exists("US"))
	require.NoError(t, m.Delete("US"), "deleting a missing key is not an error")
}

func TestCheckpointKeysAreIndependent(t *testing.T) {
	m, _ := openTemp(t)

	require.NoError(t, m.Save(&Checkpoint{Key: "US", NextOffset: 500}))
	require.NoError(t, m.Save(&Checkpoint{Key: "DE", NextOffset: 1500}))

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"US", "DE"}, keys)

	de, err := m.Load("DE")
	require.NoError(t, err)
	assert.Equal(t, 1500, de.NextOffset)
}

func TestCheckpointSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, m.Save(&Checkpoint{Key: "GB", NextOffset: 250}))
	require.NoError(t, m.Close())

	m, err = Open(dir, logger.NewTestLogger())
	require.NoError(t, err)
	defer m.Close()

	cp, err := m.Load("GB")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 250, cp.NextOffset)
}

func TestCheckpointRejectsEmptyKey(t *testing.T) {
	m, _ := openTemp(t)
	assert.Error(t, m.Save(&Checkpoint{}))
}
