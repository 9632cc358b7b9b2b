package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOrCreate_Defaults(t *testing.T) {
	dir := t.TempDir()

	c, err := ReadOrCreate(dir)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, 6, c.Months)
	assert.Len(t, c.Engines, 4)
	assert.True(t, c.Engines["popularity"].Enabled)
	assert.Equal(t, int64(2), c.Engines["co-visit"].Weight)
}

func TestSaveAndRead(t *testing.T) {
	dir := t.TempDir()

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)

	c1.Limit = 25
	c1.Engines["recency-boost"] = Engine{Enabled: false, Weight: 3}
	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, c2.Limit)
	assert.False(t, c2.Engines["recency-boost"].Enabled)
	assert.Equal(t, int64(3), c2.Engines["recency-boost"].Weight)
}

func TestReadOrCreate_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	c, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestReadOrCreate_EmptyDir(t *testing.T) {
	_, err := ReadOrCreate("")
	assert.Error(t, err)
}

func TestSave_Invalid(t *testing.T) {
	assert.Error(t, Save("", &Config{}))
	assert.Error(t, Save(t.TempDir(), nil))
}
