package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetItemPopularity(t *testing.T) {
	db := setupTestDB(t)

	ints := []*Interaction{
		{User: "alice", Item: "i1", Kind: InteractionView, Date: "2025-01-10"},
		{User: "bob", Item: "i1", Kind: InteractionView, Date: "2025-01-11"},
		{User: "carol", Item: "i2", Kind: InteractionView, Date: "2025-01-12"},
		{User: "dave", Item: "i3", Kind: InteractionView, Date: "2020-01-01"},
	}
	require.NoError(t, SaveInteractions(db, ints))

	m, err := GetItemPopularity(db, "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m["i1"])
	assert.Equal(t, int64(1), m["i2"])

	// outside the window
	_, ok := m["i3"]
	assert.False(t, ok)
}

func TestGetItemPopularity_NilDB(t *testing.T) {
	_, err := GetItemPopularity(nil, "2025-01-01")
	assert.Error(t, err)
}

func TestGetCoVisitation(t *testing.T) {
	db := setupTestDB(t)

	// alice and bob both touched i1 and i2, carol only i1 and i3
	ints := []*Interaction{
		{User: "alice", Item: "i1", Kind: InteractionView, Date: "2025-01-10"},
		{User: "alice", Item: "i2", Kind: InteractionView, Date: "2025-01-10"},
		{User: "bob", Item: "i1", Kind: InteractionView, Date: "2025-01-11"},
		{User: "bob", Item: "i2", Kind: InteractionView, Date: "2025-01-11"},
		{User: "carol", Item: "i1", Kind: InteractionView, Date: "2025-01-12"},
		{User: "carol", Item: "i3", Kind: InteractionView, Date: "2025-01-12"},
	}
	require.NoError(t, SaveInteractions(db, ints))

	m, err := GetCoVisitation(db, "i1", "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m["i2"])
	assert.Equal(t, int64(1), m["i3"])

	_, ok := m["i1"]
	assert.False(t, ok, "seed item must not co-visit itself")
}

func TestGetUserCategoryCounts(t *testing.T) {
	db := setupTestDB(t)

	items := []*Item{
		{ID: "i1", Category: "books"},
		{ID: "i2", Category: "books"},
		{ID: "i3", Category: "music"},
		{ID: "i4"},
	}
	require.NoError(t, SaveItems(db, items))

	ints := []*Interaction{
		{User: "alice", Item: "i1", Kind: InteractionView, Date: "2025-01-10"},
		{User: "alice", Item: "i2", Kind: InteractionView, Date: "2025-01-11"},
		{User: "alice", Item: "i3", Kind: InteractionView, Date: "2025-01-12"},
		{User: "alice", Item: "i4", Kind: InteractionView, Date: "2025-01-13"},
	}
	require.NoError(t, SaveInteractions(db, ints))

	m, err := GetUserCategoryCounts(db, "alice", "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m["books"])
	assert.Equal(t, int64(1), m["music"])

	// items without category are ignored
	assert.Len(t, m, 2)
}
