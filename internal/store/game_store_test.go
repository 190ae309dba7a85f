package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

func testGame(tournamentID int, name string) *game.Game {
	return &game.Game{
		TournamentID: tournamentID,
		EntityID:     "E1",
		Name:         name,
		GameStatus:   game.StatusFinished,
		BuyIn:        150,
		Rake:         30,
	}
}

func TestGameCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewGameStore(db)
	ctx := context.Background()

	var feed []ChangeRecord
	store.OnChange = func(rec ChangeRecord) { feed = append(feed, rec) }

	g := testGame(4501, "Friday Deepstack")
	require.NoError(t, store.Create(ctx, g))
	require.NotEmpty(t, g.ID)
	assert.Equal(t, 1, g.Version)

	fetched, err := store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Friday Deepstack", fetched.Name)
	assert.Equal(t, 4501, fetched.TournamentID)

	require.Len(t, feed, 1)
	assert.Equal(t, ChangeInsert, feed[0].EventName)
	assert.Equal(t, g.ID, feed[0].NewImage.ID)
}

func TestGameUpdateOptimisticConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewGameStore(db)
	ctx := context.Background()

	g := testGame(4501, "Friday Deepstack")
	require.NoError(t, store.Create(ctx, g))

	var feed []ChangeRecord
	store.OnChange = func(rec ChangeRecord) { feed = append(feed, rec) }

	g.TotalEntries = 80
	require.NoError(t, store.Update(ctx, g))
	assert.Equal(t, 2, g.Version)
	require.Len(t, feed, 1)
	assert.Equal(t, ChangeModify, feed[0].EventName)

	// A writer holding the old version conflicts and leaves the row alone.
	stale := *g
	stale.Version = 1
	stale.TotalEntries = 999
	err := store.Update(ctx, &stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 1, stale.Version)

	fetched, err := store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, fetched.TotalEntries)
	assert.Equal(t, 2, fetched.Version)
	assert.Len(t, feed, 1)
}

func TestGameGetByTournamentIDPrefersOldest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewGameStore(db)
	ctx := context.Background()

	first := testGame(4501, "Original")
	require.NoError(t, store.Create(ctx, first))
	second := testGame(4501, "Duplicate")
	require.NoError(t, store.Create(ctx, second))

	// Force distinct creation times; both rows were written in the same
	// instant above.
	_, err := db.Exec("UPDATE games SET created_at = '2024-01-01 00:00:00' WHERE id = ?", first.ID)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE games SET created_at = '2024-06-01 00:00:00' WHERE id = ?", second.ID)
	require.NoError(t, err)

	fetched, err := store.GetByTournamentID(ctx, "E1", 4501)
	require.NoError(t, err)
	assert.Equal(t, "Original", fetched.Name)
}

func TestGameHighestTournamentID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewGameStore(db)
	ctx := context.Background()

	highest, err := store.HighestTournamentID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 0, highest)

	require.NoError(t, store.Create(ctx, testGame(4501, "A")))
	require.NoError(t, store.Create(ctx, testGame(4510, "B")))

	highest, err = store.HighestTournamentID(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 4510, highest)

	highest, err = store.HighestTournamentID(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 0, highest)
}

func TestGameFindParentsAndSiblings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewGameStore(db)
	ctx := context.Background()

	key := "SERIES_S1_EVT_8"

	parent := testGame(0, "Spring Series Event #8")
	parent.IsSeriesParent = true
	parent.ConsolidationKey = key
	require.NoError(t, store.Create(ctx, parent))

	for _, id := range []int{4502, 4501} {
		child := testGame(id, "Spring Series Event #8 Day 1")
		child.IsSeries = true
		child.ConsolidationKey = key
		child.ParentGameID = &parent.ID
		require.NoError(t, store.Create(ctx, child))
	}

	parents, err := store.FindParents(ctx, key)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, parent.ID, parents[0].ID)

	siblings, err := store.FindSiblings(ctx, key)
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, 4501, siblings[0].TournamentID)
	assert.Equal(t, 4502, siblings[1].TournamentID)
}
