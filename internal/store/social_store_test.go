package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

func createAccount(t *testing.T, s *SocialStore, id string) {
	t.Helper()
	_, err := s.db.Exec(
		"INSERT INTO social_accounts (id, entity_id, platform, handle) VALUES (?, 'E1', 'twitter', 'kingsroom')",
		id)
	require.NoError(t, err)
}

func testPost(accountID, platformID string) *SocialPost {
	return &SocialPost{
		SocialAccountID: accountID,
		PlatformPostID:  platformID,
		Content:         "Congratulations to our winner!",
		PostedAt:        time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreatePostIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewSocialStore(db)
	ctx := context.Background()
	createAccount(t, store, "acct1")

	p := testPost("acct1", "tw-100")
	require.NoError(t, store.CreatePost(ctx, p))
	assert.Equal(t, PostPending, p.ProcessingStatus)

	// Re-ingesting the same platform post converges on the existing row.
	dup := testPost("acct1", "tw-100")
	require.NoError(t, store.CreatePost(ctx, dup))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM social_posts"))
	assert.Equal(t, 1, n)
}

func TestUpdatePostStatusKeepsContentType(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewSocialStore(db)
	ctx := context.Background()
	createAccount(t, store, "acct1")

	p := testPost("acct1", "tw-100")
	require.NoError(t, store.CreatePost(ctx, p))

	require.NoError(t, store.UpdatePostStatus(ctx, p.ID, PostSuccess, "RESULT", 1, ""))
	fetched, err := store.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PostSuccess, fetched.ProcessingStatus)
	require.NotNil(t, fetched.ContentType)
	assert.Equal(t, "RESULT", *fetched.ContentType)
	assert.Equal(t, 1, fetched.LinkedGameCount)

	// A later status write with no content type keeps the stored one.
	require.NoError(t, store.UpdatePostStatus(ctx, p.ID, PostProcessing, "", 1, ""))
	fetched, err = store.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.ContentType)
	assert.Equal(t, "RESULT", *fetched.ContentType)
}

func TestPendingPostsOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewSocialStore(db)
	ctx := context.Background()
	createAccount(t, store, "acct1")

	newer := testPost("acct1", "tw-2")
	newer.PostedAt = time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreatePost(ctx, newer))

	older := testPost("acct1", "tw-1")
	older.PostedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreatePost(ctx, older))

	done := testPost("acct1", "tw-3")
	require.NoError(t, store.CreatePost(ctx, done))
	require.NoError(t, store.UpdatePostStatus(ctx, done.ID, PostSuccess, "", 0, ""))

	pending, err := store.PendingPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
}

func TestLinkLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	socials := NewSocialStore(db)
	games := NewGameStore(db)
	ctx := context.Background()
	createAccount(t, socials, "acct1")

	p := testPost("acct1", "tw-100")
	require.NoError(t, socials.CreatePost(ctx, p))

	g := &game.Game{TournamentID: 4501, EntityID: "E1", Name: "Friday Deepstack", GameStatus: game.StatusFinished}
	require.NoError(t, games.Create(ctx, g))

	created, err := socials.CreateLink(ctx, &PostGameLink{
		PostID:          p.ID,
		GameID:          g.ID,
		LinkType:        LinkAuto,
		MatchConfidence: 0.95,
		MatchReason:     "TOURNAMENT_ID_EXACT",
		IsPrimaryGame:   true,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// The unique (post, game) index makes a second link a no-op.
	created, err = socials.CreateLink(ctx, &PostGameLink{
		PostID: p.ID, GameID: g.ID, LinkType: LinkManual, MatchConfidence: 1.0,
	})
	require.NoError(t, err)
	assert.False(t, created)

	n, err := socials.ActiveLinkCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, games.RecountSocialLinks(ctx, g.ID))
	counted, err := games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counted.LinkedSocialPostCount)
	assert.True(t, counted.HasLinkedSocialPosts)

	// Rejection keeps the row for audit but removes it from counts.
	require.NoError(t, socials.RejectLink(ctx, p.ID, g.ID, "wrong event"))
	n, err = socials.ActiveLinkCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	links, err := socials.LinksForPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].RejectedAt)
	require.NotNil(t, links[0].RejectionReason)
	assert.Equal(t, "wrong event", *links[0].RejectionReason)

	require.NoError(t, games.RecountSocialLinks(ctx, g.ID))
	counted, err = games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counted.LinkedSocialPostCount)
	assert.False(t, counted.HasLinkedSocialPosts)

	// Verification clears the rejection.
	require.NoError(t, socials.VerifyLink(ctx, p.ID, g.ID))
	n, err = socials.ActiveLinkCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, socials.DeleteLink(ctx, p.ID, g.ID))
	err = socials.DeleteLink(ctx, p.ID, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveGameDataUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewSocialStore(db)
	ctx := context.Background()
	createAccount(t, store, "acct1")

	p := testPost("acct1", "tw-100")
	require.NoError(t, store.CreatePost(ctx, p))

	buyIn := 550.0
	require.NoError(t, store.SaveGameData(ctx, &PostGameData{
		PostID: p.ID, BuyIn: &buyIn, ContentType: "PROMOTIONAL",
	}))

	entries := 142
	require.NoError(t, store.SaveGameData(ctx, &PostGameData{
		PostID: p.ID, TotalEntries: &entries, ContentType: "RESULT",
	}))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM social_post_game_data"))
	assert.Equal(t, 1, n)

	var ct string
	require.NoError(t, db.Get(&ct, "SELECT content_type FROM social_post_game_data WHERE post_id = ?", p.ID))
	assert.Equal(t, "RESULT", ct)
}
