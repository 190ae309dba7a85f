package social

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

type fakePostStore struct {
	posts    map[string]*store.SocialPost
	accounts map[string]*store.SocialAccount
	data     map[string]*store.PostGameData
	links    map[[2]string]*store.PostGameLink

	statusUpdates []store.ProcessingStatus
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{
		posts:    make(map[string]*store.SocialPost),
		accounts: make(map[string]*store.SocialAccount),
		data:     make(map[string]*store.PostGameData),
		links:    make(map[[2]string]*store.PostGameLink),
	}
}

func (f *fakePostStore) GetPost(_ context.Context, id string) (*store.SocialPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostStore) PendingPosts(_ context.Context, limit int) ([]store.SocialPost, error) {
	var out []store.SocialPost
	for _, p := range f.posts {
		if p.ProcessingStatus == store.PostPending && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePostStore) AccountForPost(_ context.Context, p *store.SocialPost) (*store.SocialAccount, error) {
	a, ok := f.accounts[p.SocialAccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakePostStore) SaveGameData(_ context.Context, d *store.PostGameData) error {
	cp := *d
	f.data[d.PostID] = &cp
	return nil
}

func (f *fakePostStore) UpdatePostStatus(_ context.Context, postID string, status store.ProcessingStatus, contentType string, linkedGameCount int, processingError string) error {
	p, ok := f.posts[postID]
	if !ok {
		return store.ErrNotFound
	}
	p.ProcessingStatus = status
	if contentType != "" {
		p.ContentType = &contentType
	}
	p.LinkedGameCount = linkedGameCount
	if processingError != "" {
		p.ProcessingError = &processingError
	}
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakePostStore) CreateLink(_ context.Context, l *store.PostGameLink) (bool, error) {
	k := [2]string{l.PostID, l.GameID}
	if _, ok := f.links[k]; ok {
		return false, nil
	}
	cp := *l
	f.links[k] = &cp
	return true, nil
}

func (f *fakePostStore) DeleteLink(_ context.Context, postID, gameID string) error {
	k := [2]string{postID, gameID}
	if _, ok := f.links[k]; !ok {
		return store.ErrNotFound
	}
	delete(f.links, k)
	return nil
}

func (f *fakePostStore) VerifyLink(_ context.Context, postID, gameID string) error {
	l, ok := f.links[[2]string{postID, gameID}]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	l.VerifiedAt = &now
	l.RejectedAt = nil
	return nil
}

func (f *fakePostStore) RejectLink(_ context.Context, postID, gameID, reason string) error {
	l, ok := f.links[[2]string{postID, gameID}]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	l.RejectedAt = &now
	l.RejectionReason = &reason
	return nil
}

func (f *fakePostStore) ActiveLinkCount(_ context.Context, postID string) (int, error) {
	n := 0
	for k, l := range f.links {
		if k[0] == postID && l.RejectedAt == nil {
			n++
		}
	}
	return n, nil
}

type fakeGameLinker struct {
	games    map[string]*game.Game
	recounts []string
}

func (f *fakeGameLinker) Get(_ context.Context, id string) (*game.Game, error) {
	g, ok := f.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeGameLinker) RecountSocialLinks(_ context.Context, gameID string) error {
	f.recounts = append(f.recounts, gameID)
	return nil
}

type fakeVenueResolver struct{}

func (fakeVenueResolver) MatchVenue(_ context.Context, _, _ string) (*game.Venue, error) {
	return nil, store.ErrNotFound
}

type matcherFixture struct {
	matcher *Matcher
	posts   *fakePostStore
	games   *fakeGameLinker
	source  *fakeCandidateSource
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &matcherFixture{
		posts:  newFakePostStore(),
		games:  &fakeGameLinker{games: make(map[string]*game.Game)},
		source: &fakeCandidateSource{},
	}
	f.matcher = NewMatcher(f.posts, f.games, fakeVenueResolver{},
		NewExtractor(sydney(t)), NewRanker(f.source, 7, 0.80), log)
	return f
}

// seedResultPost installs a post whose extraction yields one candidate at
// high confidence.
func (f *matcherFixture) seedResultPost(t *testing.T) {
	t.Helper()
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	f.posts.accounts["a1"] = &store.SocialAccount{ID: "a1", EntityID: "E1", Platform: "twitter", Handle: "kingsroom"}
	f.posts.posts["p1"] = &store.SocialPost{
		ID:              "p1",
		SocialAccountID: "a1",
		Content:         "Full results: https://example.com/tournament/4512 - congrats to the winner! 142 entries.",
		PostedAt:        start.Add(6 * time.Hour),
		ProcessingStatus: store.PostPending,
	}
	g := &game.Game{ID: "g1", EntityID: "E1", TournamentID: 4512, Name: "Main Event", GameStartDateTime: &start}
	f.games.games["g1"] = g
	f.source.games = []game.Game{*g}
}

func TestProcessCreatesAutoLink(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)

	res, err := f.matcher.Process(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	if res.LinksCreated != 1 {
		t.Errorf("LinksCreated = %d, want 1", res.LinksCreated)
	}
	if res.LinkedGames != 1 {
		t.Errorf("LinkedGames = %d, want 1", res.LinkedGames)
	}

	link := f.posts.links[[2]string{"p1", "g1"}]
	if link == nil {
		t.Fatal("no link created")
	}
	if link.LinkType != store.LinkAuto {
		t.Errorf("LinkType = %q, want AUTO", link.LinkType)
	}
	if !link.IsPrimaryGame {
		t.Error("primary candidate not marked on link")
	}
	if f.posts.posts["p1"].ProcessingStatus != store.PostSuccess {
		t.Errorf("post status = %q, want SUCCESS", f.posts.posts["p1"].ProcessingStatus)
	}
	if f.posts.data["p1"] == nil {
		t.Error("extracted data not persisted")
	}
	if len(f.games.recounts) == 0 || f.games.recounts[0] != "g1" {
		t.Error("game-side link count not recomputed")
	}
}

func TestProcessIdempotentReprocess(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)
	ctx := context.Background()

	first, err := f.matcher.Process(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.matcher.Process(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}

	if first.LinksCreated != 1 {
		t.Errorf("first LinksCreated = %d, want 1", first.LinksCreated)
	}
	if second.LinksCreated != 0 {
		t.Errorf("second LinksCreated = %d, want 0 (link already exists)", second.LinksCreated)
	}
	if second.LinkedGames != 1 {
		t.Errorf("second LinkedGames = %d, want 1", second.LinkedGames)
	}
	if len(f.posts.links) != 1 {
		t.Errorf("store holds %d links, want 1", len(f.posts.links))
	}
	if f.posts.posts["p1"].LinkedGameCount != 1 {
		t.Errorf("LinkedGameCount = %d, want 1", f.posts.posts["p1"].LinkedGameCount)
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	f := newMatcherFixture(t)
	f.posts.accounts["a1"] = &store.SocialAccount{ID: "a1", EntityID: "E1"}
	f.posts.posts["p1"] = &store.SocialPost{
		ID:              "p1",
		SocialAccountID: "a1",
		Content:         "Great night in the room!",
		PostedAt:        time.Now(),
		ProcessingStatus: store.PostPending,
	}

	res, err := f.matcher.Process(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("Success = true for failed extraction")
	}
	if f.posts.posts["p1"].ProcessingStatus != store.PostFailed {
		t.Errorf("post status = %q, want FAILED", f.posts.posts["p1"].ProcessingStatus)
	}
	if f.posts.posts["p1"].ProcessingError == nil {
		t.Error("no error recorded on post")
	}
	if len(f.posts.links) != 0 {
		t.Error("failed extraction created links")
	}
}

func TestProcessNoCandidatesSucceeds(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)
	f.source.games = nil

	res, err := f.matcher.Process(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("Success = false with zero candidates")
	}
	if res.LinksCreated != 0 {
		t.Errorf("LinksCreated = %d, want 0", res.LinksCreated)
	}
	if f.posts.posts["p1"].ProcessingStatus != store.PostSuccess {
		t.Errorf("post status = %q, want SUCCESS", f.posts.posts["p1"].ProcessingStatus)
	}
}

func TestPreviewIsPure(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)

	res, err := f.matcher.Preview(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	if len(res.Candidates) == 0 {
		t.Error("no candidates returned")
	}
	if len(f.posts.links) != 0 || len(f.posts.data) != 0 {
		t.Error("preview wrote to the store")
	}
	if f.posts.posts["p1"].ProcessingStatus != store.PostPending {
		t.Error("preview changed the post status")
	}
}

func TestLinkLifecycle(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)
	ctx := context.Background()

	t.Run("manual link", func(t *testing.T) {
		res, err := f.matcher.LinkManually(ctx, "p1", "g1")
		if err != nil {
			t.Fatal(err)
		}
		if res.LinkedGames != 1 {
			t.Errorf("LinkedGames = %d, want 1", res.LinkedGames)
		}
		if f.posts.links[[2]string{"p1", "g1"}].LinkType != store.LinkManual {
			t.Error("link not MANUAL")
		}
	})

	t.Run("duplicate manual link reports existing", func(t *testing.T) {
		res, err := f.matcher.LinkManually(ctx, "p1", "g1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Message != "link already exists" {
			t.Errorf("Message = %q", res.Message)
		}
	})

	t.Run("verify", func(t *testing.T) {
		if _, err := f.matcher.Verify(ctx, "p1", "g1"); err != nil {
			t.Fatal(err)
		}
		if f.posts.links[[2]string{"p1", "g1"}].VerifiedAt == nil {
			t.Error("link not verified")
		}
	})

	t.Run("reject excludes from count", func(t *testing.T) {
		res, err := f.matcher.Reject(ctx, "p1", "g1", "wrong tournament")
		if err != nil {
			t.Fatal(err)
		}
		if res.LinkedGames != 0 {
			t.Errorf("LinkedGames = %d, want 0 after rejection", res.LinkedGames)
		}
		l := f.posts.links[[2]string{"p1", "g1"}]
		if l == nil || l.RejectedAt == nil {
			t.Error("rejected link removed instead of kept for audit")
		}
	})

	t.Run("unlink", func(t *testing.T) {
		if _, err := f.matcher.Unlink(ctx, "p1", "g1"); err != nil {
			t.Fatal(err)
		}
		if len(f.posts.links) != 0 {
			t.Error("link still present after unlink")
		}
	})

	t.Run("unlink missing pair", func(t *testing.T) {
		if _, err := f.matcher.Unlink(ctx, "p1", "g1"); err != store.ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestProcessBatch(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedResultPost(t)
	// A second pending post with no usable signals.
	f.posts.posts["p2"] = &store.SocialPost{
		ID:              "p2",
		SocialAccountID: "a1",
		Content:         "See you at the tables!",
		PostedAt:        time.Now(),
		ProcessingStatus: store.PostPending,
	}

	t.Run("explicit ids over limit", func(t *testing.T) {
		res, err := f.matcher.ProcessBatch(context.Background(), []string{"p1", "p2"}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Processed) != 1 {
			t.Errorf("Processed = %d, want 1", len(res.Processed))
		}
		if len(res.UnprocessedItems) != 1 || res.UnprocessedItems[0] != "p2" {
			t.Errorf("UnprocessedItems = %v, want [p2]", res.UnprocessedItems)
		}
	})

	t.Run("drains pending without ids", func(t *testing.T) {
		res, err := f.matcher.ProcessBatch(context.Background(), nil, 10)
		if err != nil {
			t.Fatal(err)
		}
		// p1 is already processed; only p2 remains pending.
		if len(res.Processed) != 1 {
			t.Errorf("Processed = %d, want 1", len(res.Processed))
		}
	})

	t.Run("missing post reported unprocessed", func(t *testing.T) {
		res, err := f.matcher.ProcessBatch(context.Background(), []string{"nope"}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if res.Failures != 1 || len(res.UnprocessedItems) != 1 {
			t.Errorf("res = %+v, want one failure", res)
		}
	})
}
