package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// PostStore is the social persistence surface the matcher drives.
type PostStore interface {
	GetPost(ctx context.Context, id string) (*store.SocialPost, error)
	PendingPosts(ctx context.Context, limit int) ([]store.SocialPost, error)
	AccountForPost(ctx context.Context, p *store.SocialPost) (*store.SocialAccount, error)
	SaveGameData(ctx context.Context, d *store.PostGameData) error
	UpdatePostStatus(ctx context.Context, postID string, status store.ProcessingStatus, contentType string, linkedGameCount int, processingError string) error
	CreateLink(ctx context.Context, l *store.PostGameLink) (bool, error)
	DeleteLink(ctx context.Context, postID, gameID string) error
	VerifyLink(ctx context.Context, postID, gameID string) error
	RejectLink(ctx context.Context, postID, gameID, reason string) error
	ActiveLinkCount(ctx context.Context, postID string) (int, error)
}

// GameLinker is the game-side surface for link recounts.
type GameLinker interface {
	Get(ctx context.Context, id string) (*game.Game, error)
	RecountSocialLinks(ctx context.Context, gameID string) error
}

// VenueResolver maps a venue hint from post text to a stored venue.
type VenueResolver interface {
	MatchVenue(ctx context.Context, entityID, hint string) (*game.Venue, error)
}

// Matcher runs the extract, rank, commit pipeline for posts.
type Matcher struct {
	posts     PostStore
	games     GameLinker
	venues    VenueResolver
	extractor *Extractor
	ranker    *Ranker
	log       *logrus.Logger
}

func NewMatcher(posts PostStore, games GameLinker, venues VenueResolver,
	extractor *Extractor, ranker *Ranker, log *logrus.Logger) *Matcher {
	return &Matcher{
		posts:     posts,
		games:     games,
		venues:    venues,
		extractor: extractor,
		ranker:    ranker,
		log:       log,
	}
}

// ProcessResult reports one post's processing outcome.
type ProcessResult struct {
	Success      bool        `json:"success"`
	PostID       string      `json:"postId"`
	ContentType  string      `json:"contentType,omitempty"`
	LinksCreated int         `json:"linksCreated"`
	LinkedGames  int         `json:"linkedGameCount"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// Preview extracts and ranks without writing anything.
func (m *Matcher) Preview(ctx context.Context, postID string) (*ProcessResult, error) {
	post, err := m.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	account, err := m.posts.AccountForPost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("resolving account for post %s: %w", postID, err)
	}

	sig := m.extractor.Extract(post.Content, post.PostedAt)
	if !sig.HasSignals() {
		return &ProcessResult{PostID: postID, Message: "no tournament signals extracted"}, nil
	}

	candidates, err := m.rank(ctx, account.EntityID, sig, post.PostedAt)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{
		Success:     true,
		PostID:      postID,
		ContentType: sig.ContentType,
		Candidates:  candidates,
	}, nil
}

// Process runs the full pipeline for one post and persists the outcome.
// Reprocessing a processed post is idempotent: existing (post, game) links
// are left alone and counts are recomputed, not incremented.
func (m *Matcher) Process(ctx context.Context, postID string) (*ProcessResult, error) {
	post, err := m.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	account, err := m.posts.AccountForPost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("resolving account for post %s: %w", postID, err)
	}

	if err := m.posts.UpdatePostStatus(ctx, postID, store.PostProcessing, "", post.LinkedGameCount, ""); err != nil {
		return nil, err
	}

	sig := m.extractor.Extract(post.Content, post.PostedAt)
	if !sig.HasSignals() {
		msg := "no tournament signals extracted"
		if err := m.posts.UpdatePostStatus(ctx, postID, store.PostFailed, "", 0, msg); err != nil {
			return nil, err
		}
		return &ProcessResult{PostID: postID, Message: msg}, nil
	}

	candidates, err := m.rank(ctx, account.EntityID, sig, post.PostedAt)
	if err != nil {
		return nil, err
	}

	sig.Data.PostID = postID
	if err := m.posts.SaveGameData(ctx, &sig.Data); err != nil {
		return nil, err
	}

	created := 0
	for _, c := range candidates {
		if !c.WouldAutoLink {
			continue
		}
		ok, err := m.posts.CreateLink(ctx, &store.PostGameLink{
			PostID:          postID,
			GameID:          c.Game.ID,
			LinkType:        store.LinkAuto,
			MatchConfidence: c.MatchConfidence,
			MatchReason:     c.MatchReason,
			IsPrimaryGame:   c.IsPrimaryMatch,
			LinkedAt:        time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		if ok {
			created++
		}
		if err := m.games.RecountSocialLinks(ctx, c.Game.ID); err != nil {
			return nil, err
		}
	}

	linked, err := m.posts.ActiveLinkCount(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := m.posts.UpdatePostStatus(ctx, postID, store.PostSuccess, sig.ContentType, linked, ""); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"postId":      postID,
		"contentType": sig.ContentType,
		"candidates":  len(candidates),
		"created":     created,
	}).Info("social post processed")

	return &ProcessResult{
		Success:      true,
		PostID:       postID,
		ContentType:  sig.ContentType,
		LinksCreated: created,
		LinkedGames:  linked,
		Candidates:   candidates,
	}, nil
}

func (m *Matcher) rank(ctx context.Context, entityID string, sig Signals, postedAt time.Time) ([]Candidate, error) {
	venueID := ""
	if sig.Data.VenueHint != nil {
		venue, err := m.venues.MatchVenue(ctx, entityID, *sig.Data.VenueHint)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if venue != nil {
			venueID = venue.ID
		}
	}
	return m.ranker.Rank(ctx, entityID, venueID, sig, postedAt)
}

// BatchResult aggregates a batch invocation.
type BatchResult struct {
	Processed        []ProcessResult `json:"processed"`
	UnprocessedItems []string        `json:"unprocessedItems,omitempty"`
	Failures         int             `json:"failures"`
}

// ProcessBatch processes up to limit posts. With explicit ids, the
// remainder past the limit comes back as UnprocessedItems for the caller
// to retry; without ids, pending posts are drained oldest first.
func (m *Matcher) ProcessBatch(ctx context.Context, postIDs []string, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = 25
	}

	if len(postIDs) == 0 {
		pending, err := m.posts.PendingPosts(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, p := range pending {
			postIDs = append(postIDs, p.ID)
		}
	}

	res := &BatchResult{}
	for i, id := range postIDs {
		if i >= limit {
			res.UnprocessedItems = append(res.UnprocessedItems, postIDs[i:]...)
			break
		}
		one, err := m.Process(ctx, id)
		if err != nil {
			m.log.WithError(err).WithField("postId", id).Error("batch item failed")
			res.Failures++
			res.UnprocessedItems = append(res.UnprocessedItems, id)
			continue
		}
		res.Processed = append(res.Processed, *one)
	}
	return res, nil
}

// LinkManually creates an operator link and recounts both sides.
func (m *Matcher) LinkManually(ctx context.Context, postID, gameID string) (*ProcessResult, error) {
	if _, err := m.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if _, err := m.games.Get(ctx, gameID); err != nil {
		return nil, err
	}

	created, err := m.posts.CreateLink(ctx, &store.PostGameLink{
		PostID:          postID,
		GameID:          gameID,
		LinkType:        store.LinkManual,
		MatchConfidence: 1.0,
		MatchReason:     "MANUAL",
		LinkedAt:        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	res, err := m.recount(ctx, postID, gameID)
	if err != nil {
		return nil, err
	}
	if !created {
		res.Message = "link already exists"
	}
	return res, nil
}

// Unlink deletes a link and recounts both sides.
func (m *Matcher) Unlink(ctx context.Context, postID, gameID string) (*ProcessResult, error) {
	if err := m.posts.DeleteLink(ctx, postID, gameID); err != nil {
		return nil, err
	}
	return m.recount(ctx, postID, gameID)
}

// Verify marks an auto link operator-approved.
func (m *Matcher) Verify(ctx context.Context, postID, gameID string) (*ProcessResult, error) {
	if err := m.posts.VerifyLink(ctx, postID, gameID); err != nil {
		return nil, err
	}
	return m.recount(ctx, postID, gameID)
}

// Reject marks a link rejected; the row stays for audit but drops out of
// both link counts.
func (m *Matcher) Reject(ctx context.Context, postID, gameID, reason string) (*ProcessResult, error) {
	if err := m.posts.RejectLink(ctx, postID, gameID, reason); err != nil {
		return nil, err
	}
	return m.recount(ctx, postID, gameID)
}

func (m *Matcher) recount(ctx context.Context, postID, gameID string) (*ProcessResult, error) {
	if err := m.games.RecountSocialLinks(ctx, gameID); err != nil {
		return nil, err
	}
	linked, err := m.posts.ActiveLinkCount(ctx, postID)
	if err != nil {
		return nil, err
	}
	post, err := m.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := m.posts.UpdatePostStatus(ctx, postID, post.ProcessingStatus, "", linked, ""); err != nil {
		return nil, err
	}
	return &ProcessResult{Success: true, PostID: postID, LinkedGames: linked}, nil
}
