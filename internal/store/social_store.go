package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProcessingStatus is a social post's pipeline state.
type ProcessingStatus string

const (
	PostPending    ProcessingStatus = "PENDING"
	PostProcessing ProcessingStatus = "PROCESSING"
	PostSuccess    ProcessingStatus = "SUCCESS"
	PostFailed     ProcessingStatus = "FAILED"
)

// LinkType distinguishes automatic from operator-created links.
type LinkType string

const (
	LinkAuto   LinkType = "AUTO"
	LinkManual LinkType = "MANUAL"
)

// SocialPost is one platform post.
type SocialPost struct {
	ID               string           `db:"id" json:"id"`
	SocialAccountID  string           `db:"social_account_id" json:"socialAccountId"`
	PlatformPostID   string           `db:"platform_post_id" json:"platformPostId"`
	Content          string           `db:"content" json:"content"`
	MediaRefs        string           `db:"media_refs" json:"mediaRefs,omitempty"`
	PostedAt         time.Time        `db:"posted_at" json:"postedAt"`
	ProcessingStatus ProcessingStatus `db:"processing_status" json:"processingStatus"`
	ContentType      *string          `db:"content_type" json:"contentType,omitempty"`
	LinkedGameCount  int              `db:"linked_game_count" json:"linkedGameCount"`
	ProcessingError  *string          `db:"processing_error" json:"processingError,omitempty"`
	Version          int              `db:"version" json:"version"`
}

// SocialAccount is a per-entity platform account whose posts are ingested.
type SocialAccount struct {
	ID        string    `db:"id" json:"id"`
	EntityID  string    `db:"entity_id" json:"entityId"`
	Platform  string    `db:"platform" json:"platform"`
	Handle    string    `db:"handle" json:"handle"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PostGameData is the extracted tournament signals for one processed post.
type PostGameData struct {
	PostID            string     `db:"post_id" json:"postId"`
	BuyIn             *float64   `db:"buy_in" json:"buyIn,omitempty"`
	GuaranteeAmount   *float64   `db:"guarantee_amount" json:"guaranteeAmount,omitempty"`
	PrizePool         *float64   `db:"prize_pool" json:"prizePool,omitempty"`
	FirstPlacePrize   *float64   `db:"first_place_prize" json:"firstPlacePrize,omitempty"`
	TotalEntries      *int       `db:"total_entries" json:"totalEntries,omitempty"`
	GameType          *string    `db:"game_type" json:"gameType,omitempty"`
	GameVariant       *string    `db:"game_variant" json:"gameVariant,omitempty"`
	TournamentType    *string    `db:"tournament_type" json:"tournamentType,omitempty"`
	SeriesName        *string    `db:"series_name" json:"seriesName,omitempty"`
	EventNumber       *int       `db:"event_number" json:"eventNumber,omitempty"`
	DayNumber         *int       `db:"day_number" json:"dayNumber,omitempty"`
	FlightLetter      *string    `db:"flight_letter" json:"flightLetter,omitempty"`
	WinnerName        *string    `db:"winner_name" json:"winnerName,omitempty"`
	WinnerPrize       *float64   `db:"winner_prize" json:"winnerPrize,omitempty"`
	Placements        string     `db:"placements" json:"placements,omitempty"`
	TournamentURL     *string    `db:"tournament_url" json:"tournamentUrl,omitempty"`
	TournamentID      *int       `db:"tournament_id" json:"tournamentId,omitempty"`
	EventDate         *time.Time `db:"event_date" json:"eventDate,omitempty"`
	VenueHint         *string    `db:"venue_hint" json:"venueHint,omitempty"`
	ContentType       string     `db:"content_type" json:"contentType"`
	ContentConfidence float64    `db:"content_confidence" json:"contentConfidence"`
	ResultScore       float64    `db:"result_score" json:"resultScore"`
	PromoScore        float64    `db:"promo_score" json:"promoScore"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// PostGameLink is the edge between a post and a game. At most one exists
// per (post, game) pair; the store enforces it with a unique index.
type PostGameLink struct {
	ID              string     `db:"id" json:"id"`
	PostID          string     `db:"post_id" json:"postId"`
	GameID          string     `db:"game_id" json:"gameId"`
	LinkType        LinkType   `db:"link_type" json:"linkType"`
	MatchConfidence float64    `db:"match_confidence" json:"matchConfidence"`
	MatchReason     string     `db:"match_reason" json:"matchReason"`
	IsPrimaryGame   bool       `db:"is_primary_game" json:"isPrimaryGame"`
	LinkedAt        time.Time  `db:"linked_at" json:"linkedAt"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
}

// SocialStore persists posts, extracted data, and post-game links.
type SocialStore struct {
	db *sqlx.DB
}

func NewSocialStore(db *sqlx.DB) *SocialStore {
	return &SocialStore{db: db}
}

// GetPost returns a post by id, or ErrNotFound.
func (s *SocialStore) GetPost(ctx context.Context, id string) (*SocialPost, error) {
	var p SocialPost
	err := s.db.GetContext(ctx, &p, "SELECT * FROM social_posts WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}
	return &p, nil
}

// CreatePost inserts a post. Duplicate (account, platform post id) pairs
// are ignored so repeated ingestion runs converge.
func (s *SocialStore) CreatePost(ctx context.Context, p *SocialPost) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ProcessingStatus == "" {
		p.ProcessingStatus = PostPending
	}
	p.Version = 1

	_, err := s.db.NamedExecContext(ctx,
		`INSERT OR IGNORE INTO social_posts
			(id, social_account_id, platform_post_id, content, media_refs,
			 posted_at, processing_status, content_type, linked_game_count, version)
		 VALUES (:id, :social_account_id, :platform_post_id, :content, :media_refs,
			 :posted_at, :processing_status, :content_type, :linked_game_count, :version)`, p)
	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return nil
}

// UpdatePostStatus writes the processing outcome back to a post.
func (s *SocialStore) UpdatePostStatus(ctx context.Context, postID string, status ProcessingStatus, contentType string, linkedGameCount int, processingError string) error {
	var ct, pe *string
	if contentType != "" {
		ct = &contentType
	}
	if processingError != "" {
		pe = &processingError
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE social_posts SET
			processing_status = ?, content_type = COALESCE(?, content_type),
			linked_game_count = ?, processing_error = ?, version = version + 1
		 WHERE id = ?`,
		status, ct, linkedGameCount, pe, postID)
	if err != nil {
		return fmt.Errorf("updating post status: %w", err)
	}
	return nil
}

// PendingPosts returns up to limit unprocessed posts, oldest first.
func (s *SocialStore) PendingPosts(ctx context.Context, limit int) ([]SocialPost, error) {
	var posts []SocialPost
	err := s.db.SelectContext(ctx, &posts,
		`SELECT * FROM social_posts WHERE processing_status = ?
		 ORDER BY posted_at ASC LIMIT ?`, PostPending, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending posts: %w", err)
	}
	return posts, nil
}

// SaveGameData upserts the extracted signals for a post.
func (s *SocialStore) SaveGameData(ctx context.Context, d *PostGameData) error {
	d.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx,
		`UPDATE social_post_game_data SET
			buy_in = :buy_in, guarantee_amount = :guarantee_amount,
			prize_pool = :prize_pool, first_place_prize = :first_place_prize,
			total_entries = :total_entries, game_type = :game_type,
			game_variant = :game_variant, tournament_type = :tournament_type,
			series_name = :series_name, event_number = :event_number,
			day_number = :day_number, flight_letter = :flight_letter,
			winner_name = :winner_name, winner_prize = :winner_prize,
			placements = :placements, tournament_url = :tournament_url,
			tournament_id = :tournament_id, event_date = :event_date,
			venue_hint = :venue_hint, content_type = :content_type,
			content_confidence = :content_confidence,
			result_score = :result_score, promo_score = :promo_score,
			updated_at = :updated_at
		 WHERE post_id = :post_id`, d)
	if err != nil {
		return fmt.Errorf("updating post game data: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO social_post_game_data
			(post_id, buy_in, guarantee_amount, prize_pool, first_place_prize,
			 total_entries, game_type, game_variant, tournament_type,
			 series_name, event_number, day_number, flight_letter,
			 winner_name, winner_prize, placements, tournament_url,
			 tournament_id, event_date, venue_hint, content_type,
			 content_confidence, result_score, promo_score, updated_at)
		 VALUES (:post_id, :buy_in, :guarantee_amount, :prize_pool, :first_place_prize,
			 :total_entries, :game_type, :game_variant, :tournament_type,
			 :series_name, :event_number, :day_number, :flight_letter,
			 :winner_name, :winner_prize, :placements, :tournament_url,
			 :tournament_id, :event_date, :venue_hint, :content_type,
			 :content_confidence, :result_score, :promo_score, :updated_at)`, d)
	if err != nil {
		return fmt.Errorf("inserting post game data: %w", err)
	}
	return nil
}

// GetLink returns the link for a (post, game) pair, or ErrNotFound.
func (s *SocialStore) GetLink(ctx context.Context, postID, gameID string) (*PostGameLink, error) {
	var l PostGameLink
	err := s.db.GetContext(ctx, &l,
		"SELECT * FROM social_post_game_links WHERE post_id = ? AND game_id = ?", postID, gameID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting link: %w", err)
	}
	return &l, nil
}

// CreateLink inserts a link unless the (post, game) pair already has one.
// Returns true when a new link was created.
func (s *SocialStore) CreateLink(ctx context.Context, l *PostGameLink) (bool, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.LinkedAt.IsZero() {
		l.LinkedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT OR IGNORE INTO social_post_game_links
			(id, post_id, game_id, link_type, match_confidence, match_reason,
			 is_primary_game, linked_at)
		 VALUES (:id, :post_id, :game_id, :link_type, :match_confidence, :match_reason,
			 :is_primary_game, :linked_at)`, l)
	if err != nil {
		return false, fmt.Errorf("creating link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("creating link: %w", err)
	}
	return n > 0, nil
}

// DeleteLink removes a link. The caller recounts the game side afterwards.
func (s *SocialStore) DeleteLink(ctx context.Context, postID, gameID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM social_post_game_links WHERE post_id = ? AND game_id = ?", postID, gameID)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyLink marks an auto link operator-approved.
func (s *SocialStore) VerifyLink(ctx context.Context, postID, gameID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE social_post_game_links SET verified_at = ?, rejected_at = NULL, rejection_reason = NULL
		 WHERE post_id = ? AND game_id = ?`,
		time.Now().UTC(), postID, gameID)
	if err != nil {
		return fmt.Errorf("verifying link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RejectLink marks a link rejected. The row stays for audit; rejected
// links are excluded from link counts.
func (s *SocialStore) RejectLink(ctx context.Context, postID, gameID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE social_post_game_links SET rejected_at = ?, rejection_reason = ?
		 WHERE post_id = ? AND game_id = ?`,
		time.Now().UTC(), reason, postID, gameID)
	if err != nil {
		return fmt.Errorf("rejecting link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinksForPost returns all links for a post.
func (s *SocialStore) LinksForPost(ctx context.Context, postID string) ([]PostGameLink, error) {
	var links []PostGameLink
	err := s.db.SelectContext(ctx, &links,
		"SELECT * FROM social_post_game_links WHERE post_id = ? ORDER BY linked_at ASC", postID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	return links, nil
}

// ActiveLinkCount counts a post's non-rejected links.
func (s *SocialStore) ActiveLinkCount(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM social_post_game_links WHERE post_id = ? AND rejected_at IS NULL", postID)
	if err != nil {
		return 0, fmt.Errorf("counting links: %w", err)
	}
	return n, nil
}

// Accounts returns the social accounts registered for an entity.
func (s *SocialStore) Accounts(ctx context.Context, entityID string) ([]SocialAccount, error) {
	var accounts []SocialAccount
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT * FROM social_accounts WHERE entity_id = ? ORDER BY handle ASC", entityID)
	if err != nil {
		return nil, fmt.Errorf("listing social accounts: %w", err)
	}
	return accounts, nil
}

// AccountForPost resolves the owning account of a post.
func (s *SocialStore) AccountForPost(ctx context.Context, p *SocialPost) (*SocialAccount, error) {
	var a SocialAccount
	err := s.db.GetContext(ctx, &a, "SELECT * FROM social_accounts WHERE id = ?", p.SocialAccountID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &a, nil
}
