package game

import (
	"strconv"
	"time"
)

// Status is the canonical tournament status.
type Status string

const (
	StatusRunning      Status = "RUNNING"
	StatusScheduled    Status = "SCHEDULED"
	StatusRegistering  Status = "REGISTERING"
	StatusClockStopped Status = "CLOCK_STOPPED"
	StatusFinished     Status = "FINISHED"
	StatusCancelled    Status = "CANCELLED"
	StatusNotPublished Status = "NOT_PUBLISHED"
	StatusNotFound     Status = "NOT_FOUND"
	StatusUnknown      Status = "UNKNOWN"
)

// ScrapeStatus is the URL-level outcome of a scrape attempt.
type ScrapeStatus string

const (
	ScrapeSuccess      ScrapeStatus = "SUCCESS"
	ScrapeNotFound     ScrapeStatus = "NOT_FOUND"
	ScrapeNotPublished ScrapeStatus = "NOT_PUBLISHED"
	ScrapeBlank        ScrapeStatus = "BLANK"
	ScrapeError        ScrapeStatus = "ERROR"
	ScrapeRateLimited  ScrapeStatus = "RATE_LIMITED"
	ScrapeAuthError    ScrapeStatus = "AUTH_ERROR"
	ScrapeTimeout      ScrapeStatus = "TIMEOUT"
	ScrapeSkipped      ScrapeStatus = "SKIPPED"
)

// Retryable reports whether a scrape status indicates a transient failure
// that should be retried on a later pass. Retryable statuses never mark a
// URL do-not-scrape and never count toward blank termination.
func (s ScrapeStatus) Retryable() bool {
	switch s {
	case ScrapeError, ScrapeTimeout, ScrapeRateLimited:
		return true
	}
	return false
}

// Empty reports whether a scrape status means the page had no tournament
// to record (missing, unpublished, or blank).
func (s ScrapeStatus) Empty() bool {
	switch s {
	case ScrapeNotFound, ScrapeNotPublished, ScrapeBlank:
		return true
	}
	return false
}

// Game is one tournament instance as stored.
type Game struct {
	ID           string `db:"id" json:"id"`
	TournamentID int    `db:"tournament_id" json:"tournamentId"`
	EntityID     string `db:"entity_id" json:"entityId"`
	VenueID      string `db:"venue_id" json:"venueId,omitempty"`
	Name         string `db:"name" json:"name"`

	GameStartDateTime  *time.Time `db:"game_start_date_time" json:"gameStartDateTime,omitempty"`
	GameEndDateTime    *time.Time `db:"game_end_date_time" json:"gameEndDateTime,omitempty"`
	GameStatus         Status     `db:"game_status" json:"gameStatus"`
	RegistrationStatus string     `db:"registration_status" json:"registrationStatus,omitempty"`
	GameType           string     `db:"game_type" json:"gameType,omitempty"`
	TournamentType     string     `db:"tournament_type" json:"tournamentType,omitempty"`

	BuyIn                float64 `db:"buy_in" json:"buyIn"`
	Rake                 float64 `db:"rake" json:"rake"`
	RakeRevenue          float64 `db:"rake_revenue" json:"rakeRevenue"`
	TotalBuyInsCollected float64 `db:"total_buy_ins_collected" json:"totalBuyInsCollected"`
	TotalUniquePlayers   int     `db:"total_unique_players" json:"totalUniquePlayers"`
	TotalEntries         int     `db:"total_entries" json:"totalEntries"`
	TotalInitialEntries  int     `db:"total_initial_entries" json:"totalInitialEntries"`
	TotalRebuys          int     `db:"total_rebuys" json:"totalRebuys"`
	TotalAddons          int     `db:"total_addons" json:"totalAddons"`
	PrizepoolPaid        float64 `db:"prizepool_paid" json:"prizepoolPaid"`

	HasGuarantee    bool    `db:"has_guarantee" json:"hasGuarantee"`
	GuaranteeAmount float64 `db:"guarantee_amount" json:"guaranteeAmount"`

	IsSeries           bool    `db:"is_series" json:"isSeries"`
	IsSeriesParent     bool    `db:"is_series_parent" json:"isSeriesParent"`
	ParentGameID       *string `db:"parent_game_id" json:"parentGameId,omitempty"`
	TournamentSeriesID string  `db:"tournament_series_id" json:"tournamentSeriesId,omitempty"`
	SeriesName         string  `db:"series_name" json:"seriesName,omitempty"`
	EventNumber        *int    `db:"event_number" json:"eventNumber,omitempty"`
	DayNumber          *int    `db:"day_number" json:"dayNumber,omitempty"`
	FlightLetter       string  `db:"flight_letter" json:"flightLetter,omitempty"`
	FinalDay           bool    `db:"final_day" json:"finalDay"`
	ConsolidationKey   string  `db:"consolidation_key" json:"consolidationKey,omitempty"`

	DoNotScrape             bool   `db:"do_not_scrape" json:"doNotScrape"`
	RequiresVenueAssignment bool   `db:"requires_venue_assignment" json:"requiresVenueAssignment"`
	VenueAssignmentStatus   string `db:"venue_assignment_status" json:"venueAssignmentStatus,omitempty"`

	LinkedSocialPostCount int  `db:"linked_social_post_count" json:"linkedSocialPostCount"`
	HasLinkedSocialPosts  bool `db:"has_linked_social_posts" json:"hasLinkedSocialPosts"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	Version   int       `db:"version" json:"version"`
}

// GameData is a normalized scrape record emitted by the parser for one
// tournament page. It is the consolidation engine's candidate input; it has
// no identity until committed.
type GameData struct {
	TournamentID int    `json:"tournamentId"`
	EntityID     string `json:"entityId"`
	VenueID      string `json:"venueId,omitempty"`
	Name         string `json:"name"`

	GameStartDateTime  *time.Time `json:"gameStartDateTime,omitempty"`
	GameEndDateTime    *time.Time `json:"gameEndDateTime,omitempty"`
	GameStatus         Status     `json:"gameStatus"`
	RegistrationStatus string     `json:"registrationStatus,omitempty"`
	GameType           string     `json:"gameType,omitempty"`
	TournamentType     string     `json:"tournamentType,omitempty"`

	BuyIn               float64 `json:"buyIn"`
	Rake                float64 `json:"rake"`
	TotalUniquePlayers  int     `json:"totalUniquePlayers"`
	TotalEntries        int     `json:"totalEntries"`
	TotalInitialEntries int     `json:"totalInitialEntries"`
	TotalRebuys         int     `json:"totalRebuys"`
	TotalAddons         int     `json:"totalAddons"`
	PrizepoolPaid       float64 `json:"prizepoolPaid"`

	HasGuarantee    bool    `json:"hasGuarantee"`
	GuaranteeAmount float64 `json:"guaranteeAmount"`

	TournamentSeriesID string `json:"tournamentSeriesId,omitempty"`
	SeriesName         string `json:"seriesName,omitempty"`
	EventNumber        *int   `json:"eventNumber,omitempty"`
	DayNumber          *int   `json:"dayNumber,omitempty"`
	FlightLetter       string `json:"flightLetter,omitempty"`
	FinalDay           bool   `json:"finalDay"`

	// UniquePlayersHint carries the parser's cross-flight dedup count when
	// the page exposes one; consolidation prefers it over summing siblings.
	UniquePlayersHint *int `json:"uniquePlayersHint,omitempty"`
}

// GameCost holds the cost components for one game. TotalDealerCost is
// recomputed on every pass; the manually entered components survive
// recomputes untouched.
type GameCost struct {
	GameID                       string    `db:"game_id" json:"gameId"`
	TotalDealerCost              float64   `db:"total_dealer_cost" json:"totalDealerCost"`
	TotalTournamentDirectorCost  float64   `db:"total_tournament_director_cost" json:"totalTournamentDirectorCost"`
	TotalFloorStaffCost          float64   `db:"total_floor_staff_cost" json:"totalFloorStaffCost"`
	TotalSecurityCost            float64   `db:"total_security_cost" json:"totalSecurityCost"`
	TotalPrizeContribution       float64   `db:"total_prize_contribution" json:"totalPrizeContribution"`
	TotalJackpotContribution     float64   `db:"total_jackpot_contribution" json:"totalJackpotContribution"`
	TotalPromotionCost           float64   `db:"total_promotion_cost" json:"totalPromotionCost"`
	TotalOtherCost               float64   `db:"total_other_cost" json:"totalOtherCost"`
	TotalCost                    float64   `db:"total_cost" json:"totalCost"`
	UpdatedAt                    time.Time `db:"updated_at" json:"updatedAt"`
	Version                      int       `db:"version" json:"version"`
}

// FinancialSnapshot holds the derived financial metrics for one game.
// Pointer fields are null when their denominator is zero.
type FinancialSnapshot struct {
	GameID                       string     `db:"game_id" json:"gameId"`
	EntriesForRake               int        `db:"entries_for_rake" json:"entriesForRake"`
	RakeRevenue                  float64    `db:"rake_revenue" json:"rakeRevenue"`
	TotalBuyInsCollected         float64    `db:"total_buy_ins_collected" json:"totalBuyInsCollected"`
	PrizepoolPlayerContributions float64    `db:"prizepool_player_contributions" json:"prizepoolPlayerContributions"`
	GuaranteeOverlayCost         float64    `db:"guarantee_overlay_cost" json:"guaranteeOverlayCost"`
	PrizepoolAddedValue          float64    `db:"prizepool_added_value" json:"prizepoolAddedValue"`
	PrizepoolSurplus             *float64   `db:"prizepool_surplus" json:"prizepoolSurplus,omitempty"`
	GameProfit                   float64    `db:"game_profit" json:"gameProfit"`
	NetProfit                    float64    `db:"net_profit" json:"netProfit"`
	VenueFee                     float64    `db:"venue_fee" json:"venueFee"`
	GuaranteeMet                 bool       `db:"guarantee_met" json:"guaranteeMet"`
	GuaranteeCoverageRate        *float64   `db:"guarantee_coverage_rate" json:"guaranteeCoverageRate,omitempty"`
	RevenuePerPlayer             *float64   `db:"revenue_per_player" json:"revenuePerPlayer,omitempty"`
	RakePerEntry                 *float64   `db:"rake_per_entry" json:"rakePerEntry,omitempty"`
	BuyInsPerPlayer              *float64   `db:"buy_ins_per_player" json:"buyInsPerPlayer,omitempty"`
	GameDurationMinutes          *int       `db:"game_duration_minutes" json:"gameDurationMinutes,omitempty"`
	DealerCostPerHour            *float64   `db:"dealer_cost_per_hour" json:"dealerCostPerHour,omitempty"`
	IsSeries                     bool       `db:"is_series" json:"isSeries"`
	IsSeriesParent               bool       `db:"is_series_parent" json:"isSeriesParent"`
	ParentGameID                 *string    `db:"parent_game_id" json:"parentGameId,omitempty"`
	EntitySeriesKey              string     `db:"entity_series_key" json:"entitySeriesKey"`
	VenueSeriesKey               string     `db:"venue_series_key" json:"venueSeriesKey"`
	UpdatedAt                    time.Time  `db:"updated_at" json:"updatedAt"`
	Version                      int        `db:"version" json:"version"`
}

// Entity is a tenant: one scraped site with its venues and asset bucket.
type Entity struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	URLBase   string    `db:"url_base" json:"urlBase"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Venue is a physical venue owned by an entity. Aliases is a
// comma-separated list of alternate names used for social venue hints.
type Venue struct {
	ID        string    `db:"id" json:"id"`
	EntityID  string    `db:"entity_id" json:"entityId"`
	Name      string    `db:"name" json:"name"`
	Aliases   string    `db:"aliases" json:"aliases,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// URLFor reconstructs the source page URL for a tournament id.
func (e *Entity) URLFor(tournamentID int) string {
	return e.URLBase + strconv.Itoa(tournamentID)
}
