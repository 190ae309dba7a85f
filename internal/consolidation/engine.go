package consolidation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// ErrInvalidCandidate is returned when a candidate lacks the fields no
// grouping can work without.
var ErrInvalidCandidate = errors.New("invalid candidate: name and start time are required")

// CommitAction says what a commit did with the candidate.
type CommitAction string

const (
	CommitCreated CommitAction = "CREATED"
	CommitUpdated CommitAction = "UPDATED"
	CommitSkipped CommitAction = "SKIPPED"
)

// GameStore is the slice of the game store the engine needs.
type GameStore interface {
	Create(ctx context.Context, g *game.Game) error
	Update(ctx context.Context, g *game.Game) error
	Get(ctx context.Context, id string) (*game.Game, error)
	GetByTournamentID(ctx context.Context, entityID string, tournamentID int) (*game.Game, error)
	FindParents(ctx context.Context, key string) ([]game.Game, error)
	FindSiblings(ctx context.Context, key string) ([]game.Game, error)
}

// Engine consolidates candidates into the game store.
type Engine struct {
	games GameStore
	log   *logrus.Logger
	loc   *time.Location
}

// New creates an engine deriving date partitions in loc.
func New(games GameStore, log *logrus.Logger, loc *time.Location) *Engine {
	return &Engine{games: games, log: log, loc: loc}
}

// PreviewResult is the pure consolidation analysis for a candidate.
type PreviewResult struct {
	WillConsolidate bool        `json:"willConsolidate"`
	Reason          string      `json:"reason"`
	Warnings        []string    `json:"warnings,omitempty"`
	DetectedPattern Detection   `json:"detectedPattern"`
	Key             *Key        `json:"consolidationKey,omitempty"`
	ParentExists    bool        `json:"parentExists"`
	SiblingCount    int         `json:"siblingCount"`
	Projected       *Projection `json:"projected,omitempty"`
	Siblings        []game.Game `json:"siblings,omitempty"`
}

// CommitResult reports a committed candidate.
type CommitResult struct {
	Action   CommitAction `json:"action"`
	GameID   string       `json:"gameId"`
	ParentID string       `json:"parentId,omitempty"`
	Key      *Key         `json:"consolidationKey,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

func validate(d *game.GameData) error {
	if d.Name == "" || d.GameStartDateTime == nil {
		return ErrInvalidCandidate
	}
	return nil
}

// Preview runs detection, keying, and projection without writing.
// includeSiblings controls whether the sibling rows ride along in the
// result.
func (e *Engine) Preview(ctx context.Context, d *game.GameData, includeSiblings bool) (*PreviewResult, error) {
	if err := validate(d); err != nil {
		return nil, err
	}

	det := Detect(d)
	key := BuildKey(d, e.loc)

	res := &PreviewResult{DetectedPattern: det, Key: key}
	if key == nil {
		res.Reason = "no consolidation key could be formed; candidate is standalone"
		return res, nil
	}
	res.Warnings = key.Warnings

	parents, err := e.games.FindParents(ctx, key.Key)
	if err != nil {
		return nil, fmt.Errorf("locating parent: %w", err)
	}
	res.ParentExists = len(parents) > 0

	siblings, err := e.games.FindSiblings(ctx, key.Key)
	if err != nil {
		return nil, fmt.Errorf("locating siblings: %w", err)
	}
	siblings = excludeTournament(siblings, d.EntityID, d.TournamentID)
	res.SiblingCount = len(siblings)
	if includeSiblings {
		res.Siblings = siblings
	}

	proj := Project(d, siblings)
	res.Projected = &proj
	res.WillConsolidate = true
	if res.ParentExists {
		res.Reason = fmt.Sprintf("will join existing parent under key %s", key.Key)
	} else {
		res.Reason = fmt.Sprintf("will create parent under key %s", key.Key)
	}

	return res, nil
}

// Commit writes the candidate into the store, consolidating when a key can
// be formed. Reprocessing the same tournament id updates the existing row
// and re-projects the parent, so commits are idempotent.
func (e *Engine) Commit(ctx context.Context, d *game.GameData) (*CommitResult, error) {
	if err := validate(d); err != nil {
		return nil, err
	}

	det := Detect(d)
	key := BuildKey(d, e.loc)

	existing, err := e.games.GetByTournamentID(ctx, d.EntityID, d.TournamentID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("checking existing game: %w", err)
	}

	if existing != nil {
		return e.updateExisting(ctx, existing, d, det, key)
	}

	if key == nil {
		g := gameFromCandidate(d, det)
		if err := e.games.Create(ctx, g); err != nil {
			return nil, err
		}
		return &CommitResult{Action: CommitCreated, GameID: g.ID}, nil
	}

	parent, warnings, err := e.locateOrCreateParent(ctx, d, det, key)
	if err != nil {
		return nil, err
	}

	child := gameFromCandidate(d, det)
	child.ConsolidationKey = key.Key
	child.IsSeries = true
	child.IsSeriesParent = false
	child.ParentGameID = &parent.ID
	if err := e.games.Create(ctx, child); err != nil {
		return nil, err
	}

	if err := e.reprojectParent(ctx, parent, d, key); err != nil {
		return nil, err
	}

	return &CommitResult{
		Action:   CommitCreated,
		GameID:   child.ID,
		ParentID: parent.ID,
		Key:      key,
		Warnings: warnings,
	}, nil
}

// updateExisting refreshes a previously committed row with newer scrape
// data. A byte-equal candidate is skipped without a write.
func (e *Engine) updateExisting(ctx context.Context, existing *game.Game, d *game.GameData, det Detection, key *Key) (*CommitResult, error) {
	if !applyCandidate(existing, d) {
		return &CommitResult{Action: CommitSkipped, GameID: existing.ID, Key: key}, nil
	}

	if err := e.updateWithRetry(ctx, existing); err != nil {
		return nil, err
	}

	res := &CommitResult{Action: CommitUpdated, GameID: existing.ID, Key: key}
	// Grouping is decided at first commit: a row stored standalone keeps
	// its standalone identity even when a later scrape yields a key.
	if existing.ParentGameID != nil && key != nil {
		parents, err := e.games.FindParents(ctx, key.Key)
		if err != nil {
			return nil, fmt.Errorf("locating parent for reprojection: %w", err)
		}
		if len(parents) > 0 {
			parent := &parents[0]
			if err := e.reprojectParent(ctx, parent, d, key); err != nil {
				return nil, err
			}
			res.ParentID = parent.ID
		}
	}
	return res, nil
}

// locateOrCreateParent finds the key's parent, resolving duplicates by
// preferring the oldest, or creates one from the candidate with day and
// flight fields stripped.
func (e *Engine) locateOrCreateParent(ctx context.Context, d *game.GameData, det Detection, key *Key) (*game.Game, []string, error) {
	warnings := append([]string(nil), key.Warnings...)

	parents, err := e.games.FindParents(ctx, key.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("locating parent: %w", err)
	}
	if len(parents) > 1 {
		// Two parents under one key should never happen; keep the oldest
		// and flag the rest.
		e.log.WithFields(logrus.Fields{
			"key":     key.Key,
			"parents": len(parents),
		}).Warn("ambiguous consolidation key; preferring oldest parent")
		warnings = append(warnings, "ambiguous key: multiple parents found, oldest preferred")
	}
	if len(parents) > 0 {
		return &parents[0], warnings, nil
	}

	parent := gameFromCandidate(d, det)
	parent.Name = det.DerivedParentName
	parent.ConsolidationKey = key.Key
	parent.IsSeries = true
	parent.IsSeriesParent = true
	parent.ParentGameID = nil
	parent.DayNumber = nil
	parent.FlightLetter = ""
	parent.FinalDay = false
	// The parent is a synthetic record, not a scraped page.
	parent.TournamentID = 0
	if err := e.games.Create(ctx, parent); err != nil {
		return nil, nil, err
	}
	return parent, warnings, nil
}

// reprojectParent recomputes the parent's aggregates from the current
// sibling set.
func (e *Engine) reprojectParent(ctx context.Context, parent *game.Game, d *game.GameData, key *Key) error {
	siblings, err := e.games.FindSiblings(ctx, key.Key)
	if err != nil {
		return fmt.Errorf("listing siblings: %w", err)
	}
	// The candidate's own row is already among the siblings after commit;
	// projecting from the stored rows alone keeps the math single-sourced.
	proj := projectFromRows(siblings, d.UniquePlayersHint)

	parent.TotalUniquePlayers = proj.TotalUniquePlayers
	parent.TotalInitialEntries = proj.TotalInitialEntries
	parent.TotalRebuys = proj.TotalRebuys
	parent.TotalAddons = proj.TotalAddons
	parent.TotalEntries = proj.TotalEntries
	parent.PrizepoolPaid = proj.PrizepoolPaid
	parent.GameStatus = proj.ProjectedStatus
	if proj.EarliestStart != nil {
		parent.GameStartDateTime = proj.EarliestStart
	}
	if proj.LatestEnd != nil {
		parent.GameEndDateTime = proj.LatestEnd
	}

	return e.updateWithRetry(ctx, parent)
}

// updateWithRetry applies the integrity policy for version conflicts:
// re-read once, reapply, escalate on the second failure.
func (e *Engine) updateWithRetry(ctx context.Context, g *game.Game) error {
	err := e.games.Update(ctx, g)
	if err != store.ErrVersionConflict {
		return err
	}

	// Re-read by primary key: synthetic parents all share tournament id 0,
	// so a tournament-id lookup could land on a different row.
	fresh, err := e.games.Get(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("re-reading after version conflict: %w", err)
	}
	g.Version = fresh.Version
	return e.games.Update(ctx, g)
}

// gameFromCandidate builds a storable game from a candidate.
func gameFromCandidate(d *game.GameData, det Detection) *game.Game {
	g := &game.Game{
		TournamentID:        d.TournamentID,
		EntityID:            d.EntityID,
		VenueID:             d.VenueID,
		Name:                d.Name,
		GameStartDateTime:   d.GameStartDateTime,
		GameEndDateTime:     d.GameEndDateTime,
		GameStatus:          d.GameStatus,
		RegistrationStatus:  d.RegistrationStatus,
		GameType:            d.GameType,
		TournamentType:      d.TournamentType,
		BuyIn:               d.BuyIn,
		Rake:                d.Rake,
		TotalUniquePlayers:  d.TotalUniquePlayers,
		TotalEntries:        d.TotalEntries,
		TotalInitialEntries: d.TotalInitialEntries,
		TotalRebuys:         d.TotalRebuys,
		TotalAddons:         d.TotalAddons,
		PrizepoolPaid:       d.PrizepoolPaid,
		HasGuarantee:        d.GuaranteeAmount > 0,
		GuaranteeAmount:     d.GuaranteeAmount,
		TournamentSeriesID:  d.TournamentSeriesID,
		SeriesName:          d.SeriesName,
		EventNumber:         d.EventNumber,
		FinalDay:            det.IsFinalDay,
		FlightLetter:        det.ParsedFlightLetter,
		DayNumber:           det.ParsedDayNumber,
	}
	if d.VenueID == "" {
		g.RequiresVenueAssignment = true
		g.VenueAssignmentStatus = "PENDING"
	}
	return g
}

// applyCandidate copies scraped fields onto an existing row, reporting
// whether anything changed. Identity, linkage, and operator-owned flags
// are left alone.
func applyCandidate(g *game.Game, d *game.GameData) bool {
	changed := false

	setStr := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	setInt := func(dst *int, v int) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	setFloat := func(dst *float64, v float64) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}

	setStr(&g.Name, d.Name)
	setStr(&g.RegistrationStatus, d.RegistrationStatus)
	setStr(&g.GameType, d.GameType)
	setStr(&g.TournamentType, d.TournamentType)
	setFloat(&g.BuyIn, d.BuyIn)
	setFloat(&g.Rake, d.Rake)
	setInt(&g.TotalUniquePlayers, d.TotalUniquePlayers)
	setInt(&g.TotalEntries, d.TotalEntries)
	setInt(&g.TotalInitialEntries, d.TotalInitialEntries)
	setInt(&g.TotalRebuys, d.TotalRebuys)
	setInt(&g.TotalAddons, d.TotalAddons)
	setFloat(&g.PrizepoolPaid, d.PrizepoolPaid)
	setFloat(&g.GuaranteeAmount, d.GuaranteeAmount)

	if hasG := d.GuaranteeAmount > 0; g.HasGuarantee != hasG {
		g.HasGuarantee = hasG
		changed = true
	}
	if d.GameStatus != game.StatusUnknown && g.GameStatus != d.GameStatus {
		g.GameStatus = d.GameStatus
		changed = true
	}
	if d.GameStartDateTime != nil && !equalTime(g.GameStartDateTime, d.GameStartDateTime) {
		g.GameStartDateTime = d.GameStartDateTime
		changed = true
	}
	if d.GameEndDateTime != nil && !equalTime(g.GameEndDateTime, d.GameEndDateTime) {
		g.GameEndDateTime = d.GameEndDateTime
		changed = true
	}

	return changed
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// excludeTournament drops the candidate's own stored row from a sibling
// list so reprocessing does not double-count it.
func excludeTournament(siblings []game.Game, entityID string, tournamentID int) []game.Game {
	out := siblings[:0]
	for _, s := range siblings {
		if s.EntityID == entityID && s.TournamentID == tournamentID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// projectFromRows projects aggregates from stored rows only, used after
// the candidate's row has been committed.
func projectFromRows(rows []game.Game, playersHint *int) Projection {
	if len(rows) == 0 {
		return Projection{ProjectedStatus: game.StatusScheduled}
	}

	first := rows[0]
	d := &game.GameData{
		TournamentID:        first.TournamentID,
		EntityID:            first.EntityID,
		Name:                first.Name,
		GameStartDateTime:   first.GameStartDateTime,
		GameEndDateTime:     first.GameEndDateTime,
		GameStatus:          first.GameStatus,
		TotalUniquePlayers:  first.TotalUniquePlayers,
		TotalEntries:        first.TotalEntries,
		TotalInitialEntries: first.TotalInitialEntries,
		TotalRebuys:         first.TotalRebuys,
		TotalAddons:         first.TotalAddons,
		PrizepoolPaid:       first.PrizepoolPaid,
		FinalDay:            first.FinalDay,
		FlightLetter:        first.FlightLetter,
		UniquePlayersHint:   playersHint,
	}
	return Project(d, rows[1:])
}
