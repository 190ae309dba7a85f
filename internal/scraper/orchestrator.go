package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/consolidation"
	"github.com/hoganho/kingsroom-sub012/internal/events"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/parser"
	"github.com/hoganho/kingsroom-sub012/internal/skipcache"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// StatusCache is the skip-cache surface the walk consults before fetching.
type StatusCache interface {
	GetStatus(ctx context.Context, tournamentID int) (skipcache.Entry, error)
	Stats() skipcache.Stats
}

// PageParser turns one URL into a parse result.
type PageParser interface {
	Parse(ctx context.Context, entityID string, tournamentID int, url string) parser.Result
}

// Consolidator commits successful candidates.
type Consolidator interface {
	Commit(ctx context.Context, d *game.GameData) (*consolidation.CommitResult, error)
}

// StateStore persists the run lock, walk counters, and job records.
type StateStore interface {
	GetState(ctx context.Context, entityID string) (*store.AutoScraperState, error)
	TryAcquireRun(ctx context.Context, entityID string) error
	ReleaseRun(ctx context.Context, entityID string) error
	SaveProgress(ctx context.Context, st *store.AutoScraperState) error
	CreateJob(ctx context.Context, entityID string) (*store.ScraperJob, error)
	SaveJob(ctx context.Context, job *store.ScraperJob) error
}

// URLStore records per-URL outcomes.
type URLStore interface {
	RecordOutcome(ctx context.Context, entityID string, tournamentID int, url string, status game.ScrapeStatus, gameStatus string) error
	LinkGame(ctx context.Context, url, gameID, blobKey string) error
}

// GameLookup answers where the store's id range ends.
type GameLookup interface {
	HighestTournamentID(ctx context.Context, entityID string) (int, error)
}

// EventSink receives one per-URL event.
type EventSink interface {
	Publish(ev events.Event) bool
	CloseJob(jobID string)
}

// Options bound one run.
type Options struct {
	MaxConsecutiveBlanks int
	MaxNewGames          int
	InterURLDelay        time.Duration
	JobBudget            time.Duration
}

// Orchestrator runs range walks for one entity.
type Orchestrator struct {
	entity  *game.Entity
	cache   StatusCache
	parser  PageParser
	engine  Consolidator
	states  StateStore
	urls    URLStore
	games   GameLookup
	events  EventSink
	log     *logrus.Logger
	opts    Options

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewOrchestrator(entity *game.Entity, cache StatusCache, pp PageParser, engine Consolidator,
	states StateStore, urls URLStore, games GameLookup, sink EventSink,
	log *logrus.Logger, opts Options) *Orchestrator {
	if opts.MaxConsecutiveBlanks <= 0 {
		opts.MaxConsecutiveBlanks = 2
	}
	if opts.MaxNewGames <= 0 {
		opts.MaxNewGames = 50
	}
	return &Orchestrator{
		entity: entity,
		cache:  cache,
		parser: pp,
		engine: engine,
		states: states,
		urls:   urls,
		games:  games,
		events: sink,
		log:    log,
		opts:   opts,
		sleep:  time.Sleep,
	}
}

// RunResult is the accounting returned to the caller.
type RunResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message,omitempty"`
	JobID           string          `json:"jobId,omitempty"`
	NewGamesScraped int             `json:"newGamesScraped"`
	GamesUpdated    int             `json:"gamesUpdated"`
	GamesSkipped    int             `json:"gamesSkipped"`
	Errors          int             `json:"errors"`
	Blanks          int             `json:"blanks"`
	CacheStats      skipcache.Stats `json:"cacheStats"`
}

// Run executes one walk. Refusals (disabled, already running) come back as
// an unsuccessful result, not an error.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	state, err := o.states.GetState(ctx, o.entity.ID)
	if err != nil {
		return nil, err
	}
	if !state.Enabled {
		return &RunResult{Success: false, Message: "scraper is disabled"}, nil
	}

	if err := o.states.TryAcquireRun(ctx, o.entity.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyRunning) {
			return &RunResult{Success: false, Message: "already running"}, nil
		}
		return nil, err
	}
	defer func() {
		if err := o.states.ReleaseRun(context.Background(), o.entity.ID); err != nil {
			o.log.WithError(err).Error("releasing run lock")
		}
	}()

	job, err := o.states.CreateJob(ctx, o.entity.ID)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	job.Status = store.JobRunning
	job.StartTime = &started
	if err := o.states.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	defer o.events.CloseJob(job.ID)

	runErr := o.walk(ctx, state, job)

	ended := time.Now()
	job.EndTime = &ended
	job.DurationSeconds = ended.Sub(started).Seconds()
	switch {
	case runErr != nil:
		job.Status = store.JobFailed
		msg := runErr.Error()
		job.ErrorMessage = &msg
	case job.Status != store.JobCancelled:
		job.Status = store.JobCompleted
	}
	if err := o.states.SaveJob(context.Background(), job); err != nil {
		o.log.WithError(err).Error("saving job accounting")
	}
	if runErr != nil {
		return nil, runErr
	}

	return &RunResult{
		Success:         true,
		JobID:           job.ID,
		NewGamesScraped: job.NewGamesScraped,
		GamesUpdated:    job.GamesUpdated,
		GamesSkipped:    job.GamesSkipped,
		Errors:          job.Errors,
		Blanks:          job.Blanks,
		CacheStats:      o.cache.Stats(),
	}, nil
}

// walk is the per-URL loop. It mutates state and job in place; the caller
// finalizes the job record.
func (o *Orchestrator) walk(ctx context.Context, state *store.AutoScraperState, job *store.ScraperJob) error {
	highest, err := o.games.HighestTournamentID(ctx, o.entity.ID)
	if err != nil {
		return fmt.Errorf("finding highest tournament id: %w", err)
	}
	id := state.LastScannedID
	if highest > id {
		id = highest
	}
	id++

	deadline := time.Time{}
	if o.opts.JobBudget > 0 {
		deadline = time.Now().Add(o.opts.JobBudget)
	}

	for ; ; id++ {
		if ctx.Err() != nil {
			job.Status = store.JobCancelled
			return nil
		}
		// An operator STOP clears the run flag out from under us.
		cur, err := o.states.GetState(ctx, o.entity.ID)
		if err != nil {
			return err
		}
		if !cur.IsRunning {
			job.Status = store.JobCancelled
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			o.log.WithField("jobId", job.ID).Info("job budget exhausted, completing")
			return nil
		}

		if err := o.processURL(ctx, state, job, id); err != nil {
			return err
		}

		state.LastScannedID = id
		state.TotalScraped++
		if err := o.states.SaveProgress(ctx, state); err != nil {
			return err
		}

		if state.ConsecutiveBlankCount >= o.opts.MaxConsecutiveBlanks {
			o.log.WithFields(logrus.Fields{
				"jobId":  job.ID,
				"blanks": state.ConsecutiveBlankCount,
			}).Info("blank run reached threshold, stopping walk")
			return nil
		}
		if job.NewGamesScraped >= o.opts.MaxNewGames {
			o.log.WithField("jobId", job.ID).Info("new-game cap reached, stopping walk")
			return nil
		}

		if o.opts.InterURLDelay > 0 {
			o.sleep(o.opts.InterURLDelay)
		}
	}
}

// processURL runs the per-URL pipeline and publishes exactly one event.
func (o *Orchestrator) processURL(ctx context.Context, state *store.AutoScraperState, job *store.ScraperJob, id int) error {
	url := o.entity.URLFor(id)
	job.TotalURLsProcessed++

	entry, err := o.cache.GetStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("skip-cache lookup for %d: %w", id, err)
	}
	if entry.Skippable() {
		job.GamesSkipped++
		o.events.Publish(events.Event{
			JobID:        job.ID,
			TournamentID: id,
			Action:       events.ActionSkipped,
			DataSource:   events.SourceNone,
			Message:      fmt.Sprintf("cached status %s", cachedStatus(entry)),
		})
		return nil
	}

	res := o.parser.Parse(ctx, o.entity.ID, id, url)

	switch {
	case res.Status == game.ScrapeSuccess:
		return o.handleSuccess(ctx, state, job, id, url, res)

	case res.Status.Retryable():
		job.Errors++
		state.TotalErrors++
		// Transient failures must not end the walk early.
		state.ConsecutiveBlankCount = 0
		if err := o.urls.RecordOutcome(ctx, o.entity.ID, id, url, res.Status, ""); err != nil {
			return err
		}
		o.events.Publish(events.Event{
			JobID:        job.ID,
			TournamentID: id,
			Action:       events.ActionError,
			DataSource:   events.DataSource(res.DataSource()),
			ErrorMessage: res.ErrorMessage,
		})
		return nil

	case res.Status.Empty():
		if res.Status == game.ScrapeBlank {
			state.ConsecutiveBlankCount++
			job.Blanks++
		}
		if err := o.urls.RecordOutcome(ctx, o.entity.ID, id, url, res.Status, string(emptyGameStatus(res.Status))); err != nil {
			return err
		}
		o.events.Publish(events.Event{
			JobID:        job.ID,
			TournamentID: id,
			Action:       emptyAction(res.Status),
			DataSource:   events.DataSource(res.DataSource()),
			BlobKey:      blobKey(res),
			Message:      fmt.Sprintf("page %s", res.Status),
		})
		return nil

	default:
		// AUTH_ERROR and any status outside the known sets are per-URL
		// failures, never walk-fatal. Unlike transient errors they leave
		// the blank counter alone: an auth wall at one id is no evidence
		// about the surrounding blank run.
		job.Errors++
		state.TotalErrors++
		o.log.WithFields(logrus.Fields{
			"jobId":        job.ID,
			"tournamentId": id,
			"status":       res.Status,
		}).Warn("parse failed, continuing walk")
		if err := o.urls.RecordOutcome(ctx, o.entity.ID, id, url, res.Status, ""); err != nil {
			return err
		}
		o.events.Publish(events.Event{
			JobID:        job.ID,
			TournamentID: id,
			Action:       events.ActionError,
			DataSource:   events.DataSource(res.DataSource()),
			ErrorMessage: res.ErrorMessage,
		})
		return nil
	}
}

func (o *Orchestrator) handleSuccess(ctx context.Context, state *store.AutoScraperState, job *store.ScraperJob, id int, url string, res parser.Result) error {
	state.ConsecutiveBlankCount = 0

	commit, err := o.engine.Commit(ctx, res.Data)
	if err != nil {
		// Validation failures are per-URL errors, never walk-fatal.
		o.log.WithError(err).WithField("tournamentId", id).Warn("consolidation rejected candidate")
		job.Errors++
		state.TotalErrors++
		o.events.Publish(events.Event{
			JobID:        job.ID,
			TournamentID: id,
			Action:       events.ActionError,
			DataSource:   events.DataSource(res.DataSource()),
			ErrorMessage: err.Error(),
		})
		return nil
	}

	var action events.Action
	var saveResult store.SaveResult
	switch commit.Action {
	case consolidation.CommitCreated:
		job.NewGamesScraped++
		action = events.ActionCreated
		saveResult = store.SaveCreated
	case consolidation.CommitUpdated:
		job.GamesUpdated++
		action = events.ActionUpdated
		saveResult = store.SaveUpdated
	default:
		job.GamesSkipped++
		action = events.ActionSkipped
	}

	if err := o.urls.RecordOutcome(ctx, o.entity.ID, id, url, game.ScrapeSuccess, string(res.Data.GameStatus)); err != nil {
		return err
	}
	if err := o.urls.LinkGame(ctx, url, commit.GameID, blobKey(res)); err != nil {
		return err
	}

	o.events.Publish(events.Event{
		JobID:        job.ID,
		TournamentID: id,
		Action:       action,
		DataSource:   events.DataSource(res.DataSource()),
		BlobKey:      blobKey(res),
		GameData:     res.Data,
		SaveResult:   saveResult,
	})
	return nil
}

func blobKey(res parser.Result) string {
	if res.Blob == nil {
		return ""
	}
	return res.Blob.Key
}

func cachedStatus(e skipcache.Entry) string {
	if e.DoNotScrape {
		return "DO_NOT_SCRAPE"
	}
	if e.LastScrapeStatus != "" {
		return string(e.LastScrapeStatus)
	}
	return e.GameStatus
}

func emptyAction(s game.ScrapeStatus) events.Action {
	switch s {
	case game.ScrapeNotFound:
		return events.ActionNotFound
	case game.ScrapeNotPublished:
		return events.ActionNotPublished
	}
	return events.ActionSkipped
}

func emptyGameStatus(s game.ScrapeStatus) game.Status {
	switch s {
	case game.ScrapeNotFound:
		return game.StatusNotFound
	case game.ScrapeNotPublished:
		return game.StatusNotPublished
	}
	return ""
}
