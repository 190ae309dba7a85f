package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/api"
	"github.com/hoganho/kingsroom-sub012/internal/blob"
	"github.com/hoganho/kingsroom-sub012/internal/changefeed"
	"github.com/hoganho/kingsroom-sub012/internal/config"
	"github.com/hoganho/kingsroom-sub012/internal/consolidation"
	"github.com/hoganho/kingsroom-sub012/internal/events"
	"github.com/hoganho/kingsroom-sub012/internal/financial"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/logging"
	"github.com/hoganho/kingsroom-sub012/internal/parser"
	"github.com/hoganho/kingsroom-sub012/internal/scraper"
	"github.com/hoganho/kingsroom-sub012/internal/skipcache"
	"github.com/hoganho/kingsroom-sub012/internal/social"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

const migrationsURL = "file://migrations"

// App holds the wired service graph. Every command builds one and tears
// it down when done.
type App struct {
	Cfg *config.Config
	Log *logrus.Logger
	DB  *sqlx.DB

	Entity *game.Entity

	Entities   *store.EntityStore
	Games      *store.GameStore
	Financials *store.FinancialStore
	ScrapeURLs *store.ScrapeURLStore
	Scrapers   *store.ScraperStore
	Socials    *store.SocialStore

	Publisher    *events.Publisher
	Cache        *skipcache.Cache
	Engine       *consolidation.Engine
	Calculator   *financial.Calculator
	Orchestrator *scraper.Orchestrator
	Controller   *scraper.Controller
	Matcher      *social.Matcher
	Server       *api.Server
}

// NewApp loads configuration, opens and migrates the database, and wires
// the full graph: parser over the blob store, skip-cache over scrape URLs,
// consolidation engine over the game store, the financial calculator hooked
// to the game change feed, and the social matcher. The configured entity
// row is created on first run.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db, migrationsURL); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Cfg:        cfg,
		Log:        log,
		DB:         db,
		Entities:   store.NewEntityStore(db),
		Games:      store.NewGameStore(db),
		Financials: store.NewFinancialStore(db),
		ScrapeURLs: store.NewScrapeURLStore(db),
		Scrapers:   store.NewScraperStore(db),
		Socials:    store.NewSocialStore(db),
	}

	a.Entity, err = a.Entities.Get(ctx, cfg.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		a.Entity = &game.Entity{ID: cfg.EntityID, Name: cfg.EntityID, URLBase: cfg.URLBase}
		err = a.Entities.Upsert(ctx, a.Entity)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("resolving entity %s: %w", cfg.EntityID, err)
	}

	writer, err := blob.NewWriter(cfg.DataDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	blobs := store.NewBlobStore(db)
	psr := parser.New(parser.NewFetcher(cfg.Scraper.ParserTimeout), blobs, writer,
		parser.NewExtractor(loc), log, cfg.Scraper.ParserTimeout)

	a.Engine = consolidation.New(a.Games, log, loc)
	a.Calculator = financial.NewCalculator(a.Financials, a.Games, log)

	// Financials recompute on every committed game write.
	feed := changefeed.NewConsumer(a.Calculator, log)
	a.Games.OnChange = feed.Handle

	a.Publisher = events.NewPublisher(log)
	a.Cache = skipcache.New(a.ScrapeURLs, cfg.EntityID)
	a.Orchestrator = scraper.NewOrchestrator(a.Entity, a.Cache, psr, a.Engine,
		a.Scrapers, a.ScrapeURLs, a.Games, a.Publisher, log, scraper.Options{
			MaxConsecutiveBlanks: cfg.Scraper.MaxConsecutiveBlanks,
			MaxNewGames:          cfg.Scraper.MaxNewGames,
			InterURLDelay:        cfg.Scraper.InterURLDelay,
			JobBudget:            cfg.Scraper.JobBudget,
		})
	a.Controller = scraper.NewController(cfg.EntityID, a.Scrapers, a.Orchestrator, log)

	ranker := social.NewRanker(a.Games, cfg.Social.WindowDays, cfg.Social.AutoLinkThreshold)
	a.Matcher = social.NewMatcher(a.Socials, a.Games, a.Entities,
		social.NewExtractor(loc), ranker, log)

	a.Server = api.NewServer(cfg.EntityID, a.Orchestrator, a.Controller,
		a.Calculator, a.Engine, a.Matcher, a.Scrapers, a.ScrapeURLs, a.Cache, log)

	return a, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.DB.Close()
}
