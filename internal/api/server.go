// Package api exposes the control surface over HTTP. Every operation
// returns a structured JSON result; refusals (disabled, already running,
// record not found) come back as success=false with a message and a 200,
// while unexpected failures surface as {"error": ...} with a 5xx.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/consolidation"
	"github.com/hoganho/kingsroom-sub012/internal/financial"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/scraper"
	"github.com/hoganho/kingsroom-sub012/internal/skipcache"
	"github.com/hoganho/kingsroom-sub012/internal/social"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// ScrapeControls executes control-plane operations against the scraper.
type ScrapeControls interface {
	Execute(ctx context.Context, op scraper.Op) (*scraper.ControlResult, error)
}

// FinancialService projects and optionally persists game financials.
type FinancialService interface {
	CalculateByID(ctx context.Context, gameID string, opts financial.Options) (*financial.Result, error)
	Calculate(ctx context.Context, g *game.Game, opts financial.Options) (*financial.Result, error)
}

// ConsolidationService answers what a candidate would consolidate into.
type ConsolidationService interface {
	Preview(ctx context.Context, d *game.GameData, includeSiblings bool) (*consolidation.PreviewResult, error)
}

// SocialService processes posts and manages post-game links.
type SocialService interface {
	Process(ctx context.Context, postID string) (*social.ProcessResult, error)
	ProcessBatch(ctx context.Context, postIDs []string, limit int) (*social.BatchResult, error)
	LinkManually(ctx context.Context, postID, gameID string) (*social.ProcessResult, error)
	Unlink(ctx context.Context, postID, gameID string) (*social.ProcessResult, error)
	Verify(ctx context.Context, postID, gameID string) (*social.ProcessResult, error)
	Reject(ctx context.Context, postID, gameID, reason string) (*social.ProcessResult, error)
}

// StatusSource feeds the status report.
type StatusSource interface {
	GetState(ctx context.Context, entityID string) (*store.AutoScraperState, error)
}

// GapSource reports missing tournament-id ranges.
type GapSource interface {
	Gaps(ctx context.Context, entityID string) ([]store.Gap, error)
}

// CacheStatSource reports skip-cache counters. Optional.
type CacheStatSource interface {
	Stats() skipcache.Stats
}

// Server wires the control surface handlers.
type Server struct {
	entityID       string
	runner         scraper.Runner
	controls       ScrapeControls
	financials     FinancialService
	consolidations ConsolidationService
	social         SocialService
	states         StatusSource
	urls           GapSource
	cache          CacheStatSource
	log            *logrus.Logger
}

// NewServer builds a Server for one entity. cache may be nil.
func NewServer(entityID string, runner scraper.Runner, controls ScrapeControls,
	financials FinancialService, consolidations ConsolidationService, soc SocialService,
	states StatusSource, urls GapSource, cache CacheStatSource, log *logrus.Logger) *Server {
	return &Server{
		entityID:       entityID,
		runner:         runner,
		controls:       controls,
		financials:     financials,
		consolidations: consolidations,
		social:         soc,
		states:         states,
		urls:           urls,
		cache:          cache,
		log:            log,
	}
}

// Router builds the control surface routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	r.Get("/status", s.handleStatus)

	r.Route("/scraper", func(r chi.Router) {
		r.Post("/run", s.handleScrapeRun)
		r.Post("/control", s.handleScrapeControl)
		r.Get("/state", s.handleScrapeState)
	})

	r.Post("/financials/calculate", s.handleFinancials)
	r.Post("/consolidation/preview", s.handleConsolidationPreview)

	r.Route("/social/posts", func(r chi.Router) {
		r.Post("/process-batch", s.handleSocialBatch)
		r.Post("/{postID}/process", s.handleSocialProcess)
		r.Route("/{postID}/links/{gameID}", func(r chi.Router) {
			r.Post("/", s.handleSocialLink)
			r.Delete("/", s.handleSocialUnlink)
			r.Post("/verify", s.handleSocialVerify)
			r.Post("/reject", s.handleSocialReject)
		})
	})

	return r
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encoding response")
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		s.log.WithError(err).WithField("message", msg).Warn("bad request")
	} else {
		s.log.WithField("message", msg).Warn("bad request")
	}
	s.respond(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.WithError(err).Error(msg)
	s.respond(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

// refusal answers a non-fatal control-surface rejection.
func (s *Server) refusal(w http.ResponseWriter, v any) {
	s.respond(w, http.StatusOK, v)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
