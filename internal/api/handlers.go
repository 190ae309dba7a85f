package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoganho/kingsroom-sub012/internal/consolidation"
	"github.com/hoganho/kingsroom-sub012/internal/financial"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/scraper"
	"github.com/hoganho/kingsroom-sub012/internal/skipcache"
	"github.com/hoganho/kingsroom-sub012/internal/social"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

type scrapeTotals struct {
	NewGamesScraped int             `json:"newGamesScraped"`
	GamesUpdated    int             `json:"gamesUpdated"`
	GamesSkipped    int             `json:"gamesSkipped"`
	Errors          int             `json:"errors"`
	Blanks          int             `json:"blanks"`
	CacheStats      skipcache.Stats `json:"cacheStats"`
}

type scrapeResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	JobID   string       `json:"jobId,omitempty"`
	Results scrapeTotals `json:"results"`
}

func (s *Server) handleScrapeRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.Run(r.Context())
	if err != nil {
		s.internalError(w, "scrape run failed", err)
		return
	}
	s.respond(w, http.StatusOK, scrapeResponse{
		Success: res.Success,
		Message: res.Message,
		JobID:   res.JobID,
		Results: scrapeTotals{
			NewGamesScraped: res.NewGamesScraped,
			GamesUpdated:    res.GamesUpdated,
			GamesSkipped:    res.GamesSkipped,
			Errors:          res.Errors,
			Blanks:          res.Blanks,
			CacheStats:      res.CacheStats,
		},
	})
}

func (s *Server) handleScrapeControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Op string `json:"op"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	if req.Op == "" {
		s.badRequest(w, "op is required", nil)
		return
	}

	res, err := s.controls.Execute(r.Context(), scraper.Op(req.Op))
	if err != nil {
		s.internalError(w, "control operation failed", err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

func (s *Server) handleScrapeState(w http.ResponseWriter, r *http.Request) {
	res, err := s.controls.Execute(r.Context(), scraper.OpStatus)
	if err != nil {
		s.internalError(w, "reading scraper state", err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

type statusReport struct {
	EntityID   string                  `json:"entityId"`
	State      *store.AutoScraperState `json:"state"`
	Gaps       []store.Gap             `json:"gaps"`
	CacheStats *skipcache.Stats        `json:"cacheStats,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.GetState(r.Context(), s.entityID)
	if err != nil {
		s.internalError(w, "reading scraper state", err)
		return
	}
	gaps, err := s.urls.Gaps(r.Context(), s.entityID)
	if err != nil {
		s.internalError(w, "computing scrape gaps", err)
		return
	}

	report := statusReport{EntityID: s.entityID, State: state, Gaps: gaps}
	if s.cache != nil {
		stats := s.cache.Stats()
		report.CacheStats = &stats
	}
	s.respond(w, http.StatusOK, report)
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID  string     `json:"gameId"`
		Game    *game.Game `json:"game"`
		Options struct {
			SaveToDatabase bool `json:"saveToDatabase"`
		} `json:"options"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}

	opts := financial.Options{SaveToDatabase: req.Options.SaveToDatabase}

	var (
		res *financial.Result
		err error
	)
	switch {
	case req.GameID != "":
		res, err = s.financials.CalculateByID(r.Context(), req.GameID, opts)
	case req.Game != nil:
		res, err = s.financials.Calculate(r.Context(), req.Game, opts)
	default:
		s.badRequest(w, "gameId or game is required", nil)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.refusal(w, map[string]any{"success": false, "message": "game not found"})
	case errors.Is(err, financial.ErrMissingGameID):
		s.refusal(w, map[string]any{"success": false, "message": err.Error()})
	case err != nil:
		s.internalError(w, "financial calculation failed", err)
	default:
		s.respond(w, http.StatusOK, res)
	}
}

func (s *Server) handleConsolidationPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameData              game.GameData `json:"gameData"`
		IncludeSiblingDetails bool          `json:"includeSiblingDetails"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}

	res, err := s.consolidations.Preview(r.Context(), &req.GameData, req.IncludeSiblingDetails)
	switch {
	case errors.Is(err, consolidation.ErrInvalidCandidate):
		s.badRequest(w, err.Error(), nil)
	case err != nil:
		s.internalError(w, "consolidation preview failed", err)
	default:
		s.respond(w, http.StatusOK, res)
	}
}

func (s *Server) handleSocialProcess(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	res, err := s.social.Process(r.Context(), postID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.refusal(w, &social.ProcessResult{PostID: postID, Message: "post not found"})
	case err != nil:
		s.internalError(w, "processing social post", err)
	default:
		s.respond(w, http.StatusOK, res)
	}
}

func (s *Server) handleSocialBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SocialPostIDs []string `json:"socialPostIds"`
		Limit         int      `json:"limit"`
	}
	// An empty body means "drain pending posts at the default limit".
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, "invalid request body", err)
		return
	}

	res, err := s.social.ProcessBatch(r.Context(), req.SocialPostIDs, req.Limit)
	if err != nil {
		s.internalError(w, "processing social post batch", err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

func (s *Server) handleSocialLink(w http.ResponseWriter, r *http.Request) {
	s.linkOp(w, r, func(postID, gameID string) (*social.ProcessResult, error) {
		return s.social.LinkManually(r.Context(), postID, gameID)
	})
}

func (s *Server) handleSocialUnlink(w http.ResponseWriter, r *http.Request) {
	s.linkOp(w, r, func(postID, gameID string) (*social.ProcessResult, error) {
		return s.social.Unlink(r.Context(), postID, gameID)
	})
}

func (s *Server) handleSocialVerify(w http.ResponseWriter, r *http.Request) {
	s.linkOp(w, r, func(postID, gameID string) (*social.ProcessResult, error) {
		return s.social.Verify(r.Context(), postID, gameID)
	})
}

func (s *Server) handleSocialReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.linkOp(w, r, func(postID, gameID string) (*social.ProcessResult, error) {
		return s.social.Reject(r.Context(), postID, gameID, req.Reason)
	})
}

func (s *Server) linkOp(w http.ResponseWriter, r *http.Request,
	op func(postID, gameID string) (*social.ProcessResult, error)) {
	postID := chi.URLParam(r, "postID")
	gameID := chi.URLParam(r, "gameID")

	res, err := op(postID, gameID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.refusal(w, &social.ProcessResult{PostID: postID, Message: "post, game or link not found"})
	case err != nil:
		s.internalError(w, "link operation failed", err)
	default:
		s.respond(w, http.StatusOK, res)
	}
}
