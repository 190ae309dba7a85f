package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hoganho/kingsroom-sub012/internal/financial"
	"github.com/hoganho/kingsroom-sub012/internal/scraper"
	"github.com/hoganho/kingsroom-sub012/internal/social"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

var (
	flagSave       bool
	flagLimit      int
	flagTweetCount int
	flagBatchPosts []string
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kingsroom",
		Short: "Scrape, consolidate and enrich poker tournament data",
		Long: `Walks a tournament site's id range, versions the raw pages, consolidates
multi-day and multi-flight events into series families, projects game
financials, and links social posts to games.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newScraperCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFinancialsCmd())
	cmd.AddCommand(newSocialCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control-surface HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := &http.Server{
				Addr:    app.Cfg.Server.Addr,
				Handler: app.Server.Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				app.Log.WithField("addr", srv.Addr).Info("control surface listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				app.Log.Info("shutting down")
				return srv.Shutdown(context.Background())
			}
		},
	}
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one scraping walk for the configured entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Orchestrator.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		},
	}
}

func newScraperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scraper [START|STOP|ENABLE|DISABLE|STATUS|RESET]",
		Short: "Execute a scraper control operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Controller.Execute(cmd.Context(), scraper.Op(strings.ToUpper(args[0])))
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report scraper state and id-range gaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			state, err := app.Scrapers.GetState(cmd.Context(), app.Cfg.EntityID)
			if err != nil {
				return err
			}
			gaps, err := app.ScrapeURLs.Gaps(cmd.Context(), app.Cfg.EntityID)
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, map[string]any{
				"entityId": app.Cfg.EntityID,
				"state":    state,
				"gaps":     gaps,
			})
		},
	}
}

func newFinancialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "financials [gameID]",
		Short: "Project cost and financial snapshot for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Calculator.CalculateByID(cmd.Context(), args[0],
				financial.Options{SaveToDatabase: flagSave})
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("game %s not found", args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		},
	}
	cmd.Flags().BoolVar(&flagSave, "save", false, "Persist the cost and snapshot")
	return cmd
}

func newSocialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "social",
		Short: "Process social posts and manage game links",
	}

	process := &cobra.Command{
		Use:   "process [postID]",
		Short: "Process one social post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Matcher.Process(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		},
	}

	batch := &cobra.Command{
		Use:   "batch",
		Short: "Process pending posts, or an explicit id list",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			limit := flagLimit
			if limit <= 0 {
				limit = app.Cfg.Social.BatchLimit
			}
			res, err := app.Matcher.ProcessBatch(cmd.Context(), flagBatchPosts, limit)
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		},
	}
	batch.Flags().IntVar(&flagLimit, "limit", 0, "Maximum posts per invocation")
	batch.Flags().StringSliceVar(&flagBatchPosts, "post", nil, "Explicit post ids (repeatable)")

	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Pull recent tweets for the entity's accounts into the post store",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ingester, err := social.NewTwitterIngester(app.Socials, app.Log)
			if err != nil {
				return err
			}

			accounts, err := app.Socials.Accounts(cmd.Context(), app.Cfg.EntityID)
			if err != nil {
				return err
			}

			total := 0
			for i := range accounts {
				n, err := ingester.Ingest(cmd.Context(), &accounts[i], flagTweetCount)
				if err != nil {
					return fmt.Errorf("ingesting @%s: %w", accounts[i].Handle, err)
				}
				total += n
			}
			fmt.Fprintf(os.Stdout, "Ingested %d posts across %d accounts\n", total, len(accounts))
			return nil
		},
	}
	ingest.Flags().IntVar(&flagTweetCount, "count", 50, "Tweets to fetch per account")

	cmd.AddCommand(process, batch, ingest)
	return cmd
}
