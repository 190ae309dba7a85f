package parser

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/blob"
	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// BlobSource says where the parsed HTML came from.
type BlobSource string

const (
	SourceS3Cache  BlobSource = "s3_cache"
	SourceHTTP304  BlobSource = "http_304_cache"
	SourceLive     BlobSource = "live"
	SourceNone     BlobSource = "none"
)

// BlobRef points at the archived HTML behind a parse outcome.
type BlobRef struct {
	Key    string
	Source BlobSource
}

// Result is the tagged outcome of parsing one URL. Consumers switch on
// Status; Data is set only on SUCCESS.
type Result struct {
	Status       game.ScrapeStatus
	Data         *game.GameData
	Blob         *BlobRef
	ErrorMessage string
}

// Parser fetches, archives, and extracts tournament pages for one entity.
type Parser struct {
	fetcher   *Fetcher
	blobs     *store.BlobStore
	writer    *blob.Writer
	extractor *Extractor
	log       *logrus.Logger
	timeout   time.Duration
}

// New assembles a parser. timeout bounds each URL end to end.
func New(fetcher *Fetcher, blobs *store.BlobStore, writer *blob.Writer, extractor *Extractor, log *logrus.Logger, timeout time.Duration) *Parser {
	return &Parser{
		fetcher:   fetcher,
		blobs:     blobs,
		writer:    writer,
		extractor: extractor,
		log:       log,
		timeout:   timeout,
	}
}

// Parse processes one tournament URL. The blob append happens before the
// result is returned, so a SUCCESS result always refers to a stored blob.
func (p *Parser) Parse(ctx context.Context, entityID string, tournamentID int, url string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	etag := ""
	var latest *store.BlobRecord
	if rec, err := p.blobs.ResolveLatest(ctx, url); err == nil {
		latest = rec
		if rec.ETag != nil {
			etag = *rec.ETag
		}
	}

	fetched, err := p.fetcher.Fetch(ctx, url, etag)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Status: game.ScrapeTimeout, ErrorMessage: err.Error(), Blob: &BlobRef{Source: SourceNone}}
		}
		return Result{Status: game.ScrapeError, ErrorMessage: err.Error(), Blob: &BlobRef{Source: SourceNone}}
	}

	var content []byte
	var ref BlobRef

	switch fetched.Status {
	case FetchNotModified:
		// Unchanged since last capture; parse the archived copy.
		if latest == nil {
			return Result{Status: game.ScrapeError, ErrorMessage: "304 with no cached blob", Blob: &BlobRef{Source: SourceNone}}
		}
		cached, err := p.writer.Read(latest.BlobKey)
		if err != nil {
			return Result{Status: game.ScrapeError, ErrorMessage: err.Error(), Blob: &BlobRef{Source: SourceNone}}
		}
		content = cached
		ref = BlobRef{Key: latest.BlobKey, Source: SourceHTTP304}

	case FetchNotFound:
		return Result{Status: game.ScrapeNotFound, Blob: &BlobRef{Source: SourceNone}}
	case FetchRateLimited:
		return Result{Status: game.ScrapeRateLimited, Blob: &BlobRef{Source: SourceNone}}
	case FetchAuthError:
		return Result{Status: game.ScrapeAuthError, Blob: &BlobRef{Source: SourceNone}}
	case FetchServerError:
		return Result{Status: game.ScrapeError, ErrorMessage: fetched.ErrorMessage, Blob: &BlobRef{Source: SourceNone}}

	case FetchOK:
		content = fetched.Body
		scrapedAt := time.Now().UTC()

		if latest != nil && latest.ContentHash != nil && *latest.ContentHash == blob.Hash(content) {
			// Byte-identical to the stored version; reuse it instead of
			// appending a duplicate.
			ref = BlobRef{Key: latest.BlobKey, Source: SourceS3Cache}
		} else {
			key, hash, size, err := p.writer.Write(entityID, tournamentID, scrapedAt, content)
			if err != nil {
				return Result{Status: game.ScrapeError, ErrorMessage: err.Error(), Blob: &BlobRef{Source: SourceNone}}
			}

			extracted := p.extractor.PeekStatus(content)
			err = p.blobs.Append(ctx, url, key, store.BlobMeta{
				EntityID:        entityID,
				TournamentID:    tournamentID,
				ETag:            fetched.ETag,
				LastModified:    fetched.LastModified,
				ByteSize:        size,
				ContentHash:     hash,
				ExtractedStatus: extracted,
				ScrapedAt:       scrapedAt,
			})
			if err != nil && err != store.ErrDuplicateVersion {
				return Result{Status: game.ScrapeError, ErrorMessage: err.Error(), Blob: &BlobRef{Source: SourceNone}}
			}
			ref = BlobRef{Key: key, Source: SourceLive}
		}
	}

	data, status := p.extractor.Extract(content, entityID, tournamentID)
	if status != game.ScrapeSuccess {
		return Result{Status: status, Blob: &ref}
	}

	p.log.WithFields(logrus.Fields{
		"tournamentId": tournamentID,
		"name":         data.Name,
		"source":       ref.Source,
	}).Debug("parsed tournament page")

	return Result{Status: game.ScrapeSuccess, Data: data, Blob: &ref}
}

// DataSource maps a blob source onto the event-level data source.
func (r Result) DataSource() string {
	if r.Blob == nil {
		return "none"
	}
	switch r.Blob.Source {
	case SourceS3Cache, SourceHTTP304:
		return "s3"
	case SourceLive:
		return "web"
	}
	// Missing and unpublished pages were still reachable over the web.
	if r.Status == game.ScrapeNotFound || r.Status == game.ScrapeNotPublished {
		return "web"
	}
	return "none"
}
