// Package pipeline orchestrates the full ingestion run: list the public
// certificate feed, drop already-stored items, download report images,
// extract them with a vision backend, parse and store the results, and
// rescore vendors.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/crawler"
	"github.com/vialcheck/vialcheck-cli/internal/extract"
	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/parse"
	"github.com/vialcheck/vialcheck-cli/internal/scoring"
	"github.com/vialcheck/vialcheck-cli/internal/store"
)

// Stage names one phase of a run. A run moves through the stages in order
// and ends at StageComplete or StageError.
type Stage string

const (
	StageScraping    Stage = "scraping"
	StageFiltering   Stage = "filtering"
	StageDownloading Stage = "downloading"
	StageExtraction  Stage = "extraction"
	StageStorage     Stage = "storage"
	StageScoring     Stage = "scoring"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// ProgressFunc receives every stage transition with a short human message.
type ProgressFunc func(stage Stage, message string)

// Result summarizes one run.
type Result struct {
	Scraped    int // listings found on the site
	New        int // listings not yet in the store
	Downloaded int // images fetched (or found on disk by hash)
	Extracted  int // records returned by the vision backend
	Failed     int // per-item failures absorbed along the way
	Stored     int // certificates written

	RankingsCalculated int
	TopVendor          string

	Stage Stage // terminal stage
	Err   error // set when Stage == StageError
}

// Crawler is the listing/download surface the pipeline drives.
type Crawler interface {
	ListCertificates(ctx context.Context, progress func(page, total int)) ([]crawler.Listing, error)
	FetchImages(ctx context.Context, listings []crawler.Listing, progress func(done, total int)) ([]crawler.Download, []crawler.ItemFailure)
}

// Extractor is the batch extraction surface, satisfied by extract.Orchestrator.
type Extractor interface {
	ProcessBatch(ctx context.Context, imagePaths []string, progress extract.ProgressFunc) ([]*model.ExtractionRecord, []extract.ItemError)
}

// Pipeline wires the stages together over a shared store.
type Pipeline struct {
	crawler      Crawler
	extractor    Extractor
	store        store.Store
	recentWindow int
	now          func() time.Time
}

// New creates a Pipeline. recentWindowDays bounds the scoring engine's
// "recent certificates" count; values <= 0 use the scoring default.
func New(c Crawler, e Extractor, st store.Store, recentWindowDays int) *Pipeline {
	return &Pipeline{crawler: c, extractor: e, store: st, recentWindow: recentWindowDays, now: time.Now}
}

// Run executes one full ingestion pass. Per-item failures are counted and
// absorbed; a stage-level failure ends the run in StageError with the cause
// wrapped. When the feed yields nothing new the run skips straight to a
// rescoring pass and still completes.
func (p *Pipeline) Run(ctx context.Context, progress ProgressFunc) (*Result, error) {
	log := zap.L()
	result := &Result{}

	notify := func(stage Stage, format string, args ...any) {
		if progress != nil {
			progress(stage, fmt.Sprintf(format, args...))
		}
	}
	fail := func(stage Stage, err error) (*Result, error) {
		result.Stage = StageError
		result.Err = err
		notify(StageError, "failed during %s: %v", stage, err)
		return result, err
	}

	// Scraping.
	notify(StageScraping, "listing certificates")
	listings, err := p.crawler.ListCertificates(ctx, nil)
	if err != nil {
		return fail(StageScraping, eris.Wrap(err, "pipeline: list certificates"))
	}
	result.Scraped = len(listings)

	// Filtering. Known external ids are dropped before any download so a
	// rerun never re-fetches what the store already has.
	notify(StageFiltering, "filtering %d listings against store", len(listings))
	existing, err := p.store.ExistingIDs(ctx)
	if err != nil {
		return fail(StageFiltering, eris.Wrap(err, "pipeline: load existing ids"))
	}
	fresh := listings[:0:0]
	for _, l := range listings {
		if !existing[l.ExternalID] {
			fresh = append(fresh, l)
		}
	}
	result.New = len(fresh)
	log.Info("pipeline: filtered listings",
		zap.Int("scraped", result.Scraped),
		zap.Int("new", result.New),
	)

	if len(fresh) > 0 {
		if err := p.ingest(ctx, fresh, result, notify); err != nil {
			return fail(result.Stage, err)
		}
	} else {
		log.Info("pipeline: nothing new, rescoring only")
	}

	if err := ctx.Err(); err != nil {
		return fail(StageScoring, eris.Wrap(err, "pipeline: cancelled"))
	}

	// Scoring always runs, even on a zero-new pass, so rankings pick up
	// scoring changes without new data.
	notify(StageScoring, "scoring vendors")
	certs, err := p.store.GetAllCertificates(ctx)
	if err != nil {
		return fail(StageScoring, eris.Wrap(err, "pipeline: load certificates"))
	}
	rankings := scoring.Score(certs, p.now().UTC(), p.recentWindow)
	if len(rankings) > 0 {
		if err := p.store.ReplaceRankings(ctx, rankings); err != nil {
			return fail(StageScoring, eris.Wrap(err, "pipeline: store rankings"))
		}
		result.TopVendor = rankings[0].Vendor
	}
	result.RankingsCalculated = len(rankings)

	result.Stage = StageComplete
	notify(StageComplete, "done: %d stored, %d vendors ranked", result.Stored, result.RankingsCalculated)
	log.Info("pipeline: run complete",
		zap.Int("scraped", result.Scraped),
		zap.Int("new", result.New),
		zap.Int("stored", result.Stored),
		zap.Int("failed", result.Failed),
		zap.Int("rankings", result.RankingsCalculated),
		zap.String("top_vendor", result.TopVendor),
	)
	return result, nil
}

// ingest runs the download, extraction, and storage stages for fresh items.
// On error, result.Stage names the stage that failed.
func (p *Pipeline) ingest(ctx context.Context, fresh []crawler.Listing, result *Result, notify func(Stage, string, ...any)) error {
	log := zap.L()

	// Downloading.
	notify(StageDownloading, "downloading %d images", len(fresh))
	downloads, dlFailures := p.crawler.FetchImages(ctx, fresh, nil)
	result.Downloaded = len(downloads)
	result.Failed += len(dlFailures)
	if err := ctx.Err(); err != nil {
		result.Stage = StageDownloading
		return eris.Wrap(err, "pipeline: cancelled")
	}
	if len(downloads) == 0 {
		log.Warn("pipeline: no images downloaded", zap.Int("failures", len(dlFailures)))
		return nil
	}

	// Extraction.
	notify(StageExtraction, "extracting %d images", len(downloads))
	byPath := make(map[string]crawler.Download, len(downloads))
	paths := make([]string, 0, len(downloads))
	for _, dl := range downloads {
		byPath[dl.LocalPath] = dl
		paths = append(paths, dl.LocalPath)
	}
	records, exFailures := p.extractor.ProcessBatch(ctx, paths, nil)
	result.Extracted = len(records)
	result.Failed += len(exFailures)
	if err := ctx.Err(); err != nil {
		result.Stage = StageExtraction
		return eris.Wrap(err, "pipeline: cancelled")
	}

	// ProcessBatch keeps input order for successes, so pairing records
	// back to their downloads only needs the failed paths removed.
	failedPaths := make(map[string]bool, len(exFailures))
	for _, f := range exFailures {
		failedPaths[f.ImagePath] = true
	}
	okPaths := paths[:0:0]
	for _, path := range paths {
		if !failedPaths[path] {
			okPaths = append(okPaths, path)
		}
	}

	// Storage.
	notify(StageStorage, "parsing and storing %d records", len(records))
	certs := make([]model.Certificate, 0, len(records))
	for i, rec := range records {
		if i >= len(okPaths) {
			break
		}
		dl := byPath[okPaths[i]]
		cert, err := parse.Parse(rec, dl.LocalPath, dl.ContentHash)
		if err != nil {
			log.Warn("pipeline: record skipped",
				zap.String("external_id", dl.ExternalID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		certs = append(certs, *cert)
	}

	stored, err := p.store.InsertCertificates(ctx, certs)
	if err != nil {
		result.Stage = StageStorage
		return eris.Wrap(err, "pipeline: insert certificates")
	}
	result.Stored = stored
	return nil
}
