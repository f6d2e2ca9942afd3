package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialcheck/vialcheck-cli/internal/crawler"
	"github.com/vialcheck/vialcheck-cli/internal/extract"
	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/store"
)

type fakeCrawler struct {
	listings []crawler.Listing
	listErr  error

	fetchCalls  int
	failIDs     map[string]bool
	fetchedWith []crawler.Listing
}

func (f *fakeCrawler) ListCertificates(_ context.Context, _ func(page, total int)) ([]crawler.Listing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings, nil
}

func (f *fakeCrawler) FetchImages(_ context.Context, listings []crawler.Listing, _ func(done, total int)) ([]crawler.Download, []crawler.ItemFailure) {
	f.fetchCalls++
	f.fetchedWith = listings

	var downloads []crawler.Download
	var failures []crawler.ItemFailure
	for _, l := range listings {
		if f.failIDs[l.ExternalID] {
			failures = append(failures, crawler.ItemFailure{
				ExternalID: l.ExternalID,
				Err:        eris.New("resolve failed"),
			})
			continue
		}
		downloads = append(downloads, crawler.Download{
			ExternalID:  l.ExternalID,
			LocalPath:   "/images/" + l.ExternalID + ".jpg",
			ContentHash: "hash-" + l.ExternalID,
			Size:        1024,
		})
	}
	return downloads, failures
}

type fakeExtractor struct {
	calls     int
	failPaths map[string]bool
	// records per path; default builds a valid record from the path.
	recordFor func(path string) *model.ExtractionRecord
}

func (f *fakeExtractor) ProcessBatch(_ context.Context, paths []string, _ extract.ProgressFunc) ([]*model.ExtractionRecord, []extract.ItemError) {
	f.calls++
	var records []*model.ExtractionRecord
	var failures []extract.ItemError
	for _, path := range paths {
		if f.failPaths[path] {
			failures = append(failures, extract.ItemError{ImagePath: path, Err: eris.New("backend error")})
			continue
		}
		if f.recordFor != nil {
			records = append(records, f.recordFor(path))
			continue
		}
		records = append(records, &model.ExtractionRecord{
			TaskNumber:        model.NewFlex(filepath.Base(path[:len(path)-4])),
			Client:            model.NewFlex("Vendor A"),
			Sample:            model.NewFlex("BPC-157 5mg"),
			AnalysisConducted: model.NewFlex("2026-08-01"),
			Results: map[string]model.Flex{
				"BPC-157": model.NewFlex("5.12 mg"),
				"Purity":  model.NewFlex("99.2%"),
			},
		})
	}
	return records, failures
}

func newPipelineStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "pipeline.db"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func listingsN(n int) []crawler.Listing {
	out := make([]crawler.Listing, 0, n)
	for i := range n {
		id := fmt.Sprintf("%d", 100+i)
		out = append(out, crawler.Listing{ExternalID: id, DetailURL: "https://lab.example/certificates/" + id})
	}
	return out
}

func seedCertificate(t *testing.T, st store.Store, externalID string) {
	t.Helper()
	date := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	purity := 99.0
	n, err := st.InsertCertificates(context.Background(), []model.Certificate{{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		ImageHash:  "seed-" + externalID,
		Vendor:     "Seed Vendor",
		Compound:   "TB-500",
		TestDate:   &date,
		Purity:     &purity,
		CreatedAt:  time.Now().UTC(),
	}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunFullPass(t *testing.T) {
	st := newPipelineStore(t)
	seedCertificate(t, st, "100") // already known, must be filtered out

	fc := &fakeCrawler{listings: listingsN(5)}
	fe := &fakeExtractor{}
	p := New(fc, fe, st, 0)

	var stages []Stage
	result, err := p.Run(context.Background(), func(stage Stage, _ string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Scraped)
	assert.Equal(t, 4, result.New)
	assert.Equal(t, 4, result.Downloaded)
	assert.Equal(t, 4, result.Extracted)
	assert.Equal(t, 4, result.Stored)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, StageComplete, result.Stage)
	assert.Positive(t, result.RankingsCalculated)
	assert.NotEmpty(t, result.TopVendor)

	// The filter ran before any download.
	require.Len(t, fc.fetchedWith, 4)
	for _, l := range fc.fetchedWith {
		assert.NotEqual(t, "100", l.ExternalID)
	}

	assert.Equal(t, []Stage{
		StageScraping, StageFiltering, StageDownloading,
		StageExtraction, StageStorage, StageScoring, StageComplete,
	}, stages)
}

func TestRunNothingNewRescoresOnly(t *testing.T) {
	st := newPipelineStore(t)
	seedCertificate(t, st, "100")
	seedCertificate(t, st, "101")

	fc := &fakeCrawler{listings: listingsN(2)}
	fe := &fakeExtractor{}
	p := New(fc, fe, st, 0)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scraped)
	assert.Equal(t, 0, result.New)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, StageComplete, result.Stage)
	assert.Equal(t, 1, result.RankingsCalculated)
	assert.Equal(t, "Seed Vendor", result.TopVendor)

	// The scoring-only pass never touches the network or the backend.
	assert.Zero(t, fc.fetchCalls)
	assert.Zero(t, fe.calls)
}

func TestRunAbsorbsItemFailures(t *testing.T) {
	st := newPipelineStore(t)

	fc := &fakeCrawler{
		listings: listingsN(4),
		failIDs:  map[string]bool{"100": true},
	}
	fe := &fakeExtractor{
		failPaths: map[string]bool{"/images/101.jpg": true},
	}
	p := New(fc, fe, st, 0)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, result.New)
	assert.Equal(t, 3, result.Downloaded)
	assert.Equal(t, 2, result.Extracted)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 2, result.Failed) // one download, one extraction
	assert.Equal(t, StageComplete, result.Stage)
}

func TestRunSkipsUnparseableRecords(t *testing.T) {
	st := newPipelineStore(t)

	fc := &fakeCrawler{listings: listingsN(2)}
	fe := &fakeExtractor{
		recordFor: func(path string) *model.ExtractionRecord {
			if path == "/images/100.jpg" {
				// Missing task number and vendor, rejected by the parser.
				return &model.ExtractionRecord{}
			}
			return &model.ExtractionRecord{
				TaskNumber: model.NewFlex("101"),
				Client:     model.NewFlex("Vendor A"),
				Sample:     model.NewFlex("BPC-157 5mg"),
				Results: map[string]model.Flex{
					"BPC-157": model.NewFlex("5.0 mg"),
				},
			}
		},
	}
	p := New(fc, fe, st, 0)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Extracted)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StageComplete, result.Stage)
}

func TestRunListingFailureIsTerminal(t *testing.T) {
	st := newPipelineStore(t)

	fc := &fakeCrawler{listErr: eris.New("site unreachable")}
	p := New(fc, &fakeExtractor{}, st, 0)

	var last Stage
	result, err := p.Run(context.Background(), func(stage Stage, _ string) { last = stage })
	require.Error(t, err)
	assert.Equal(t, StageError, result.Stage)
	assert.Equal(t, StageError, last)
	assert.Error(t, result.Err)
}

func TestRunCancelledContext(t *testing.T) {
	st := newPipelineStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := &fakeCrawler{listings: listingsN(1)}
	p := New(fc, &fakeExtractor{}, st, 0)

	result, err := p.Run(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, StageError, result.Stage)
}
