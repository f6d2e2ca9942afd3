package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCert(externalID, imageHash, vendor string) model.Certificate {
	return model.Certificate{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		ImageHash:  imageHash,
		Vendor:     vendor,
		VendorRaw:  vendor,
		Compound:   "BPC-157",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestInsertAndGetCertificates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.InsertCertificates(ctx, []model.Certificate{
		testCert("100", "hash-a", "Vendor A"),
		testCert("101", "hash-b", "Vendor B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.GetAllCertificates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byVendor, err := s.GetCertificatesByVendor(ctx, "Vendor A")
	require.NoError(t, err)
	require.Len(t, byVendor, 1)
	assert.Equal(t, "100", byVendor[0].ExternalID)
}

func TestInsertSkipsConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.InsertCertificates(ctx, []model.Certificate{testCert("100", "hash-a", "V")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same external id, same hash under a new id, and one genuinely new row.
	n, err = s.InsertCertificates(ctx, []model.Certificate{
		testCert("100", "hash-x", "V"),
		testCert("999", "hash-a", "V"),
		testCert("200", "hash-c", "V"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.GetAllCertificates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExistsAndExistingIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertCertificates(ctx, []model.Certificate{
		testCert("100", "hash-a", "V"),
		testCert("101", "hash-b", "V"),
	})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "100")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "404")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.ExistingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"100": true, "101": true}, ids)
}

func TestUpdateCertificate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cert := testCert("100", "hash-a", "V")
	_, err := s.InsertCertificates(ctx, []model.Certificate{cert})
	require.NoError(t, err)

	cert.Compound = "TB-500"
	cert.NeedsReview = true
	require.NoError(t, s.UpdateCertificate(ctx, &cert))

	all, err := s.GetAllCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "TB-500", all[0].Compound)
	assert.True(t, all[0].NeedsReview)
	assert.Equal(t, cert.ID, all[0].ID)

	missing := testCert("404", "hash-z", "V")
	assert.Error(t, s.UpdateCertificate(ctx, &missing))
}

func TestGetBlendsAndNeedingReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blend := testCert("100", "hash-a", "V")
	blend.IsBlend = true
	review := testCert("101", "hash-b", "V")
	review.NeedsReview = true
	plain := testCert("102", "hash-c", "V")

	_, err := s.InsertCertificates(ctx, []model.Certificate{blend, review, plain})
	require.NoError(t, err)

	blends, err := s.GetBlends(ctx)
	require.NoError(t, err)
	require.Len(t, blends, 1)
	assert.Equal(t, "100", blends[0].ExternalID)

	reviews, err := s.GetNeedingReview(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "101", reviews[0].ExternalID)
}

func ranking(vendor string, rank int, score float64, at time.Time) model.VendorRanking {
	return model.VendorRanking{
		Vendor:       vendor,
		Rank:         rank,
		TotalScore:   score,
		CalculatedAt: at,
	}
}

func TestReplaceRankingsAndLatestGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gen2 := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceRankings(ctx, []model.VendorRanking{
		ranking("Vendor A", 1, 80.5, gen1),
		ranking("Vendor B", 2, 60.0, gen1),
	}))
	require.NoError(t, s.ReplaceRankings(ctx, []model.VendorRanking{
		ranking("Vendor B", 1, 85.0, gen2),
		ranking("Vendor A", 2, 75.0, gen2),
	}))

	latest, err := s.LatestGeneration(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Vendor B", latest[0].Vendor)
	assert.Equal(t, 85.0, latest[0].TotalScore)
	assert.Equal(t, "Vendor A", latest[1].Vendor)

	trend, err := s.Trend(ctx, "Vendor A")
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, 80.5, trend[0].TotalScore)
	assert.Equal(t, 1, trend[0].Rank)
	assert.Equal(t, 75.0, trend[1].TotalScore)
	assert.True(t, trend[0].CalculatedAt.Before(trend[1].CalculatedAt))
}

func TestReplaceRankingsIsIdempotentPerGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := []model.VendorRanking{ranking("Vendor A", 1, 80.0, gen)}

	require.NoError(t, s.ReplaceRankings(ctx, rows))
	require.NoError(t, s.ReplaceRankings(ctx, rows))

	latest, err := s.LatestGeneration(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestLatestGenerationEmptyStore(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestGeneration(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}
