package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Exists_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM certificates WHERE external_id = \$1`).
		WithArgs("404").
		WillReturnError(pgx.ErrNoRows)

	ok, err := s.Exists(context.Background(), "404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Exists_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM certificates WHERE external_id = \$1`).
		WithArgs("100").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := s.Exists(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT external_id FROM certificates`).
		WillReturnRows(pgxmock.NewRows([]string{"external_id"}).
			AddRow("100").
			AddRow("101"))

	ids, err := s.ExistingIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"100": true, "101": true}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCertificates_SkipsConflicts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO certificates`).
		WithArgs(pgxmock.AnyArg(), "100", "hash-a", "Vendor A", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO certificates`).
		WithArgs(pgxmock.AnyArg(), "101", "hash-a", "Vendor A", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := s.InsertCertificates(context.Background(), []model.Certificate{
		testCert("100", "hash-a", "Vendor A"),
		testCert("101", "hash-a", "Vendor A"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCertificate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE certificates SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	missing := testCert("404", "hash-z", "V")
	err := s.UpdateCertificate(context.Background(), &missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRankings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	gen := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM vendor_rankings WHERE calculated_at = \$1`).
		WithArgs(gen).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO vendor_rankings`).
		WithArgs("Vendor A", 1, 85.0, pgxmock.AnyArg(), gen).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO vendor_rankings`).
		WithArgs("Vendor B", 2, 60.0, pgxmock.AnyArg(), gen).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceRankings(context.Background(), []model.VendorRanking{
		ranking("Vendor A", 1, 85.0, gen),
		ranking("Vendor B", 2, 60.0, gen),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestGeneration(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	gen := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	docA, err := json.Marshal(ranking("Vendor A", 1, 85.0, gen))
	require.NoError(t, err)
	docB, err := json.Marshal(ranking("Vendor B", 2, 60.0, gen))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM vendor_rankings`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow(docA).
			AddRow(docB))

	rankings, err := s.LatestGeneration(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "Vendor A", rankings[0].Vendor)
	assert.Equal(t, 85.0, rankings[0].TotalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Trend(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	gen1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gen2 := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT calculated_at, total_score, rank FROM vendor_rankings`).
		WithArgs("Vendor A").
		WillReturnRows(pgxmock.NewRows([]string{"calculated_at", "total_score", "rank"}).
			AddRow(gen1, 80.5, 1).
			AddRow(gen2, 75.0, 2))

	points, err := s.Trend(context.Background(), "Vendor A")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 80.5, points[0].TotalScore)
	assert.Equal(t, 2, points[1].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
