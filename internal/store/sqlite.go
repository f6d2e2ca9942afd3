package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS certificates (
	id          TEXT PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	image_hash  TEXT NOT NULL UNIQUE,
	vendor      TEXT NOT NULL,
	doc         TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vendor_rankings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	vendor        TEXT NOT NULL,
	rank          INTEGER NOT NULL,
	total_score   REAL NOT NULL,
	doc           TEXT NOT NULL,
	calculated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificates_vendor ON certificates(vendor);
CREATE INDEX IF NOT EXISTS idx_certificates_external_id ON certificates(external_id);
CREATE INDEX IF NOT EXISTS idx_rankings_vendor ON vendor_rankings(vendor);
CREATE INDEX IF NOT EXISTS idx_rankings_calculated_at ON vendor_rankings(calculated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM certificates WHERE external_id = ? LIMIT 1`,
		externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists %s", externalID)
	}
	return true, nil
}

func (s *SQLiteStore) ExistingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT external_id FROM certificates`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing ids")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan external id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: existing ids iterate")
}

// InsertCertificates inserts a batch in one transaction. Conflicts on
// external id or image hash are skipped silently; the return value is the
// count actually written.
func (s *SQLiteStore) InsertCertificates(ctx context.Context, certs []model.Certificate) (int, error) {
	if len(certs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for _, cert := range certs {
		doc, err := json.Marshal(cert)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: marshal certificate %s", cert.ExternalID)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO certificates (id, external_id, image_hash, vendor, doc, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cert.ID, cert.ExternalID, cert.ImageHash, cert.Vendor, string(doc), cert.CreatedAt.UTC(),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert certificate %s", cert.ExternalID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert")
	}
	return inserted, nil
}

// UpdateCertificate replaces the stored document for an external id,
// preserving identity. Used by reprocessing after parser fixes.
func (s *SQLiteStore) UpdateCertificate(ctx context.Context, cert *model.Certificate) error {
	doc, err := json.Marshal(cert)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal certificate %s", cert.ExternalID)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE certificates SET vendor = ?, doc = ? WHERE external_id = ?`,
		cert.Vendor, string(doc), cert.ExternalID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update certificate %s", cert.ExternalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: certificate not found: %s", cert.ExternalID)
	}
	return nil
}

func (s *SQLiteStore) GetAllCertificates(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx, `SELECT doc FROM certificates ORDER BY created_at DESC`)
}

func (s *SQLiteStore) GetCertificatesByVendor(ctx context.Context, vendor string) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE vendor = ? ORDER BY created_at DESC`, vendor)
}

// GetBlends returns multi-compound certificates, newest first.
func (s *SQLiteStore) GetBlends(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE json_extract(doc, '$.is_blend') = 1 ORDER BY created_at DESC`)
}

// GetNeedingReview returns certificates whose result layout the parser
// could not classify.
func (s *SQLiteStore) GetNeedingReview(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE json_extract(doc, '$.needs_review') = 1 ORDER BY created_at DESC`)
}

func (s *SQLiteStore) queryCertificates(ctx context.Context, query string, args ...any) ([]model.Certificate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query certificates")
	}
	defer rows.Close()

	var certs []model.Certificate
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan certificate")
		}
		var c model.Certificate
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal certificate")
		}
		certs = append(certs, c)
	}
	return certs, eris.Wrap(rows.Err(), "sqlite: certificates iterate")
}

// ReplaceRankings writes one generation as a single transaction. Rows
// already carrying this generation's timestamp are removed first, so a
// retried scoring pass never duplicates rows. Older generations stay for
// trend queries.
func (s *SQLiteStore) ReplaceRankings(ctx context.Context, rankings []model.VendorRanking) error {
	if len(rankings) == 0 {
		return nil
	}
	generation := rankings[0].CalculatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace rankings")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vendor_rankings WHERE calculated_at = ?`, generation,
	); err != nil {
		return eris.Wrap(err, "sqlite: delete ranking generation")
	}

	for _, r := range rankings {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal ranking %s", r.Vendor)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vendor_rankings (vendor, rank, total_score, doc, calculated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.Vendor, r.Rank, r.TotalScore, string(doc), generation,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert ranking %s", r.Vendor)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit rankings")
}

func (s *SQLiteStore) LatestGeneration(ctx context.Context, limit int) ([]model.VendorRanking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM vendor_rankings
		 WHERE calculated_at = (SELECT MAX(calculated_at) FROM vendor_rankings)
		 ORDER BY total_score DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest generation")
	}
	defer rows.Close()

	var rankings []model.VendorRanking
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ranking")
		}
		var r model.VendorRanking
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal ranking")
		}
		rankings = append(rankings, r)
	}
	return rankings, eris.Wrap(rows.Err(), "sqlite: rankings iterate")
}

func (s *SQLiteStore) Trend(ctx context.Context, vendor string) ([]model.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT calculated_at, total_score, rank FROM vendor_rankings
		 WHERE vendor = ?
		 ORDER BY calculated_at ASC`, vendor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: trend for %s", vendor)
	}
	defer rows.Close()

	var points []model.TrendPoint
	for rows.Next() {
		var p model.TrendPoint
		var at time.Time
		if err := rows.Scan(&at, &p.TotalScore, &p.Rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trend point")
		}
		p.CalculatedAt = at
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: trend iterate")
}
