package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements
// the same surface, which is how the Postgres store is tested without a
// server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS certificates (
	id          TEXT PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	image_hash  TEXT NOT NULL UNIQUE,
	vendor      TEXT NOT NULL,
	doc         JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vendor_rankings (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	vendor        TEXT NOT NULL,
	rank          INTEGER NOT NULL,
	total_score   DOUBLE PRECISION NOT NULL,
	doc           JSONB NOT NULL,
	calculated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificates_vendor ON certificates(vendor);
CREATE INDEX IF NOT EXISTS idx_certificates_external_id ON certificates(external_id);
CREATE INDEX IF NOT EXISTS idx_rankings_vendor ON vendor_rankings(vendor);
CREATE INDEX IF NOT EXISTS idx_rankings_calculated_at ON vendor_rankings(calculated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM certificates WHERE external_id = $1 LIMIT 1`,
		externalID,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists %s", externalID)
	}
	return true, nil
}

func (s *PostgresStore) ExistingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT external_id FROM certificates`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing ids")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan external id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "postgres: existing ids iterate")
}

// InsertCertificates inserts a batch in one transaction with
// ON CONFLICT DO NOTHING, returning the count actually written.
func (s *PostgresStore) InsertCertificates(ctx context.Context, certs []model.Certificate) (int, error) {
	if len(certs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inserted := 0
	for _, cert := range certs {
		doc, err := json.Marshal(cert)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: marshal certificate %s", cert.ExternalID)
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO certificates (id, external_id, image_hash, vendor, doc, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT DO NOTHING`,
			cert.ID, cert.ExternalID, cert.ImageHash, cert.Vendor, doc, cert.CreatedAt.UTC(),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert certificate %s", cert.ExternalID)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert")
	}
	return inserted, nil
}

func (s *PostgresStore) UpdateCertificate(ctx context.Context, cert *model.Certificate) error {
	doc, err := json.Marshal(cert)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal certificate %s", cert.ExternalID)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE certificates SET vendor = $1, doc = $2 WHERE external_id = $3`,
		cert.Vendor, doc, cert.ExternalID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update certificate %s", cert.ExternalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: certificate not found: %s", cert.ExternalID)
	}
	return nil
}

func (s *PostgresStore) GetAllCertificates(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx, `SELECT doc FROM certificates ORDER BY created_at DESC`)
}

func (s *PostgresStore) GetCertificatesByVendor(ctx context.Context, vendor string) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE vendor = $1 ORDER BY created_at DESC`, vendor)
}

func (s *PostgresStore) GetBlends(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE (doc->>'is_blend')::boolean ORDER BY created_at DESC`)
}

func (s *PostgresStore) GetNeedingReview(ctx context.Context) ([]model.Certificate, error) {
	return s.queryCertificates(ctx,
		`SELECT doc FROM certificates WHERE (doc->>'needs_review')::boolean ORDER BY created_at DESC`)
}

func (s *PostgresStore) queryCertificates(ctx context.Context, query string, args ...any) ([]model.Certificate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query certificates")
	}
	defer rows.Close()

	var certs []model.Certificate
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan certificate")
		}
		var c model.Certificate
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal certificate")
		}
		certs = append(certs, c)
	}
	return certs, eris.Wrap(rows.Err(), "postgres: certificates iterate")
}

// ReplaceRankings writes one ranking generation atomically.
func (s *PostgresStore) ReplaceRankings(ctx context.Context, rankings []model.VendorRanking) error {
	if len(rankings) == 0 {
		return nil
	}
	generation := rankings[0].CalculatedAt.UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace rankings")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM vendor_rankings WHERE calculated_at = $1`, generation,
	); err != nil {
		return eris.Wrap(err, "postgres: delete ranking generation")
	}

	for _, r := range rankings {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal ranking %s", r.Vendor)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO vendor_rankings (vendor, rank, total_score, doc, calculated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.Vendor, r.Rank, r.TotalScore, doc, generation,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert ranking %s", r.Vendor)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit rankings")
}

func (s *PostgresStore) LatestGeneration(ctx context.Context, limit int) ([]model.VendorRanking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM vendor_rankings
		 WHERE calculated_at = (SELECT MAX(calculated_at) FROM vendor_rankings)
		 ORDER BY total_score DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest generation")
	}
	defer rows.Close()

	var rankings []model.VendorRanking
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ranking")
		}
		var r model.VendorRanking
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ranking")
		}
		rankings = append(rankings, r)
	}
	return rankings, eris.Wrap(rows.Err(), "postgres: rankings iterate")
}

func (s *PostgresStore) Trend(ctx context.Context, vendor string) ([]model.TrendPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT calculated_at, total_score, rank FROM vendor_rankings
		 WHERE vendor = $1
		 ORDER BY calculated_at ASC`, vendor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: trend for %s", vendor)
	}
	defer rows.Close()

	var points []model.TrendPoint
	for rows.Next() {
		var p model.TrendPoint
		if err := rows.Scan(&p.CalculatedAt, &p.TotalScore, &p.Rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trend point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: trend iterate")
}
