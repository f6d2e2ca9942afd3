// Package store persists certificates and vendor ranking generations.
// Two backends implement the same interface: SQLite for single-machine
// use and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// Store is the persistence interface for the ingestion pipeline.
type Store interface {
	// Certificates. Insert skips rows that conflict on external id or
	// image hash instead of failing the batch.
	Exists(ctx context.Context, externalID string) (bool, error)
	ExistingIDs(ctx context.Context) (map[string]bool, error)
	InsertCertificates(ctx context.Context, certs []model.Certificate) (int, error)
	UpdateCertificate(ctx context.Context, cert *model.Certificate) error
	GetAllCertificates(ctx context.Context) ([]model.Certificate, error)
	GetCertificatesByVendor(ctx context.Context, vendor string) ([]model.Certificate, error)
	GetBlends(ctx context.Context) ([]model.Certificate, error)
	GetNeedingReview(ctx context.Context) ([]model.Certificate, error)

	// Rankings. One scoring pass produces one generation, written as a
	// single logical unit. Prior generations stay for trend queries.
	ReplaceRankings(ctx context.Context, rankings []model.VendorRanking) error
	LatestGeneration(ctx context.Context, limit int) ([]model.VendorRanking, error)
	Trend(ctx context.Context, vendor string) ([]model.TrendPoint, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string      `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string      `yaml:"dsn" mapstructure:"dsn"`
	Pool   *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the store named by the config.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
