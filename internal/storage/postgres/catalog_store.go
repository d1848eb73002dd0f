// Package postgres provides a Postgres-backed catalog of harvested records.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/doc-harvester/internal/record"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "documents"

// CatalogStoreConfig controls the Postgres connection pool used for catalog rows.
type CatalogStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// CatalogStore mirrors metadata records into a Postgres table keyed by document id.
type CatalogStore struct {
	pool  execCloser
	table string
}

// NewCatalogStore creates a Postgres-backed CatalogStore using the provided config.
func NewCatalogStore(ctx context.Context, cfg CatalogStoreConfig) (*CatalogStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CatalogStore{pool: pool, table: table}, nil
}

// NewCatalogStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCatalogStoreWithPool(pool execCloser, table string) (*CatalogStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &CatalogStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *CatalogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the catalog table when it does not exist.
func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	document_id  TEXT PRIMARY KEY,
	checksum     TEXT NOT NULL,
	title        TEXT NOT NULL,
	authors      JSONB NOT NULL DEFAULT '[]',
	pub_year     TEXT,
	language     TEXT NOT NULL,
	scraped_at   TEXT NOT NULL,
	site         TEXT NOT NULL,
	download_url TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create catalog table: %w", err)
	}
	return nil
}

// UpsertRecord inserts rec, replacing any existing row with the same document id.
func (s *CatalogStore) UpsertRecord(ctx context.Context, rec record.Record) error {
	if s == nil || s.pool == nil {
		return errors.New("catalog store is not configured")
	}
	if rec.DocumentID == "" {
		return errors.New("document id is required")
	}
	authors := rec.Authors
	if authors == nil {
		authors = []string{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	document_id,
	checksum,
	title,
	authors,
	pub_year,
	language,
	scraped_at,
	site,
	download_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (document_id) DO UPDATE SET
	checksum = EXCLUDED.checksum,
	title = EXCLUDED.title,
	authors = EXCLUDED.authors,
	pub_year = EXCLUDED.pub_year,
	language = EXCLUDED.language,
	scraped_at = EXCLUDED.scraped_at,
	site = EXCLUDED.site,
	download_url = EXCLUDED.download_url`, s.table)

	args := []any{
		rec.DocumentID,
		rec.Checksum,
		rec.Title,
		authorsJSON,
		rec.PubYear,
		rec.Language,
		rec.ScrapedAt,
		rec.Site,
		rec.DownloadURL,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert catalog record: %w", err)
	}
	return nil
}
