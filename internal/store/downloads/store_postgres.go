package downloads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"pkgstats/internal/ingest"
)

// Schema is the DDL for the downloads table. Applied by EnsureSchema in tests
// and development bootstrap; production deployments own their migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS downloads (
    id                       UUID PRIMARY KEY,
    package_name             TEXT NOT NULL,
    package_version          TEXT NOT NULL,
    distribution_type        TEXT,
    python_type              TEXT,
    python_release           TEXT,
    python_version           TEXT,
    installer_type           TEXT,
    installer_version        TEXT,
    operating_system         TEXT,
    operating_system_version TEXT,
    download_time            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_package_name_idx ON downloads (package_name);
CREATE INDEX IF NOT EXISTS downloads_download_time_idx ON downloads (download_time);
`

const insertDownload = `
INSERT INTO downloads (
    id, package_name, package_version, distribution_type,
    python_type, python_release, python_version,
    installer_type, installer_version,
    operating_system, operating_system_version, download_time
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// PostgresStore persists download events in PostgreSQL. The underlying pool
// is safe for concurrent use by the dispatcher's workers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed download store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateDownload inserts one download event. Optional fields persist as NULL.
func (s *PostgresStore) CreateDownload(ctx context.Context, d ingest.Download) error {
	ua := d.UserAgent
	_, err := s.pool.Exec(ctx, insertDownload,
		uuid.New(),
		d.PackageName,
		d.PackageVersion,
		nullText(d.DistributionType),
		nullText(ua.PythonType),
		nullText(ua.PythonRelease),
		nullText(ua.PythonVersion),
		nullText(ua.InstallerType),
		nullText(ua.InstallerVersion),
		nullText(ua.OperatingSystem),
		nullText(ua.OperatingSystemVersion),
		d.DownloadTime,
	)
	if err != nil {
		return fmt.Errorf("create download: %w", err)
	}
	return nil
}

// EnsureSchema applies the downloads DDL.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure downloads schema: %w", err)
	}
	return nil
}

// Count reports the number of stored downloads. Used by health inspection and
// the integration suite.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return count, nil
}

// Ping verifies database connectivity for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func nullText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
