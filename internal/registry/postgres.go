package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Pool is the slice of pgxpool.Pool the Postgres source needs.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads registry_records rows. Identifiers are normalized on
// both sides of the comparison, so stored values may keep their original spacing.
type PostgresSource struct {
	name   Name
	pool   Pool
	logger *slog.Logger
}

func NewPostgresSource(name Name, pool Pool, logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSource{name: name, pool: pool, logger: logger}
}

const recordColumns = `plate_number, policy_number, engine_number, chassis_number, status, owner_name, provider,
	COALESCE(to_char(expires_on, 'YYYY-MM-DD'), '')`

const problemQuery = `SELECT ` + recordColumns + `
FROM registry_records
WHERE registry = $1 AND kind = 'problem'
  AND (($2 <> '' AND upper(regexp_replace(plate_number, '\s+', ' ', 'g')) = $2)
    OR ($3 <> '' AND upper(regexp_replace(engine_number, '\s+', '', 'g')) = $3)
    OR ($4 <> '' AND upper(regexp_replace(chassis_number, '\s+', '', 'g')) = $4))
ORDER BY updated_at DESC
LIMIT 1`

const validQuery = `SELECT ` + recordColumns + `
FROM registry_records
WHERE registry = $1 AND kind = 'valid'
  AND upper(regexp_replace(plate_number, '\s+', ' ', 'g')) = $2
ORDER BY expires_on DESC NULLS LAST
LIMIT 1`

func (s *PostgresSource) Find(ctx context.Context, c Claim) (Hits, error) {
	var h Hits
	problem, err := s.queryOne(ctx, problemQuery, string(s.name), c.PlateNumber, c.EngineNumber, c.ChassisNumber)
	if err != nil {
		return h, fmt.Errorf("query problem records: %w", err)
	}
	h.Problem = problem

	if c.PlateNumber == "" {
		return h, nil
	}
	valid, err := s.queryOne(ctx, validQuery, string(s.name), c.PlateNumber)
	if err != nil {
		return h, fmt.Errorf("query valid records: %w", err)
	}
	h.Valid = valid
	return h, nil
}

func (s *PostgresSource) queryOne(ctx context.Context, sql string, args ...any) (*Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, sql, args...).Scan(
		&r.PlateNumber, &r.PolicyNumber, &r.EngineNumber, &r.ChassisNumber,
		&r.Status, &r.OwnerName, &r.Provider, &r.ExpiresOn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("registry.postgres.query_failed", "registry", s.name, "error", err)
		return nil, err
	}
	return &r, nil
}
