// Package universe manages the persistent catalogue of known securities and
// resolves the names a research request arrives with into full identities.
package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// SecurityRepository handles security database operations against universe.db.
type SecurityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// securitiesColumns lists the securities table columns explicitly.
// Used to avoid SELECT * which can break when the schema changes.
const securitiesColumns = `symbol, name, exchange, currency, sector, active, created_at, updated_at`

// NewSecurityRepository creates a new security repository.
func NewSecurityRepository(db *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		db:  db,
		log: log.With().Str("repo", "security").Logger(),
	}
}

// EnsureSchema creates the securities table if it does not exist.
func (r *SecurityRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS securities (
			symbol     TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			exchange   TEXT NOT NULL DEFAULT '',
			currency   TEXT NOT NULL DEFAULT '',
			sector     TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create securities table: %w", err)
	}
	return nil
}

// GetBySymbol returns a security by symbol, or nil when not found.
func (r *SecurityRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.SecurityIdentity, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE symbol = ?"

	row := r.db.QueryRowContext(ctx, query, normalizeSymbol(symbol))
	identity, err := scanSecurity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security by symbol: %w", err)
	}
	return identity, nil
}

// Upsert inserts or refreshes a security record.
func (r *SecurityRepository) Upsert(ctx context.Context, identity domain.SecurityIdentity) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO securities (symbol, name, exchange, currency, sector, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			currency = excluded.currency,
			sector = excluded.sector,
			updated_at = excluded.updated_at`,
		normalizeSymbol(identity.Symbol), identity.Name, identity.Exchange,
		identity.Currency, identity.Sector, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert security: %w", err)
	}
	return nil
}

// ListActive returns all active securities ordered by symbol.
func (r *SecurityRepository) ListActive(ctx context.Context) ([]domain.SecurityIdentity, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE active = 1 ORDER BY symbol"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list securities: %w", err)
	}
	defer rows.Close()

	var securities []domain.SecurityIdentity
	for rows.Next() {
		identity, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, *identity)
	}
	return securities, rows.Err()
}

// SetActive flags a security in or out of the active universe.
func (r *SecurityRepository) SetActive(ctx context.Context, symbol string, active bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"UPDATE securities SET active = ?, updated_at = ? WHERE symbol = ?",
		boolToInt(active), now, normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to update security active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("security %s not found", symbol)
	}
	return nil
}

// Count returns the number of securities, active and inactive.
func (r *SecurityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM securities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count securities: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSecurity(row rowScanner) (*domain.SecurityIdentity, error) {
	var identity domain.SecurityIdentity
	var active int
	var createdAt, updatedAt string
	err := row.Scan(&identity.Symbol, &identity.Name, &identity.Exchange,
		&identity.Currency, &identity.Sector, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
