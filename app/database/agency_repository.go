package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// AgencyRepository keeps the agencies table in line with the YAML catalogue
type AgencyRepository struct {
	db *DB
}

func NewAgencyRepository(db *DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// UpsertAgency inserts or updates an agency row and reports whether anything
// changed.
func (r *AgencyRepository) UpsertAgency(ctx context.Context, agency Agency) (bool, error) {
	existing, err := r.getAgency(ctx, agency.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing agency: %w", err)
	}

	now := dbTime(time.Now())

	var query string
	var args []any
	switch {
	case existing == nil:
		query, args, err = r.db.builder.
			Insert("agencies").
			Columns("id", "name", "format", "source_kind", "enabled", "updated_at").
			Values(agency.ID, agency.Name, agency.Format, agency.SourceKind, agency.Enabled, now).
			ToSql()
	case existing.Name != agency.Name || existing.Format != agency.Format ||
		existing.SourceKind != agency.SourceKind || existing.Enabled != agency.Enabled:
		query, args, err = r.db.builder.
			Update("agencies").
			Set("name", agency.Name).
			Set("format", agency.Format).
			Set("source_kind", agency.SourceKind).
			Set("enabled", agency.Enabled).
			Set("updated_at", now).
			Where(sq.Eq{"id": agency.ID}).
			ToSql()
	default:
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to build agency upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to upsert agency: %w", err)
	}
	return true, nil
}

func (r *AgencyRepository) getAgency(ctx context.Context, id int) (*Agency, error) {
	query, args, err := r.db.builder.
		Select("id", "name", "format", "source_kind", "enabled", "updated_at").
		From("agencies").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var a Agency
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&a.ID, &a.Name, &a.Format, &a.SourceKind, &a.Enabled, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgencyStats lists known agencies with their article and ledger counts
func (r *AgencyRepository) GetAgencyStats(ctx context.Context) ([]AgencyStats, error) {
	query, args, err := r.db.builder.
		Select("id", "name", "format", "source_kind", "enabled", "updated_at").
		From("agencies").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build agencies query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get agencies: %w", err)
	}
	defer rows.Close()

	var stats []AgencyStats
	for rows.Next() {
		var s AgencyStats
		if err := rows.Scan(&s.ID, &s.Name, &s.Format, &s.SourceKind, &s.Enabled, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agency row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agency rows: %w", err)
	}

	ledger := NewLedgerRepository(r.db)
	for i := range stats {
		s := &stats[i]
		if s.ArticleCount, err = count(ctx, r.db, "articles", sq.Eq{"id_agency": s.ID}); err != nil {
			return nil, err
		}
		if s.ProcessedCount, err = ledger.GetProcessedCount(ctx, s.ID); err != nil {
			return nil, err
		}
		if s.Watermark, err = ledger.LastWatermark(ctx, s.ID); err != nil {
			return nil, err
		}
	}

	return stats, nil
}
