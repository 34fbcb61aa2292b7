package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// LedgerRepository handles the processed_files table
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LastWatermark returns the newest created_date recorded for the agency, or
// nil when nothing was processed yet.
func (r *LedgerRepository) LastWatermark(ctx context.Context, agencyID int) (*time.Time, error) {
	query, args, err := r.db.builder.
		Select("created_date").
		From("processed_files").
		Where(sq.Eq{"id_agency": agencyID}).
		OrderBy("created_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build watermark query: %w", err)
	}

	var createdDate time.Time
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&createdDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	watermark := createdDate.UTC()
	return &watermark, nil
}

// IsProcessed checks the ledger by file name across all agencies
func (r *LedgerRepository) IsProcessed(ctx context.Context, fileName string) (bool, error) {
	query, args, err := r.db.builder.
		Select("1").
		From("processed_files").
		Where(sq.Eq{"file_name": fileName}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build ledger query: %w", err)
	}

	var found int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return true, nil
}

// MarkProcessed records a file outside of an article commit
func (r *LedgerRepository) MarkProcessed(ctx context.Context, fileName string, agencyID int, createdAt time.Time) error {
	return markProcessed(ctx, r.db.DB, r.db.builder, ProcessedFile{
		FileName:    fileName,
		AgencyID:    agencyID,
		CreatedDate: createdAt,
	})
}

func (r *LedgerRepository) GetProcessedCount(ctx context.Context, agencyID int) (int, error) {
	return count(ctx, r.db, "processed_files", sq.Eq{"id_agency": agencyID})
}

func markProcessed(ctx context.Context, ex execer, builder sq.StatementBuilderType, entry ProcessedFile) error {
	query, args, err := builder.
		Insert("processed_files").
		Columns("file_name", "id_agency", "created_date").
		Values(entry.FileName, entry.AgencyID, dbTime(entry.CreatedDate)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger insert: %w", err)
	}

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: processed file %s", ErrDuplicateKey, entry.FileName)
		}
		return fmt.Errorf("failed to mark file processed: %w", err)
	}
	return nil
}

// count returns COUNT(*) of table, restricted by where when it is not nil.
func count(ctx context.Context, db *DB, table string, where sq.Sqlizer) (int, error) {
	builder := db.builder.Select("COUNT(*)").From(table)
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
