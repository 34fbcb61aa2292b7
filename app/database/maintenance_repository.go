package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	UserStateActive  = 1
	UserStateBlocked = 2
)

// MaintenanceRepository runs the housekeeping statements on sessions, users
// and old ingestion rows. Cutoffs are computed by the caller.
type MaintenanceRepository struct {
	db *DB
}

func NewMaintenanceRepository(db *DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// CloseExpiredSessions deactivates sessions opened before loginBefore
func (r *MaintenanceRepository) CloseExpiredSessions(ctx context.Context, loginBefore, now time.Time) (int64, error) {
	return r.exec(ctx, "close sessions", r.db.builder.
		Update("sessions").
		Set("is_active", false).
		Set("logout_date", dbTime(now)).
		Where(sq.Eq{"is_active": true}).
		Where(sq.Lt{"login_date": dbTime(loginBefore)}))
}

// UnblockUsers reactivates users blocked with blockCode at or before
// blockedBefore
func (r *MaintenanceRepository) UnblockUsers(ctx context.Context, blockedBefore time.Time, blockCode int) (int64, error) {
	return r.exec(ctx, "unblock users", r.db.builder.
		Update("users").
		Set("state", UserStateActive).
		Set("login_attempts", 0).
		Where(sq.Eq{"state": UserStateBlocked, "block_code": blockCode}).
		Where(sq.LtOrEq{"blocked_date": dbTime(blockedBefore)}))
}

func (r *MaintenanceRepository) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "delete articles", r.db.builder.
		Delete("articles").
		Where(sq.Lt{"created_date": dbTime(cutoff)}))
}

// DeleteProcessedFilesBefore keeps the newest entry of every agency, even
// past the cutoff, so the agency watermark survives pruning.
func (r *MaintenanceRepository) DeleteProcessedFilesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "delete processed files", r.db.builder.
		Delete("processed_files").
		Where(sq.And{
			sq.Lt{"created_date": dbTime(cutoff)},
			sq.Expr("EXISTS (SELECT 1 FROM processed_files newer" +
				" WHERE newer.id_agency = processed_files.id_agency" +
				" AND newer.created_date > processed_files.created_date)"),
		}))
}

func (r *MaintenanceRepository) DeleteSessionsLoggedOutBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "delete sessions", r.db.builder.
		Delete("sessions").
		Where(sq.Lt{"logout_date": dbTime(cutoff)}))
}

func (r *MaintenanceRepository) exec(ctx context.Context, what string, stmt sq.Sqlizer) (int64, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build %s statement: %w", what, err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}
