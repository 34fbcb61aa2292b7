package database

import (
	"context"
	"time"
)

type Ledger interface {
	LastWatermark(ctx context.Context, agencyID int) (*time.Time, error)
	IsProcessed(ctx context.Context, fileName string) (bool, error)
	MarkProcessed(ctx context.Context, fileName string, agencyID int, createdAt time.Time) error
	GetProcessedCount(ctx context.Context, agencyID int) (int, error)
}

type ArticleStore interface {
	// CommitArticle stores the article and its ledger entry as one unit.
	CommitArticle(ctx context.Context, article Article) error

	GetRecentArticles(ctx context.Context, agencyID int, limit int) ([]Article, error)
	GetArticleCount(ctx context.Context, agencyID int) (int, error)
	GetTotals(ctx context.Context) (articles int, processed int, err error)
}

type AgencyStore interface {
	UpsertAgency(ctx context.Context, agency Agency) (bool, error)
	GetAgencyStats(ctx context.Context) ([]AgencyStats, error)
}

type MaintenanceStore interface {
	CloseExpiredSessions(ctx context.Context, loginBefore, now time.Time) (int64, error)
	UnblockUsers(ctx context.Context, blockedBefore time.Time, blockCode int) (int64, error)
	DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteProcessedFilesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSessionsLoggedOutBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ Ledger           = (*LedgerRepository)(nil)
	_ ArticleStore     = (*ArticleRepository)(nil)
	_ AgencyStore      = (*AgencyRepository)(nil)
	_ MaintenanceStore = (*MaintenanceRepository)(nil)
)
