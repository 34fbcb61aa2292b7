package database

import (
	"time"
)

// Article is the stored canonical article.
type Article struct {
	ID          int64
	Title       string
	Slug        string
	FullText    string
	FileName    string
	Label       *string
	CreatedDate time.Time // source modification time of the file, UTC
	AgencyID    int
}

// ProcessedFile is one ledger entry.
type ProcessedFile struct {
	FileName    string
	AgencyID    int
	CreatedDate time.Time
}

type Agency struct {
	ID         int
	Name       string
	Format     string
	SourceKind string
	Enabled    bool
	UpdatedAt  time.Time
}

// AgencyStats is an agency row together with what was ingested for it.
type AgencyStats struct {
	Agency
	ArticleCount   int
	ProcessedCount int
	Watermark      *time.Time
}
