package api

import (
	"context"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/database"
	"github.com/oussamaboulmali/newswire/app/feed"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
)

type GeneratorInterface interface {
	Run(agency database.Agency, articles []database.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db          Pinger
	ledger      database.Ledger
	articleRepo database.ArticleStore
	agencyRepo  database.AgencyStore
	generator   GeneratorInterface
	configCache *agency.ConfigCache
	version     string
}

type ArticleResponse struct {
	ID          int64   `json:"id"`
	FileName    string  `json:"file_name"`
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Label       *string `json:"label"`
	FullText    string  `json:"full_text"`
	CreatedDate string  `json:"created_date"`
}

type AgencyResponse struct {
	Name         string  `json:"name"`
	ID           int     `json:"id"`
	Format       string  `json:"format"`
	Source       string  `json:"source"`
	Enabled      bool    `json:"enabled"`
	ArticleCount int     `json:"article_count"`
	Processed    int     `json:"processed_files"`
	Watermark    *string `json:"watermark"`
}
