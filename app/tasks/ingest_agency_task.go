package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/database"
	"github.com/oussamaboulmali/newswire/app/parser"
	"github.com/oussamaboulmali/newswire/app/source"
)

// FileState is the position of one candidate file in an ingestion pass.
type FileState string

const (
	StateListed            FileState = "listed"
	StateWatermarkFiltered FileState = "watermark_filtered"
	StateLedgerFiltered    FileState = "ledger_filtered"
	StateFetched           FileState = "fetched"
	StateParsed            FileState = "parsed"

	// terminal states
	StateCommitted             FileState = "committed"
	StateSkippedNotProcessable FileState = "skipped_not_processable"
	StateSkippedStale          FileState = "skipped_stale"
	StateSkippedDuplicate      FileState = "skipped_duplicate"
	StateSkippedParseFailed    FileState = "skipped_parse_failed"
	StateFailed                FileState = "failed"
)

// IngestSummary is the outcome of one agency pass.
type IngestSummary struct {
	Listed          int
	States          map[FileState]int
	WatermarkBefore *time.Time
	WatermarkAfter  *time.Time
}

type IngestAgencyTask struct {
	Task
	AgencyConfig *agency.Config
	Summary      IngestSummary
	source       source.Source
	parser       parser.Parser
	ledger       database.Ledger
	articleRepo  database.ArticleStore
}

func NewIngestAgencyTask(agencyConfig *agency.Config, src source.Source, p parser.Parser,
	ledger database.Ledger, articleRepo database.ArticleStore) *IngestAgencyTask {
	return &IngestAgencyTask{
		Task:         NewTask(TaskTypeIngestAgency, agencyConfig.Name),
		AgencyConfig: agencyConfig,
		Summary:      IngestSummary{States: map[FileState]int{}},
		source:       src,
		parser:       p,
		ledger:       ledger,
		articleRepo:  articleRepo,
	}
}

// Execute runs one pass: list, filter by extension, watermark and ledger,
// then fetch, parse and commit each remaining file. Per-file problems are
// logged and counted; only an unavailable source, a context cancellation or
// an unreadable watermark end the pass with an error.
func (t *IngestAgencyTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	defer func() {
		if err := t.source.Close(); err != nil {
			slog.Debug("Failed to close source", "agency", t.AgencyName, "error", err)
		}
	}()

	candidates, err := t.source.List(ctx)
	if err != nil {
		slog.Warn("Source unavailable, skipping agency", "agency", t.AgencyName, "error", err)
		if !errors.Is(err, source.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", source.ErrSourceUnavailable, err)
		}
		return err
	}
	t.Summary.Listed = len(candidates)

	watermark, err := t.ledger.LastWatermark(ctx, t.AgencyConfig.ID)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	t.Summary.WatermarkBefore = watermark

	extensions := t.AgencyConfig.Extensions
	if len(extensions) == 0 {
		extensions = t.parser.Extensions()
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			t.logSummary()
			return err
		}
		state := t.processFile(ctx, candidate, watermark, extensions)
		t.Summary.States[state]++
	}

	after, err := t.ledger.LastWatermark(ctx, t.AgencyConfig.ID)
	if err != nil {
		slog.Warn("Failed to read watermark after pass", "agency", t.AgencyName, "error", err)
		after = watermark
	}
	t.Summary.WatermarkAfter = after

	t.logSummary()
	return nil
}

func (t *IngestAgencyTask) processFile(ctx context.Context, c source.Candidate, watermark *time.Time, extensions []string) FileState {
	logCtx := slog.With("agency", t.AgencyName, "file", c.Name)
	logCtx.Debug("File state", "state", StateListed, "modified_at", c.ModifiedAt)

	if !hasExtension(c.Name, extensions) {
		logCtx.Debug("File not processable", "state", StateSkippedNotProcessable)
		return StateSkippedNotProcessable
	}

	if watermark != nil && !c.ModifiedAt.After(*watermark) {
		return StateSkippedStale
	}
	logCtx.Debug("File state", "state", StateWatermarkFiltered)

	processed, err := t.ledger.IsProcessed(ctx, c.Name)
	if err != nil {
		logCtx.Error("Failed to check ledger", "state", StateFailed, "error", err)
		return StateFailed
	}
	if processed {
		logCtx.Debug("File already processed", "state", StateSkippedDuplicate)
		return StateSkippedDuplicate
	}
	logCtx.Debug("File state", "state", StateLedgerFiltered)

	raw, err := c.Fetch(ctx)
	if err != nil {
		logCtx.Warn("Failed to fetch file", "state", StateFailed, "error", err)
		return StateFailed
	}
	logCtx.Debug("File state", "state", StateFetched, "bytes", len(raw))

	article, err := t.parser.Parse(raw, c.Name)
	if err != nil {
		logCtx.Warn("Failed to parse file", "state", StateSkippedParseFailed, "error", err)
		return StateSkippedParseFailed
	}
	logCtx.Debug("File state", "state", StateParsed)

	err = t.articleRepo.CommitArticle(ctx, database.Article{
		Title:       article.Title,
		Slug:        article.Slug,
		FullText:    article.FullText,
		FileName:    c.Name,
		Label:       article.Label,
		CreatedDate: c.ModifiedAt,
		AgencyID:    t.AgencyConfig.ID,
	})
	if errors.Is(err, database.ErrDuplicateKey) {
		logCtx.Info("File committed by another run", "state", StateSkippedDuplicate)
		return StateSkippedDuplicate
	}
	if err != nil {
		logCtx.Error("Failed to store article", "state", StateFailed, "error", err)
		return StateFailed
	}

	logCtx.Info("Article stored", "title", article.Title)
	return StateCommitted
}

func (t *IngestAgencyTask) logSummary() {
	s := t.Summary
	slog.Info("Task completed",
		"type", "IngestAgency",
		"agency", t.AgencyName,
		"duration", t.GetDuration(),
		"listed", s.Listed,
		"committed", s.States[StateCommitted],
		"not_processable", s.States[StateSkippedNotProcessable],
		"stale", s.States[StateSkippedStale],
		"duplicates", s.States[StateSkippedDuplicate],
		"parse_failed", s.States[StateSkippedParseFailed],
		"failed", s.States[StateFailed],
		"watermark_before", formatWatermark(s.WatermarkBefore),
		"watermark_after", formatWatermark(s.WatermarkAfter))
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func formatWatermark(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339Nano)
}
