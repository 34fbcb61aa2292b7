package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/database"
	"github.com/oussamaboulmali/newswire/app/parser"
	"github.com/oussamaboulmali/newswire/app/source"
)

// ErrNoSourceAvailable is returned by Run when not a single selected agency
// could be listed.
var ErrNoSourceAvailable = errors.New("no agency source available")

var _ RunnerInterface = (*Runner)(nil)

// Runner executes one ingestion pass per selected agency, one agency after
// another. It has no retry queue: files left behind by a failed pass are
// picked up by the next invocation.
type Runner struct {
	configCache *agency.ConfigCache
	registry    *parser.Registry
	openSource  SourceOpener
	ledger      database.Ledger
	articleRepo database.ArticleStore
	agencyRepo  database.AgencyStore // optional
}

func NewRunner(configCache *agency.ConfigCache, registry *parser.Registry, openSource SourceOpener,
	ledger database.Ledger, articleRepo database.ArticleStore, agencyRepo database.AgencyStore) *Runner {
	return &Runner{
		configCache: configCache,
		registry:    registry,
		openSource:  openSource,
		ledger:      ledger,
		articleRepo: articleRepo,
		agencyRepo:  agencyRepo,
	}
}

type job struct {
	config *agency.Config
	parser parser.Parser
}

// Run ingests the named agencies, or every enabled agency when names is
// empty.
func (r *Runner) Run(ctx context.Context, agencyNames []string) error {
	runID := uuid.NewString()
	started := time.Now()

	configs, err := r.selectAgencies(agencyNames)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		slog.Warn("No agencies selected", "run_id", runID)
		return nil
	}

	// parsers are resolved once, before any source is touched
	jobs := make([]job, 0, len(configs))
	for _, c := range configs {
		p, err := r.registry.Resolve(c.Format, parser.Options{Encoding: c.Encoding})
		if err != nil {
			return fmt.Errorf("agency %s: %w", c.Name, err)
		}
		jobs = append(jobs, job{config: c, parser: p})
	}

	slog.Info("Run started", "run_id", runID, "agencies", len(jobs))

	var unavailable, failed int
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.agencyRepo != nil {
			syncTask := NewSyncAgencyConfigTask(j.config, r.agencyRepo)
			syncTask.Start()
			if err := syncTask.Execute(ctx); err != nil {
				slog.Warn("Failed to sync agency", "agency", j.config.Name, "error", err)
			}
		}

		err := r.ingest(ctx, j)
		switch {
		case err == nil:
		case errors.Is(err, source.ErrSourceUnavailable):
			unavailable++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			failed++
			slog.Error("Agency pass failed", "agency", j.config.Name, "error", err)
		}
	}

	slog.Info("Run completed",
		"run_id", runID,
		"duration", time.Since(started),
		"agencies", len(jobs),
		"unavailable", unavailable,
		"failed", failed)

	if unavailable == len(jobs) {
		return ErrNoSourceAvailable
	}
	return nil
}

func (r *Runner) ingest(ctx context.Context, j job) error {
	src, err := r.openSource(j.config.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	task := NewIngestAgencyTask(j.config, src, j.parser, r.ledger, r.articleRepo)
	task.Start()
	return task.Execute(ctx)
}

func (r *Runner) selectAgencies(names []string) ([]*agency.Config, error) {
	if len(names) == 0 {
		return r.configCache.GetEnabledConfigs(), nil
	}

	configs := make([]*agency.Config, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		c, err := r.configCache.GetConfig(name)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// RunTasks executes tasks in order and returns the errors of the ones that
// failed.
func RunTasks(ctx context.Context, tasks ...TaskInterface) error {
	var errs []error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		task.Start()
		if err := task.Execute(ctx); err != nil {
			slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", task.GetType(), err))
		}
	}
	return errors.Join(errs...)
}
