package tasks

import (
	"context"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/source"
)

// SourceOpener builds the connector described by an agency source block.
// source.New is the production implementation.
type SourceOpener func(cfg agency.SourceConfig) (source.Source, error)

// RunnerInterface runs one ingestion pass over the selected agencies.
// Example usage:
//
//	runner := NewRunner(configCache, parser.DefaultRegistry(), source.New, ledger, articles, agencies)
//	if err := runner.Run(ctx, []string{"ansa_fr"}); errors.Is(err, ErrNoSourceAvailable) {
//		os.Exit(1)
//	}
type RunnerInterface interface {
	Run(ctx context.Context, agencyNames []string) error
}
