package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/database"
)

type SyncAgencyConfigTask struct {
	Task
	AgencyConfig *agency.Config
	agencyRepo   database.AgencyStore
}

func NewSyncAgencyConfigTask(agencyConfig *agency.Config, agencyRepo database.AgencyStore) *SyncAgencyConfigTask {
	return &SyncAgencyConfigTask{
		Task:         NewTask(TaskTypeSyncAgencyConfig, agencyConfig.Name),
		AgencyConfig: agencyConfig,
		agencyRepo:   agencyRepo,
	}
}

func (t *SyncAgencyConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	changed, err := t.agencyRepo.UpsertAgency(ctx, database.Agency{
		ID:         t.AgencyConfig.ID,
		Name:       t.AgencyConfig.Name,
		Format:     t.AgencyConfig.Format,
		SourceKind: t.AgencyConfig.Source.Kind,
		Enabled:    t.AgencyConfig.Enabled,
	})
	if err != nil {
		slog.Error("Task failed", "type", "SyncAgencyConfig", "agency", t.AgencyName, "error", err)
		return fmt.Errorf("failed to sync agency config to database: %w", err)
	}

	slog.Debug("Task completed",
		"type", "SyncAgencyConfig",
		"agency", t.AgencyName,
		"changed", changed,
		"duration", t.GetDuration())

	return nil
}
