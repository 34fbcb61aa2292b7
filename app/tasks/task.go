package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeIngestAgency     TaskType = "ingest_agency"
	TaskTypeSyncAgencyConfig TaskType = "sync_agency_config"
	TaskTypeCloseSessions    TaskType = "close_sessions"
	TaskTypeUnblockUsers     TaskType = "unblock_users"
	TaskTypePruneRetention   TaskType = "prune_retention"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetAgencyName() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	AgencyName string
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetAgencyName() string {
	return t.AgencyName
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, agencyName string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		AgencyName: agencyName,
	}
}
