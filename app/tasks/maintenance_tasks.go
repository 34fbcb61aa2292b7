package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oussamaboulmali/newswire/app/database"
)

// BlockCodeLoginAttempts marks users blocked after too many failed logins.
const BlockCodeLoginAttempts = 210

// CloseSessionsTask deactivates sessions older than the session TTL.
type CloseSessionsTask struct {
	Task
	ttl   time.Duration
	repo  database.MaintenanceStore
	clock func() time.Time
}

func NewCloseSessionsTask(ttl time.Duration, repo database.MaintenanceStore) *CloseSessionsTask {
	return &CloseSessionsTask{
		Task:  NewTask(TaskTypeCloseSessions, ""),
		ttl:   ttl,
		repo:  repo,
		clock: time.Now,
	}
}

func (t *CloseSessionsTask) Execute(ctx context.Context) error {
	now := t.clock().UTC()

	closed, err := t.repo.CloseExpiredSessions(ctx, now.Add(-t.ttl), now)
	if err != nil {
		return fmt.Errorf("failed to close expired sessions: %w", err)
	}

	slog.Info("Task completed",
		"type", "CloseSessions",
		"duration", t.GetDuration(),
		"closed", closed)
	return nil
}

// UnblockUsersTask lifts login-attempt blocks once the block duration passed.
type UnblockUsersTask struct {
	Task
	blockDuration time.Duration
	repo          database.MaintenanceStore
	clock         func() time.Time
}

func NewUnblockUsersTask(blockDuration time.Duration, repo database.MaintenanceStore) *UnblockUsersTask {
	return &UnblockUsersTask{
		Task:          NewTask(TaskTypeUnblockUsers, ""),
		blockDuration: blockDuration,
		repo:          repo,
		clock:         time.Now,
	}
}

func (t *UnblockUsersTask) Execute(ctx context.Context) error {
	cutoff := t.clock().UTC().Add(-t.blockDuration)

	unblocked, err := t.repo.UnblockUsers(ctx, cutoff, BlockCodeLoginAttempts)
	if err != nil {
		return fmt.Errorf("failed to unblock users: %w", err)
	}

	slog.Info("Task completed",
		"type", "UnblockUsers",
		"duration", t.GetDuration(),
		"unblocked", unblocked)
	return nil
}

// PruneRetentionTask deletes articles and ledger rows older than the
// retention window, and logged out sessions when pruneSessions is set.
type PruneRetentionTask struct {
	Task
	retention     time.Duration
	pruneSessions bool
	repo          database.MaintenanceStore
	clock         func() time.Time
}

func NewPruneRetentionTask(retention time.Duration, pruneSessions bool, repo database.MaintenanceStore) *PruneRetentionTask {
	return &PruneRetentionTask{
		Task:          NewTask(TaskTypePruneRetention, ""),
		retention:     retention,
		pruneSessions: pruneSessions,
		repo:          repo,
		clock:         time.Now,
	}
}

func (t *PruneRetentionTask) Execute(ctx context.Context) error {
	cutoff := t.clock().UTC().Add(-t.retention)

	articles, err := t.repo.DeleteArticlesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune articles: %w", err)
	}

	processed, err := t.repo.DeleteProcessedFilesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune processed files: %w", err)
	}

	var sessions int64
	if t.pruneSessions {
		sessions, err = t.repo.DeleteSessionsLoggedOutBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune sessions: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", "PruneRetention",
		"duration", t.GetDuration(),
		"cutoff", cutoff,
		"articles", articles,
		"processed_files", processed,
		"sessions", sessions)
	return nil
}
