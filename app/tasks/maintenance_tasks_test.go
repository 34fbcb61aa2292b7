package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockMaintenanceStore struct {
	loginBefore   time.Time
	now           time.Time
	blockedBefore time.Time
	blockCode     int
	cutoffs       []time.Time
	sessionsPrune bool
	err           error
}

func (m *mockMaintenanceStore) CloseExpiredSessions(ctx context.Context, loginBefore, now time.Time) (int64, error) {
	m.loginBefore, m.now = loginBefore, now
	return 2, m.err
}

func (m *mockMaintenanceStore) UnblockUsers(ctx context.Context, blockedBefore time.Time, blockCode int) (int64, error) {
	m.blockedBefore, m.blockCode = blockedBefore, blockCode
	return 1, m.err
}

func (m *mockMaintenanceStore) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	return 5, m.err
}

func (m *mockMaintenanceStore) DeleteProcessedFilesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	return 5, m.err
}

func (m *mockMaintenanceStore) DeleteSessionsLoggedOutBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.sessionsPrune = true
	return 3, m.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func TestCloseSessionsTask(t *testing.T) {
	repo := &mockMaintenanceStore{}
	task := NewCloseSessionsTask(3*time.Hour, repo)
	task.clock = fixedClock

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !repo.loginBefore.Equal(fixedNow.Add(-3 * time.Hour)) {
		t.Errorf("Expected login cutoff 09:00, got %v", repo.loginBefore)
	}
	if !repo.now.Equal(fixedNow) {
		t.Errorf("Expected logout date %v, got %v", fixedNow, repo.now)
	}
}

func TestUnblockUsersTask(t *testing.T) {
	repo := &mockMaintenanceStore{}
	task := NewUnblockUsersTask(80*time.Minute, repo)
	task.clock = fixedClock

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !repo.blockedBefore.Equal(fixedNow.Add(-80 * time.Minute)) {
		t.Errorf("Expected block cutoff 10:40, got %v", repo.blockedBefore)
	}
	if repo.blockCode != BlockCodeLoginAttempts {
		t.Errorf("Expected block code %d, got %d", BlockCodeLoginAttempts, repo.blockCode)
	}
}

func TestPruneRetentionTask(t *testing.T) {
	repo := &mockMaintenanceStore{}
	task := NewPruneRetentionTask(720*time.Hour, false, repo)
	task.clock = fixedClock

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(repo.cutoffs) != 2 {
		t.Fatalf("Expected 2 delete statements, got %d", len(repo.cutoffs))
	}
	expected := fixedNow.Add(-720 * time.Hour)
	for _, cutoff := range repo.cutoffs {
		if !cutoff.Equal(expected) {
			t.Errorf("Expected cutoff %v, got %v", expected, cutoff)
		}
	}
	if repo.sessionsPrune {
		t.Error("Expected sessions to be kept without prune flag")
	}

	repo = &mockMaintenanceStore{}
	task = NewPruneRetentionTask(720*time.Hour, true, repo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !repo.sessionsPrune {
		t.Error("Expected sessions to be pruned with prune flag")
	}
}

func TestRunTasks_CollectsFailures(t *testing.T) {
	failing := &mockMaintenanceStore{err: errors.New("database is locked")}
	ok := &mockMaintenanceStore{}

	err := RunTasks(context.Background(),
		NewCloseSessionsTask(time.Hour, failing),
		NewUnblockUsersTask(time.Hour, ok),
		NewPruneRetentionTask(time.Hour, false, failing),
	)
	if err == nil {
		t.Fatal("Expected error from failing tasks")
	}
	if !strings.Contains(err.Error(), string(TaskTypeCloseSessions)) || !strings.Contains(err.Error(), string(TaskTypePruneRetention)) {
		t.Errorf("Expected both failed task types in error, got: %v", err)
	}
	if strings.Contains(err.Error(), string(TaskTypeUnblockUsers)) {
		t.Errorf("Expected successful task to be absent from error, got: %v", err)
	}
	if ok.blockCode != BlockCodeLoginAttempts {
		t.Error("Expected later tasks to run after a failure")
	}
}
