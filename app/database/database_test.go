package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "newswire.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testArticle(fileName string, agencyID int, createdAt time.Time) Article {
	label := "42"
	return Article{
		Title:       "Title of " + fileName,
		Slug:        " ",
		FullText:    "Body of " + fileName,
		FileName:    fileName,
		Label:       &label,
		CreatedDate: createdAt,
		AgencyID:    agencyID,
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second migration run to succeed, got: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
	if dirty {
		t.Error("Expected clean migration state")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestLedger_Watermark(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedgerRepository(db)

	watermark, err := ledger.LastWatermark(ctx, 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if watermark != nil {
		t.Errorf("Expected nil watermark for empty ledger, got %v", watermark)
	}

	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 1, 10, 5, 0, 123456789, time.UTC)

	for _, entry := range []ProcessedFile{
		{FileName: "a.xml", AgencyID: 1, CreatedDate: t1},
		{FileName: "b.xml", AgencyID: 1, CreatedDate: t2},
		{FileName: "c.xml", AgencyID: 2, CreatedDate: t2.Add(time.Hour)},
	} {
		if err := ledger.MarkProcessed(ctx, entry.FileName, entry.AgencyID, entry.CreatedDate); err != nil {
			t.Fatalf("Failed to mark %s: %v", entry.FileName, err)
		}
	}

	watermark, err = ledger.LastWatermark(ctx, 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	expected := t2.Truncate(time.Microsecond)
	if watermark == nil || !watermark.Equal(expected) {
		t.Errorf("Expected watermark %v, got %v", expected, watermark)
	}
	if watermark != nil && watermark.Location() != time.UTC {
		t.Errorf("Expected UTC watermark, got %v", watermark.Location())
	}
}

func TestLedger_IsProcessedIsGlobal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedgerRepository(db)

	if err := ledger.MarkProcessed(ctx, "shared.xml", 1, time.Now()); err != nil {
		t.Fatalf("Failed to mark file: %v", err)
	}

	processed, err := ledger.IsProcessed(ctx, "shared.xml")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !processed {
		t.Error("Expected shared.xml to be processed")
	}

	err = ledger.MarkProcessed(ctx, "shared.xml", 2, time.Now())
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for another agency, got %v", err)
	}

	processed, err = ledger.IsProcessed(ctx, "other.xml")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if processed {
		t.Error("Expected other.xml not to be processed")
	}
}

func TestCommitArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	articles := NewArticleRepository(db)
	ledger := NewLedgerRepository(db)

	createdAt := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	if err := articles.CommitArticle(ctx, testArticle("x_123.xml", 22, createdAt)); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}

	processed, err := ledger.IsProcessed(ctx, "x_123.xml")
	if err != nil || !processed {
		t.Errorf("Expected ledger entry after commit, got %v (err %v)", processed, err)
	}

	stored, err := articles.GetRecentArticles(ctx, 22, 10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected 1 article, got %d", len(stored))
	}
	if !stored[0].CreatedDate.Equal(createdAt) {
		t.Errorf("Expected created date %v, got %v", createdAt, stored[0].CreatedDate)
	}
	if stored[0].Label == nil || *stored[0].Label != "42" {
		t.Errorf("Expected label 42, got %v", stored[0].Label)
	}
}

func TestCommitArticle_SecondRunLoses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	articles := NewArticleRepository(db)

	article := testArticle("x_123.xml", 22, time.Now())
	if err := articles.CommitArticle(ctx, article); err != nil {
		t.Fatalf("Expected first commit to succeed, got: %v", err)
	}

	err := articles.CommitArticle(ctx, article)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	total, processed, err := articles.GetTotals(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if total != 1 || processed != 1 {
		t.Errorf("Expected one article and one ledger row, got %d and %d", total, processed)
	}
}

func TestCommitArticle_LedgerConflictRollsBackArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	articles := NewArticleRepository(db)
	ledger := NewLedgerRepository(db)

	if err := ledger.MarkProcessed(ctx, "late.xml", 1, time.Now()); err != nil {
		t.Fatalf("Failed to mark file: %v", err)
	}

	err := articles.CommitArticle(ctx, testArticle("late.xml", 1, time.Now()))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	count, err := articles.GetArticleCount(ctx, 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected article insert to be rolled back, got %d articles", count)
	}
}

func TestCommitArticle_NullLabel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	articles := NewArticleRepository(db)

	article := testArticle("mena.txt", 9, time.Now())
	article.Label = nil
	if err := articles.CommitArticle(ctx, article); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}

	stored, err := articles.GetRecentArticles(ctx, 9, 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stored) != 1 || stored[0].Label != nil {
		t.Errorf("Expected one article with nil label, got %+v", stored)
	}
}

func TestGetRecentArticles_Order(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	articles := NewArticleRepository(db)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.xml", "new.xml", "mid.xml"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		if err := articles.CommitArticle(ctx, testArticle(name, 5, base.Add(offsets[i]))); err != nil {
			t.Fatalf("Failed to commit %s: %v", name, err)
		}
	}

	stored, err := articles.GetRecentArticles(ctx, 5, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(stored))
	}
	if stored[0].FileName != "new.xml" || stored[1].FileName != "mid.xml" {
		t.Errorf("Expected new.xml then mid.xml, got %s then %s", stored[0].FileName, stored[1].FileName)
	}
}

func TestAgencyRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	agencies := NewAgencyRepository(db)

	agency := Agency{ID: 22, Name: "ansa_ar", Format: "nitf-xml", SourceKind: "local", Enabled: true}

	changed, err := agencies.UpsertAgency(ctx, agency)
	if err != nil || !changed {
		t.Fatalf("Expected insert to report a change, got %v (err %v)", changed, err)
	}

	changed, err = agencies.UpsertAgency(ctx, agency)
	if err != nil || changed {
		t.Errorf("Expected unchanged agency, got %v (err %v)", changed, err)
	}

	agency.Enabled = false
	changed, err = agencies.UpsertAgency(ctx, agency)
	if err != nil || !changed {
		t.Errorf("Expected update to report a change, got %v (err %v)", changed, err)
	}

	createdAt := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)
	if err := NewArticleRepository(db).CommitArticle(ctx, testArticle("a.xml", 22, createdAt)); err != nil {
		t.Fatalf("Failed to commit article: %v", err)
	}

	stats, err := agencies.GetAgencyStats(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Expected 1 agency, got %d", len(stats))
	}
	if stats[0].Enabled {
		t.Error("Expected agency to be disabled")
	}
	if stats[0].ArticleCount != 1 || stats[0].ProcessedCount != 1 {
		t.Errorf("Expected 1 article and 1 processed file, got %d and %d", stats[0].ArticleCount, stats[0].ProcessedCount)
	}
	if stats[0].Watermark == nil || !stats[0].Watermark.Equal(createdAt) {
		t.Errorf("Expected watermark %v, got %v", createdAt, stats[0].Watermark)
	}
}

func TestMaintenance_Sessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMaintenanceRepository(db)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, login := range []time.Time{now.Add(-4 * time.Hour), now.Add(-time.Hour)} {
		_, err := db.Exec(`INSERT INTO sessions (id_user, is_active, login_date) VALUES (?, ?, ?)`, 1, true, dbTime(login))
		if err != nil {
			t.Fatalf("Failed to insert session: %v", err)
		}
	}

	closed, err := repo.CloseExpiredSessions(ctx, now.Add(-3*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if closed != 1 {
		t.Errorf("Expected 1 closed session, got %d", closed)
	}

	var active int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE is_active = ?`, true).Scan(&active); err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Errorf("Expected 1 active session, got %d", active)
	}

	deleted, err := repo.DeleteSessionsLoggedOutBefore(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted session, got %d", deleted)
	}
}

func TestMaintenance_UnblockUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMaintenanceRepository(db)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	users := []struct {
		name      string
		blockCode int
		blockedAt time.Time
	}{
		{"expired", 210, now.Add(-2 * time.Hour)},
		{"recent", 210, now.Add(-10 * time.Minute)},
		{"admin-block", 300, now.Add(-48 * time.Hour)},
	}
	for _, u := range users {
		_, err := db.Exec(`INSERT INTO users (username, state, block_code, login_attempts, blocked_date) VALUES (?, ?, ?, ?, ?)`,
			u.name, UserStateBlocked, u.blockCode, 3, dbTime(u.blockedAt))
		if err != nil {
			t.Fatalf("Failed to insert user: %v", err)
		}
	}

	unblocked, err := repo.UnblockUsers(ctx, now.Add(-80*time.Minute), 210)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if unblocked != 1 {
		t.Errorf("Expected 1 unblocked user, got %d", unblocked)
	}

	var state, attempts int
	if err := db.QueryRow(`SELECT state, login_attempts FROM users WHERE username = ?`, "expired").Scan(&state, &attempts); err != nil {
		t.Fatal(err)
	}
	if state != UserStateActive || attempts != 0 {
		t.Errorf("Expected state 1 and 0 attempts, got %d and %d", state, attempts)
	}
}

func TestMaintenance_Retention(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMaintenanceRepository(db)
	articles := NewArticleRepository(db)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := articles.CommitArticle(ctx, testArticle("old.xml", 1, now.Add(-40*24*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := articles.CommitArticle(ctx, testArticle("new.xml", 1, now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(-720 * time.Hour)
	deleted, err := repo.DeleteArticlesBefore(ctx, cutoff)
	if err != nil || deleted != 1 {
		t.Errorf("Expected 1 deleted article, got %d (err %v)", deleted, err)
	}
	deleted, err = repo.DeleteProcessedFilesBefore(ctx, cutoff)
	if err != nil || deleted != 1 {
		t.Errorf("Expected 1 deleted ledger row, got %d (err %v)", deleted, err)
	}

	total, processed, err := articles.GetTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || processed != 1 {
		t.Errorf("Expected 1 article and 1 ledger row left, got %d and %d", total, processed)
	}
}

func TestMaintenance_RetentionKeepsWatermark(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMaintenanceRepository(db)
	articles := NewArticleRepository(db)
	ledger := NewLedgerRepository(db)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	newest := now.Add(-40 * 24 * time.Hour)
	for i, name := range []string{"mena_1.txt", "mena_2.txt", "mena_3.txt"} {
		createdAt := newest.Add(-time.Duration(2-i) * time.Hour)
		if err := articles.CommitArticle(ctx, testArticle(name, 9, createdAt)); err != nil {
			t.Fatal(err)
		}
	}
	if err := articles.CommitArticle(ctx, testArticle("ansa_1.xml", 22, now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(-720 * time.Hour)
	deleted, err := repo.DeleteProcessedFilesBefore(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted ledger rows, got %d", deleted)
	}

	watermark, err := ledger.LastWatermark(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if watermark == nil || !watermark.Equal(newest) {
		t.Errorf("Expected watermark %v to survive pruning, got %v", newest, watermark)
	}

	processed, err := ledger.IsProcessed(ctx, "mena_3.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !processed {
		t.Error("Expected newest ledger row of the agency to be kept")
	}
	if count, _ := ledger.GetProcessedCount(ctx, 22); count != 1 {
		t.Errorf("Expected recent ledger row of another agency untouched, got %d", count)
	}
}
