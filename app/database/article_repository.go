package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ArticleRepository handles database operations for articles
type ArticleRepository struct {
	db *DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// CommitArticle inserts the article, then its ledger entry, in one
// transaction. Either both rows exist afterwards or neither does.
func (r *ArticleRepository) CommitArticle(ctx context.Context, article Article) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertArticle(ctx, tx, r.db.builder, article); err != nil {
		return err
	}

	err = markProcessed(ctx, tx, r.db.builder, ProcessedFile{
		FileName:    article.FileName,
		AgencyID:    article.AgencyID,
		CreatedDate: article.CreatedDate,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, article.FileName)
		}
		return fmt.Errorf("failed to commit article: %w", err)
	}
	return nil
}

func insertArticle(ctx context.Context, ex execer, builder sq.StatementBuilderType, article Article) error {
	query, args, err := builder.
		Insert("articles").
		Columns("title", "slug", "full_text", "file_name", "label", "created_date", "id_agency").
		Values(article.Title, article.Slug, article.FullText, article.FileName,
			nullString(article.Label), dbTime(article.CreatedDate), article.AgencyID).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build article insert: %w", err)
	}

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: article %s", ErrDuplicateKey, article.FileName)
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// GetRecentArticles returns the newest articles of an agency
func (r *ArticleRepository) GetRecentArticles(ctx context.Context, agencyID int, limit int) ([]Article, error) {
	query, args, err := r.db.builder.
		Select("id", "title", "slug", "full_text", "file_name", "label", "created_date", "id_agency").
		From("articles").
		Where(sq.Eq{"id_agency": agencyID}).
		OrderBy("created_date DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build articles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		var label sql.NullString
		err := rows.Scan(&a.ID, &a.Title, &a.Slug, &a.FullText, &a.FileName,
			&label, &a.CreatedDate, &a.AgencyID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		if label.Valid {
			a.Label = &label.String
		}
		a.CreatedDate = a.CreatedDate.UTC()
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// GetArticleCount returns the number of stored articles of an agency
func (r *ArticleRepository) GetArticleCount(ctx context.Context, agencyID int) (int, error) {
	return count(ctx, r.db, "articles", sq.Eq{"id_agency": agencyID})
}

// GetTotals returns the article and ledger row counts of all agencies
func (r *ArticleRepository) GetTotals(ctx context.Context) (int, int, error) {
	articles, err := count(ctx, r.db, "articles", nil)
	if err != nil {
		return 0, 0, err
	}
	processed, err := count(ctx, r.db, "processed_files", nil)
	if err != nil {
		return 0, 0, err
	}
	return articles, processed, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
