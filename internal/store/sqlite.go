package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/demon607/Summarization-Service-Build/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	url           TEXT NOT NULL,
	title         TEXT NOT NULL,
	status        TEXT NOT NULL,
	content       TEXT,
	summary       TEXT,
	created_at    INTEGER NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status, created_at);
`

// SQLiteStore implements ArticleStore on a single SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ ArticleStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the article database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// articleRow is the raw scan target; created_at is stored as unix
// nanoseconds so ordering is exact regardless of driver time handling.
type articleRow struct {
	ID           int64          `db:"id"`
	URL          string         `db:"url"`
	Title        string         `db:"title"`
	Status       string         `db:"status"`
	Content      sql.NullString `db:"content"`
	Summary      sql.NullString `db:"summary"`
	CreatedAt    int64          `db:"created_at"`
	ErrorMessage sql.NullString `db:"error_message"`
}

func (r articleRow) toModel() model.Article {
	a := model.Article{
		ID:        r.ID,
		URL:       r.URL,
		Title:     r.Title,
		Status:    model.Status(r.Status),
		Content:   r.Content.String,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.Summary.Valid {
		summary := r.Summary.String
		a.Summary = &summary
	}
	if r.ErrorMessage.Valid {
		msg := r.ErrorMessage.String
		a.ErrorMessage = &msg
	}
	return a
}

func (s *SQLiteStore) Create(ctx context.Context, url, title string, status model.Status, content string, createdAt time.Time) (int64, error) {
	query, args, err := sq.Insert("articles").
		Columns("url", "title", "status", "content", "created_at").
		Values(url, title, string(status), content, createdAt.UnixNano()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*model.Article, error) {
	query, args, err := sq.Select("*").From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row articleRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	article := row.toModel()
	return &article, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context, opts ListOptions) ([]model.Article, error) {
	builder := sq.Select("*").From("articles")
	if opts.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(opts.Status)})
	}
	if opts.Query != "" {
		pattern := "%" + strings.ToLower(opts.Query) + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(url)": pattern},
		})
	}
	switch opts.Sort {
	case SortDateAsc:
		builder = builder.OrderBy("created_at ASC", "id ASC")
	case SortStatus:
		builder = builder.OrderBy("status ASC", "created_at DESC", "id DESC")
	default:
		builder = builder.OrderBy("created_at DESC", "id DESC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	var rows []articleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	articles := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.toModel())
	}
	return articles, nil
}

func (s *SQLiteStore) ListByIDs(ctx context.Context, ids []int64) ([]model.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select("*").From("articles").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list by ids: %w", err)
	}
	var rows []articleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list articles by ids: %w", err)
	}
	articles := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.toModel())
	}
	return articles, nil
}

func (s *SQLiteStore) ClaimOldestPending(ctx context.Context) (*model.Article, error) {
	for {
		article, err := s.tryClaim(ctx)
		if err == nil || !errors.Is(err, errClaimRaced) {
			return article, err
		}
		// Another claimer took the row between select and update; try the
		// next oldest pending one.
	}
}

var errClaimRaced = errors.New("claim raced")

func (s *SQLiteStore) tryClaim(ctx context.Context) (*model.Article, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var row articleRow
	err = tx.GetContext(ctx, &row,
		`SELECT * FROM articles WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		string(model.StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE articles SET status = ? WHERE id = ? AND status = ?`,
		string(model.StatusProcessing), row.ID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return nil, errClaimRaced
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	article := row.toModel()
	article.Status = model.StatusProcessing
	return &article, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.Status, summary, errorMessage *string) (int64, error) {
	query, args, err := sq.Update("articles").
		Set("status", string(status)).
		Set("summary", summary).
		Set("error_message", errorMessage).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update status: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ResetForRetry(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ?, error_message = NULL WHERE id = ? AND status = ?`,
		string(model.StatusPending), id, string(model.StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("reset for retry: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ? WHERE status = ?`,
		string(model.StatusPending), string(model.StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete article: %w", err)
	}
	return res.RowsAffected()
}
