package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// PostgresRepository persists classified comments into Postgres. The table is
// keyed by (team_name, comment_id), so redelivered records overwrite instead
// of duplicating.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.CommentRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open dials Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// SaveClassified upserts one classified comment.
func (r *PostgresRepository) SaveClassified(ctx context.Context, comment domain.ClassifiedComment) error {
	if r.db == nil {
		return nil
	}

	query, args, err := upsertClassified(r.builder, comment)
	if err != nil {
		return &domain.StorageError{Err: fmt.Errorf("build upsert: %w", err)}
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageError{Err: fmt.Errorf("upsert classified: %w", err)}
	}

	return nil
}

// QueryWindow returns the classified comments for one team whose timestamps
// fall inside [start, end], oldest first.
func (r *PostgresRepository) QueryWindow(ctx context.Context, team string, start, end int64) ([]domain.ClassifiedComment, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := selectWindow(r.builder, team, start, end)
	if err != nil {
		return nil, &domain.StorageError{Err: fmt.Errorf("build window query: %w", err)}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Err: fmt.Errorf("query window: %w", err)}
	}
	defer rows.Close()

	var comments []domain.ClassifiedComment
	for rows.Next() {
		var c domain.ClassifiedComment
		if err := rows.Scan(
			&c.Team, &c.ID, &c.Name, &c.Author, &c.Body,
			&c.Upvotes, &c.Downvotes, &c.Timestamp, &c.Subreddit,
			&c.Label, &c.Score,
		); err != nil {
			return nil, &domain.StorageError{Err: fmt.Errorf("scan comment: %w", err)}
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Err: fmt.Errorf("rows iteration: %w", err)}
	}

	return comments, nil
}

func upsertClassified(builder sq.StatementBuilderType, comment domain.ClassifiedComment) (string, []any, error) {
	return builder.
		Insert("classified_comments").
		Columns(
			"team_name", "comment_id", "comment_name", "author", "body",
			"upvotes", "downvotes", "created_at", "subreddit",
			"sentiment", "sentiment_score",
		).
		Values(
			comment.Team, comment.ID, comment.Name, comment.Author, comment.Body,
			comment.Upvotes, comment.Downvotes, comment.Timestamp, comment.Subreddit,
			string(comment.Label), comment.Score,
		).
		Suffix(`ON CONFLICT (team_name, comment_id) DO UPDATE
            SET body = EXCLUDED.body,
                upvotes = EXCLUDED.upvotes,
                downvotes = EXCLUDED.downvotes,
                sentiment = EXCLUDED.sentiment,
                sentiment_score = EXCLUDED.sentiment_score,
                updated_at = NOW()`).
		ToSql()
}

func selectWindow(builder sq.StatementBuilderType, team string, start, end int64) (string, []any, error) {
	return builder.
		Select(
			"team_name", "comment_id", "comment_name", "author", "body",
			"upvotes", "downvotes", "created_at", "subreddit",
			"sentiment", "sentiment_score",
		).
		From("classified_comments").
		Where(sq.Eq{"team_name": team}).
		Where(sq.GtOrEq{"created_at": start}).
		Where(sq.LtOrEq{"created_at": end}).
		OrderBy("created_at ASC").
		ToSql()
}
