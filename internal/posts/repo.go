package posts

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists posts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePost writes a new post.
func (r *Repository) CreatePost(ctx context.Context, p Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, content, author_id, alias, likes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Content, p.AuthorID, p.Alias, p.Likes, p.Status, p.CreatedAt)
	return err
}

// GetPost returns a post, or nil when absent.
func (r *Repository) GetPost(ctx context.Context, id string) (*Post, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, author_id, alias, likes, status, created_at
		FROM posts WHERE id = $1
	`, id)
	var p Post
	if err := row.Scan(&p.ID, &p.Content, &p.AuthorID, &p.Alias, &p.Likes, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Posts returns all posts, newest first.
func (r *Repository) Posts(ctx context.Context) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, content, author_id, alias, likes, status, created_at
		FROM posts
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Content, &p.AuthorID, &p.Alias, &p.Likes, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return all, rows.Err()
}

// Like bumps the like counter. Returns false when the post is absent.
func (r *Repository) Like(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET likes = likes + 1 WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetStatus updates a post's moderation status.
func (r *Repository) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE posts SET status = $2 WHERE id = $1`, id, status)
	return err
}
