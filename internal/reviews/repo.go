package reviews

import (
	"context"
	"database/sql"
	"fmt"

	"bookhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, review models.Review) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO reviews (id, book_id, user_id, rating, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, review.ID, review.BookID, review.UserID, review.Rating, review.Text, review.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT r.id, r.book_id, r.user_id, u.name, r.rating, r.text, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.id = ?
	`, id)

	var review models.Review
	var text sql.NullString
	if err := row.Scan(&review.ID, &review.BookID, &review.UserID, &review.AuthorName, &review.Rating, &text, &review.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	review.Text = text.String
	return &review, nil
}

// GetByBookAndUser backs the one-review-per-user check. It is a plain read:
// two concurrent creates for the same pair can both pass it.
func (r *Repo) GetByBookAndUser(ctx context.Context, bookID, userID string) (*models.Review, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, book_id, user_id, rating, text, created_at
		FROM reviews
		WHERE book_id = ? AND user_id = ?
	`, bookID, userID)

	var review models.Review
	var text sql.NullString
	if err := row.Scan(&review.ID, &review.BookID, &review.UserID, &review.Rating, &text, &review.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan review by book and user: %w", err)
	}

	review.Text = text.String
	return &review, nil
}

func (r *Repo) ListByBook(ctx context.Context, bookID string) ([]models.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.book_id, r.user_id, u.name, r.rating, r.text, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.created_at DESC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]models.Review, 0)
	for rows.Next() {
		var review models.Review
		var text sql.NullString

		if err := rows.Scan(&review.ID, &review.BookID, &review.UserID, &review.AuthorName, &review.Rating, &text, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}

		review.Text = text.String
		out = append(out, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id string, rating int, text string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE reviews
		SET rating = ?, text = ?
		WHERE id = ?
	`, rating, text, id)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update review: not found")
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM reviews
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// DeleteByBook sweeps every review of a book. Used by the book delete cascade.
func (r *Repo) DeleteByBook(ctx context.Context, bookID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reviews
		WHERE book_id = ?
	`, bookID)
	if err != nil {
		return 0, fmt.Errorf("delete reviews by book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
