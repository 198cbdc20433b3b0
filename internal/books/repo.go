package books

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

func (r *Repo) Create(ctx context.Context, b models.Book) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO books (id, title, author, description, genre, year, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Title, b.Author, b.Description, b.Genre, b.Year, b.OwnerID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.author, b.description, b.genre, b.year, b.owner_id, u.name, b.created_at
		FROM books b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = ?
	`, id)

	var b models.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Genre, &b.Year, &b.OwnerID, &b.OwnerName, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &b, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// List returns a newest-first page of books, each carrying its owner's name.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT b.id, b.title, b.author, b.description, b.genre, b.year, b.owner_id, u.name, b.created_at
		FROM books b
		JOIN users u ON u.id = b.owner_id
		ORDER BY b.created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Book, 0, limit)
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Genre, &b.Year, &b.OwnerID, &b.OwnerName, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Update persists the mutable columns. owner_id and created_at are never
// part of the column list.
func (r *Repo) Update(ctx context.Context, b models.Book) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE books
		SET title = ?, author = ?, description = ?, genre = ?, year = ?
		WHERE id = ?
	`, b.Title, b.Author, b.Description, b.Genre, b.Year, b.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update book: not found")
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM books
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}
