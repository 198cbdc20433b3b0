package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bookhub/pkg/database"
)

func main() {
	var (
		booksOut   = flag.String("books", "data/books.csv", "output CSV path for books")
		reviewsOut = flag.String("reviews", "data/reviews.csv", "output CSV path for reviews")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportBooks(ctx, db, *booksOut); err != nil {
		log.Fatalf("export books failed: %v", err)
	}
	if err := exportReviews(ctx, db, *reviewsOut); err != nil {
		log.Fatalf("export reviews failed: %v", err)
	}

	log.Printf("✅ exported books to %s and reviews to %s", *booksOut, *reviewsOut)
}

func exportBooks(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "title", "author", "description", "genre", "year", "owner_id", "created_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, title, author, description, genre, year, owner_id, created_at
		FROM books
		ORDER BY created_at DESC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, title, author, description, genre, ownerID string
			year                                           int
			createdAt                                      time.Time
		)
		if err := rows.Scan(&id, &title, &author, &description, &genre, &year, &ownerID, &createdAt); err != nil {
			return err
		}
		if err := w.Write([]string{
			id, title, author, description, genre,
			strconv.Itoa(year), ownerID, createdAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportReviews(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "book_id", "user_id", "rating", "text", "created_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, book_id, user_id, rating, text, created_at
		FROM reviews
		ORDER BY created_at DESC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, bookID, userID string
			rating             int
			text               sql.NullString
			createdAt          time.Time
		)
		if err := rows.Scan(&id, &bookID, &userID, &rating, &text, &createdAt); err != nil {
			return err
		}
		if err := w.Write([]string{
			id, bookID, userID,
			strconv.Itoa(rating), text.String, createdAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
