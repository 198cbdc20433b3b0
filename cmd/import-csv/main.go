package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bookhub/pkg/database"
)

func main() {
	var (
		booksIn   = flag.String("books", "data/books.csv", "input CSV path for books")
		reviewsIn = flag.String("reviews", "data/reviews.csv", "input CSV path for reviews")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := importBooks(ctx, db, *booksIn); err != nil {
		log.Fatalf("import books failed: %v", err)
	}
	if err := importReviews(ctx, db, *reviewsIn); err != nil {
		log.Fatalf("import reviews failed: %v", err)
	}

	log.Printf("✅ imported books from %s and reviews from %s", *booksIn, *reviewsIn)
}

func importBooks(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO books (id, title, author, description, genre, year, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  title = excluded.title,
		  author = excluded.author,
		  description = excluded.description,
		  genre = excluded.genre,
		  year = excluded.year
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		id := valueAt(header, row, "id")
		title := valueAt(header, row, "title")
		ownerID := valueAt(header, row, "owner_id")
		if id == "" || title == "" || ownerID == "" {
			continue
		}

		year, err := parseInt(valueAt(header, row, "year"))
		if err != nil {
			return fmt.Errorf("parse year for %s: %w", id, err)
		}

		createdAt, err := parseTime(valueAt(header, row, "created_at"))
		if err != nil {
			return fmt.Errorf("parse created_at for %s: %w", id, err)
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			title,
			valueAt(header, row, "author"),
			valueAt(header, row, "description"),
			valueAt(header, row, "genre"),
			year,
			ownerID,
			createdAt,
		); err != nil {
			return err
		}
	}

	return nil
}

func importReviews(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO reviews (id, book_id, user_id, rating, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  rating = excluded.rating,
		  text = excluded.text
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		id := valueAt(header, row, "id")
		bookID := valueAt(header, row, "book_id")
		userID := valueAt(header, row, "user_id")
		if id == "" || bookID == "" || userID == "" {
			continue
		}

		rating, err := parseInt(valueAt(header, row, "rating"))
		if err != nil {
			return fmt.Errorf("parse rating for %s: %w", id, err)
		}
		if rating < 1 || rating > 5 {
			return fmt.Errorf("rating out of range for %s: %d", id, rating)
		}

		createdAt, err := parseTime(valueAt(header, row, "created_at"))
		if err != nil {
			return fmt.Errorf("parse created_at for %s: %w", id, err)
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			bookID,
			userID,
			rating,
			nullString(valueAt(header, row, "text")),
			createdAt,
		); err != nil {
			return err
		}
	}

	return nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
