package books_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/auth"
	"bookhub/internal/books"
	"bookhub/internal/reviews"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

func openRepos(t *testing.T) (*books.Repo, *reviews.Repo, *auth.Repo) {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "repo.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return books.NewRepo(db), reviews.NewRepo(db), auth.NewRepo(db)
}

// Book delete and the review sweep are two separate statements. If the sweep
// never runs after the book row is gone, the reviews stay behind with no book
// to point at.
func TestDeleteLeavesReviewsWhenSweepSkipped(t *testing.T) {
	bookRepo, reviewRepo, users := openRepos(t)
	now := time.Now().UTC()

	require.NoError(t, users.CreateUser(t.Context(), auth.User{
		ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: "x",
	}))
	require.NoError(t, bookRepo.Create(t.Context(), models.Book{
		ID: "b1", Title: "Doomed", Author: "A", Description: "d", Genre: "g",
		Year: 2001, OwnerID: "u1", CreatedAt: now,
	}))
	require.NoError(t, reviewRepo.Create(t.Context(), models.Review{
		ID: "r1", BookID: "b1", UserID: "u1", Rating: 3, CreatedAt: now,
	}))

	require.NoError(t, bookRepo.Delete(t.Context(), "b1"))

	gone, err := bookRepo.GetByID(t.Context(), "b1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	orphans, err := reviewRepo.ListByBook(t.Context(), "b1")
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}
