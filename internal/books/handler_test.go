package books_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/auth"
	"bookhub/internal/books"
	"bookhub/internal/reviews"
	"bookhub/pkg/database"
)

func setupRouter(t *testing.T) (*gin.Engine, *reviews.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	tokenSvc := auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "bookhub-test",
		Duration: time.Hour,
	}

	router := gin.New()

	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	reviewRepo := reviews.NewRepo(db)
	bookRepo := books.NewRepo(db)
	bookHandler := books.NewHandler(bookRepo, reviewRepo, nil)
	bookHandler.RegisterPublicRoutes(router.Group("/books"))

	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))
	bookHandler.RegisterProtectedRoutes(protected)

	reviewHandler := reviews.NewHandler(reviewRepo, nil)
	reviewHandler.RegisterRoutes(protected)

	return router, reviewRepo
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func signup(t *testing.T, router *gin.Engine, name, email string) (token, userID string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	user := resp["user"].(map[string]any)
	return resp["token"].(string), user["id"].(string)
}

func addBook(t *testing.T, router *gin.Engine, token, title string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/books", token, map[string]any{
		"title":       title,
		"author":      "Some Author",
		"description": "A description.",
		"genre":       "Fiction",
		"year":        2001,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestListPaginationAndOrder(t *testing.T) {
	router, _ := setupRouter(t)
	token, _ := signup(t, router, "Alice", "alice@example.com")

	titles := []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7"}
	for _, title := range titles {
		addBook(t, router, token, title)
	}

	w := doJSON(t, router, http.MethodGet, "/books", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)

	assert.EqualValues(t, 2, resp["total_pages"])
	assert.EqualValues(t, 1, resp["current_page"])

	page1 := resp["books"].([]any)
	require.Len(t, page1, 5)
	for i, want := range []string{"b7", "b6", "b5", "b4", "b3"} {
		book := page1[i].(map[string]any)
		assert.Equal(t, want, book["title"])
		assert.Equal(t, "Alice", book["owner_name"])
	}

	w = doJSON(t, router, http.MethodGet, "/books?page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	page2 := resp["books"].([]any)
	require.Len(t, page2, 2)
	assert.Equal(t, "b2", page2[0].(map[string]any)["title"])
	assert.Equal(t, "b1", page2[1].(map[string]any)["title"])
}

func TestListPagePastEnd(t *testing.T) {
	router, _ := setupRouter(t)
	token, _ := signup(t, router, "Alice", "alice@example.com")
	addBook(t, router, token, "only one")

	w := doJSON(t, router, http.MethodGet, "/books?page=99", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)

	assert.Empty(t, resp["books"])
	assert.EqualValues(t, 1, resp["total_pages"])
	assert.EqualValues(t, 99, resp["current_page"])
}

func TestListBadPageDefaultsToFirst(t *testing.T) {
	router, _ := setupRouter(t)
	token, _ := signup(t, router, "Alice", "alice@example.com")
	addBook(t, router, token, "a book")

	for _, q := range []string{"?page=0", "?page=-3", "?page=abc", ""} {
		w := doJSON(t, router, http.MethodGet, "/books"+q, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.EqualValues(t, 1, resp["current_page"], "query %q", q)
		assert.Len(t, resp["books"], 1)
	}
}

func TestGetNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/books/no-such-id", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWithReviewsAndAggregate(t *testing.T) {
	router, _ := setupRouter(t)
	tokenA, _ := signup(t, router, "Alice", "alice@example.com")
	tokenB, _ := signup(t, router, "Bob", "bob@example.com")
	tokenC, _ := signup(t, router, "Cara", "cara@example.com")

	bookID := addBook(t, router, tokenA, "Reviewed Book")

	w := doJSON(t, router, http.MethodPost, "/reviews", tokenB, map[string]any{
		"book_id": bookID, "rating": 5, "text": "great",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = doJSON(t, router, http.MethodPost, "/reviews", tokenC, map[string]any{
		"book_id": bookID, "rating": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/books/"+bookID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)

	assert.InDelta(t, 4.0, resp["avg_rating"].(float64), 1e-9)

	revs := resp["reviews"].([]any)
	require.Len(t, revs, 2)
	names := []string{
		revs[0].(map[string]any)["author_name"].(string),
		revs[1].(map[string]any)["author_name"].(string),
	}
	assert.ElementsMatch(t, []string{"Bob", "Cara"}, names)

	counts := resp["rating_counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["5"])
	assert.EqualValues(t, 1, counts["3"])
	assert.EqualValues(t, 0, counts["4"])
}

func TestCreateRequiresAuth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/books", "", map[string]any{
		"title": "x", "author": "y", "description": "z", "genre": "g", "year": 2000,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateValidation(t *testing.T) {
	router, _ := setupRouter(t)
	token, _ := signup(t, router, "Alice", "alice@example.com")

	bad := []map[string]any{
		{"author": "y", "description": "z", "genre": "g", "year": 2000},
		{"title": "x", "description": "z", "genre": "g", "year": 2000},
		{"title": "x", "author": "y", "genre": "g", "year": 2000},
		{"title": "x", "author": "y", "description": "z", "year": 2000},
		{"title": "x", "author": "y", "description": "z", "genre": "g"},
		{"title": "x", "author": "y", "description": "z", "genre": "g", "year": -5},
		{"title": "  ", "author": "y", "description": "z", "genre": "g", "year": 2000},
	}
	for i, payload := range bad {
		w := doJSON(t, router, http.MethodPost, "/books", token, payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %d: %s", i, w.Body.String())
	}
}

func TestCreateSetsOwner(t *testing.T) {
	router, _ := setupRouter(t)
	token, userID := signup(t, router, "Alice", "alice@example.com")

	w := doJSON(t, router, http.MethodPost, "/books", token, map[string]any{
		"title": "Mine", "author": "Me", "description": "d", "genre": "g", "year": 1999,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)

	assert.Equal(t, userID, resp["owner_id"])
	assert.Equal(t, "Alice", resp["owner_name"])
}

func TestUpdateMergesFields(t *testing.T) {
	router, _ := setupRouter(t)
	token, userID := signup(t, router, "Alice", "alice@example.com")
	bookID := addBook(t, router, token, "Original Title")

	w := doJSON(t, router, http.MethodPut, "/books/"+bookID, token, map[string]any{
		"title": "New Title",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)

	assert.Equal(t, "New Title", resp["title"])
	assert.Equal(t, "Some Author", resp["author"])
	assert.Equal(t, "A description.", resp["description"])
	assert.Equal(t, "Fiction", resp["genre"])
	assert.EqualValues(t, 2001, resp["year"])
	assert.Equal(t, userID, resp["owner_id"])
}

func TestUpdateCannotChangeOwnerOrID(t *testing.T) {
	router, _ := setupRouter(t)
	token, userID := signup(t, router, "Alice", "alice@example.com")
	bookID := addBook(t, router, token, "Stable")

	w := doJSON(t, router, http.MethodPut, "/books/"+bookID, token, map[string]any{
		"id":       "hijacked-id",
		"owner_id": "someone-else",
		"year":     1984,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)

	assert.Equal(t, bookID, resp["id"])
	assert.Equal(t, userID, resp["owner_id"])
	assert.EqualValues(t, 1984, resp["year"])
}

func TestUpdateRejectsBlankRequiredFields(t *testing.T) {
	router, _ := setupRouter(t)
	token, _ := signup(t, router, "Alice", "alice@example.com")
	bookID := addBook(t, router, token, "Keep Me")

	for _, payload := range []map[string]any{
		{"title": "   "},
		{"author": ""},
		{"genre": " "},
	} {
		w := doJSON(t, router, http.MethodPut, "/books/"+bookID, token, payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload %v", payload)
	}

	// description is the one field that may be cleared
	w := doJSON(t, router, http.MethodPut, "/books/"+bookID, token, map[string]any{
		"description": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "", resp["description"])
	assert.Equal(t, "Keep Me", resp["title"])
}

func TestUpdateNotFoundAndForbidden(t *testing.T) {
	router, _ := setupRouter(t)
	tokenA, _ := signup(t, router, "Alice", "alice@example.com")
	tokenB, _ := signup(t, router, "Bob", "bob@example.com")
	bookID := addBook(t, router, tokenA, "Alice's Book")

	w := doJSON(t, router, http.MethodPut, "/books/no-such-id", tokenA, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPut, "/books/"+bookID, tokenB, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteNotFoundAndForbidden(t *testing.T) {
	router, _ := setupRouter(t)
	tokenA, _ := signup(t, router, "Alice", "alice@example.com")
	tokenB, _ := signup(t, router, "Bob", "bob@example.com")
	bookID := addBook(t, router, tokenA, "Alice's Book")

	w := doJSON(t, router, http.MethodDelete, "/books/no-such-id", tokenA, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/books/"+bookID, tokenB, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// owner can still see it afterwards
	w = doJSON(t, router, http.MethodGet, "/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteCascadesToReviews(t *testing.T) {
	router, reviewRepo := setupRouter(t)
	tokenA, _ := signup(t, router, "Alice", "alice@example.com")
	tokenB, _ := signup(t, router, "Bob", "bob@example.com")
	bookID := addBook(t, router, tokenA, "Doomed Book")

	w := doJSON(t, router, http.MethodPost, "/reviews", tokenB, map[string]any{
		"book_id": bookID, "rating": 4, "text": "fine",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/books/"+bookID, tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/books", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["books"])

	revs, err := reviewRepo.ListByBook(t.Context(), bookID)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestEndToEndScenario(t *testing.T) {
	router, _ := setupRouter(t)
	tokenA, _ := signup(t, router, "Alice", "alice@example.com")
	tokenB, _ := signup(t, router, "Bob", "bob@example.com")
	tokenC, _ := signup(t, router, "Cara", "cara@example.com")

	bookID := addBook(t, router, tokenA, "X")

	w := doJSON(t, router, http.MethodPost, "/reviews", tokenB, map[string]any{
		"book_id": bookID, "rating": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodPost, "/reviews", tokenC, map[string]any{
		"book_id": bookID, "rating": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/books/"+bookID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.InDelta(t, 4.0, resp["avg_rating"].(float64), 1e-9)
	assert.Len(t, resp["reviews"], 2)

	w = doJSON(t, router, http.MethodDelete, "/books/"+bookID, tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
