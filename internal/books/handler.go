package books

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookhub/internal/auth"
	"bookhub/internal/feed"
	"bookhub/internal/reviews"
	"bookhub/pkg/models"
)

// PageSize is fixed; the list endpoint does not take a limit parameter.
const PageSize = 5

type Handler struct {
	Repo    *Repo
	Reviews *reviews.Repo
	Hub     *feed.Hub
}

func NewHandler(repo *Repo, reviewRepo *reviews.Repo, hub *feed.Hub) *Handler {
	return &Handler{Repo: repo, Reviews: reviewRepo, Hub: hub}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)        // GET /books
	rg.GET("/:id", h.getByID) // GET /books/:id
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/books", h.create)
	rg.PUT("/books/:id", h.update)
	rg.DELETE("/books/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	page := parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * PageSize

	total, err := h.Repo.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), PageSize, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"books":        items,
		"total_pages":  (total + PageSize - 1) / PageSize,
		"current_page": page,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	book, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	revs, err := h.Reviews.ListByBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book":          book,
		"reviews":       revs,
		"avg_rating":    reviews.Aggregate(revs),
		"rating_counts": reviews.RatingCounts(revs),
	})
}

type createReq struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Year        int    `json:"year"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Description = strings.TrimSpace(req.Description)
	req.Genre = strings.TrimSpace(req.Genre)

	if req.Title == "" || req.Author == "" || req.Description == "" || req.Genre == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, author, description and genre required"})
		return
	}
	if req.Year <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be positive"})
		return
	}

	book := models.Book{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Genre:       req.Genre,
		Year:        req.Year,
		OwnerID:     claims.UserID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.Repo.Create(c.Request.Context(), book); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), book.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.broadcast("book.created", saved.ID, claims.UserID)
	c.JSON(http.StatusCreated, saved)
}

type updateReq struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	Genre       *string `json:"genre"`
	Year        *int    `json:"year"`
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	book, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	if book.OwnerID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the book owner"})
		return
	}

	// allow-list merge; absent fields keep their stored values
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		book.Title = t
	}
	if req.Author != nil {
		a := strings.TrimSpace(*req.Author)
		if a == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "author cannot be empty"})
			return
		}
		book.Author = a
	}
	if req.Description != nil {
		book.Description = strings.TrimSpace(*req.Description)
	}
	if req.Genre != nil {
		g := strings.TrimSpace(*req.Genre)
		if g == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "genre cannot be empty"})
			return
		}
		book.Genre = g
	}
	if req.Year != nil {
		if *req.Year <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be positive"})
			return
		}
		book.Year = *req.Year
	}

	if err := h.Repo.Update(c.Request.Context(), *book); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.broadcast("book.updated", saved.ID, claims.UserID)
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	book, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	if book.OwnerID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the book owner"})
		return
	}

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	// Review sweep is a second statement. If it fails the book is already
	// gone, the caller still sees success and the orphans stay behind.
	if _, err := h.Reviews.DeleteByBook(c.Request.Context(), id); err != nil {
		log.Printf("review sweep after deleting book %s failed: %v", id, err)
	}

	h.broadcast("book.deleted", id, claims.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}

func (h *Handler) broadcast(eventType, bookID, userID string) {
	if h.Hub == nil {
		return
	}
	ev := feed.Event{
		Type:   eventType,
		BookID: bookID,
		UserID: userID,
		At:     time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
