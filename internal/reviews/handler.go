package reviews

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookhub/internal/auth"
	"bookhub/internal/feed"
	"bookhub/pkg/models"
)

type Handler struct {
	Repo *Repo
	Hub  *feed.Hub
}

func NewHandler(repo *Repo, hub *feed.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews", h.create)
	rg.PUT("/reviews/:id", h.update)
	rg.DELETE("/reviews/:id", h.delete)
}

type createReq struct {
	BookID string `json:"book_id"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
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

	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id required"})
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}

	// one review per (book, user); read-then-insert, same as the stored data allows
	existing, err := h.Repo.GetByBookAndUser(c.Request.Context(), bookID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "review already exists"})
		return
	}

	review := models.Review{
		ID:        uuid.NewString(),
		BookID:    bookID,
		UserID:    claims.UserID,
		Rating:    req.Rating,
		Text:      strings.TrimSpace(req.Text),
		CreatedAt: time.Now().UTC(),
	}

	if err := h.Repo.Create(c.Request.Context(), review); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), review.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.broadcast("review.created", saved.BookID, saved.ID, claims.UserID)
	c.JSON(http.StatusCreated, saved)
}

type updateReq struct {
	Rating *int    `json:"rating"`
	Text   *string `json:"text"`
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	review, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if review == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if review.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the review author"})
		return
	}

	// merge only rating and text; everything else is fixed at creation
	rating := review.Rating
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}
		rating = *req.Rating
	}
	text := review.Text
	if req.Text != nil {
		text = strings.TrimSpace(*req.Text)
	}

	if err := h.Repo.Update(c.Request.Context(), id, rating, text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.broadcast("review.updated", saved.BookID, saved.ID, claims.UserID)
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	review, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if review == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if review.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the review author"})
		return
	}

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.broadcast("review.deleted", review.BookID, review.ID, claims.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "review deleted"})
}

func (h *Handler) broadcast(eventType, bookID, reviewID, userID string) {
	if h.Hub == nil {
		return
	}
	ev := feed.Event{
		Type:     eventType,
		BookID:   bookID,
		ReviewID: reviewID,
		UserID:   userID,
		At:       time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
