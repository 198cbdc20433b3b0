package feed

import "time"

// Event types follow "<entity>.<verb>": book.created, book.updated,
// book.deleted, review.created, review.updated, review.deleted.
type Event struct {
	Type     string    `json:"type"`
	BookID   string    `json:"book_id"`
	ReviewID string    `json:"review_id,omitempty"`
	UserID   string    `json:"user_id"`
	At       time.Time `json:"at"`
}
