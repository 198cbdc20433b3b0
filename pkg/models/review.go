package models

import "time"

type Review struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
