package models

import "time"

type ContentItem struct {
	ID          int32     `json:"id"`
	CreatorID   int32     `json:"creator_id"`
	OwnerID     int32     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DimeValue   int32     `json:"dime_value"`
	CreatedAt   time.Time `json:"created_at"`
}

type Like struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	ContentID int32     `json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	ContentID int32     `json:"content_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
