package models

import "time"

type FeedbackTicket struct {
	ID         uint64
	UserID     string
	UserEmail  string
	Message    string
	CreatedAt  time.Time
	AdminNotes *string
}

type FeedbackInput struct {
	UserEmail string `validate:"required,email,max=256"`
	Message   string `validate:"required,max=4000"`
}
