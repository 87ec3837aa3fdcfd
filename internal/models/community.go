package models

import (
	"time"
)

// Anonymous fills optional reporter fields left blank.
const Anonymous = "Anonymous"

// Report is a moderation record about a calculator or a comment.
type Report struct {
	ID                   uint      `gorm:"primaryKey" json:"_id"`
	Username             string    `gorm:"not null;index" json:"username"`
	Email                string    `gorm:"not null" json:"email"`
	Subject              string    `json:"subject,omitempty"`
	Message              string    `json:"message,omitempty"`
	Title                string    `gorm:"not null" json:"title"`
	CalculatorTitle      string    `json:"calculatorTitle,omitempty"`
	CalculatorID         string    `gorm:"size:64" json:"calculatorId"`
	CommentContent       string    `json:"commentContent,omitempty"`
	CommentID            string    `gorm:"size:64" json:"commentId,omitempty"`
	CommentReportReasons []string  `gorm:"type:text;serializer:json" json:"commentReportReasons,omitempty"`
	IsReportSeen         bool      `gorm:"not null;default:false;index" json:"isReportSeen"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Contact is a message sent through the contact form.
type Contact struct {
	ID            uint      `gorm:"primaryKey" json:"_id"`
	Username      string    `gorm:"not null" json:"username"`
	Email         string    `gorm:"not null" json:"email"`
	Subject       string    `gorm:"not null" json:"subject"`
	Message       string    `gorm:"not null" json:"message"`
	IsContactSeen bool      `gorm:"not null;default:false;index" json:"isContactSeen"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items       []T
	Count       int64
	TotalPages  int
	CurrentPage int
}

// NewPage computes TotalPages from count and limit.
func NewPage[T any](items []T, count int64, page, limit int) Page[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = int((count + int64(limit) - 1) / int64(limit))
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Count: count, TotalPages: totalPages, CurrentPage: page}
}
