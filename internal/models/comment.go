package models

import (
	"time"
)

// Comment is a top-level comment on a calculator.
type Comment struct {
	ID           uint           `gorm:"primaryKey" json:"_id"`
	CalculatorID uint           `gorm:"not null;index" json:"calculatorId"`
	AuthorID     uint           `gorm:"not null;index" json:"-"`
	Author       *AuthorSummary `gorm:"foreignKey:AuthorID" json:"author"`
	Text         string         `gorm:"not null" json:"text"`
	Answer       string         `json:"answer,omitempty"`
	LikesCount   int            `gorm:"not null;default:0" json:"-"`
	Likes        []CommentLike  `gorm:"foreignKey:CommentID" json:"likes"`
	Replies      []Reply        `gorm:"foreignKey:CommentID" json:"replies"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CommentLike is one user's like on a comment. The pair is unique.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like;index" json:"userId"`
	CreatedAt time.Time `json:"-"`
}

// Reply belongs to a comment and keeps its own author.
type Reply struct {
	ID        uint           `gorm:"primaryKey" json:"_id"`
	CommentID uint           `gorm:"not null;index" json:"-"`
	AuthorID  uint           `gorm:"not null;index" json:"-"`
	Author    *AuthorSummary `gorm:"foreignKey:AuthorID" json:"author"`
	Text      string         `gorm:"not null" json:"text"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName keeps replies next to comments in the schema.
func (Reply) TableName() string {
	return "comment_replies"
}

// CommentedCalculator is an entry in a user's commented calculators list.
type CommentedCalculator struct {
	CalculatorID uint      `json:"calculatorId"`
	CommentID    uint      `json:"commentId"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RepliedComment is an entry in a user's replied comments list.
type RepliedComment struct {
	CalculatorID uint      `json:"calculatorId"`
	CommentID    uint      `json:"commentId"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LikedComment records a like another user left on one of your comments.
type LikedComment struct {
	CommentID uint   `json:"commentId"`
	Text      string `json:"text"`
	UserID    uint   `json:"userId"`
}

// UserActivity is the public view of a user's comment history.
type UserActivity struct {
	CommentedCalculators []CommentedCalculator `json:"commentedCalculators"`
	RepliedComments      []RepliedComment      `json:"repliedComments"`
	LikedComments        []LikedComment        `json:"likedComments"`
}
