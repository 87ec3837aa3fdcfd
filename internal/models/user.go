// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Roles a user account can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PrivacySettings controls which parts of a profile other users can see.
type PrivacySettings struct {
	ShowSavedCalculators bool `gorm:"not null;default:false" json:"showSavedCalculators"`
	ShowComments         bool `gorm:"not null;default:false" json:"showComments"`
}

// User represents an Alvacus account. Password is empty for accounts created
// through federated login.
type User struct {
	ID           uint            `gorm:"primaryKey" json:"_id"`
	Username     string          `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string          `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password     string          `json:"-"`
	GoogleID     *string         `gorm:"uniqueIndex;size:64" json:"-"`
	UserIP       string          `gorm:"size:64" json:"-"`
	Slug         string          `gorm:"size:64" json:"slug"`
	Profession   string          `json:"profession"`
	Company      string          `json:"company"`
	Avatar       string          `json:"avatar"`
	Role         string          `gorm:"size:16;not null;default:user" json:"role"`
	IsActivated  bool            `gorm:"not null" json:"isActivated"`
	Privacy      PrivacySettings `gorm:"embedded;embeddedPrefix:privacy_" json:"privacySettings"`
	TokenVersion int             `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AuthorSummary is the slice of a user embedded in calculators, comments and
// replies.
type AuthorSummary struct {
	ID         uint   `gorm:"primaryKey" json:"_id"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
	Profession string `json:"profession"`
	Company    string `json:"company"`
}

// TableName maps AuthorSummary onto the users table.
func (AuthorSummary) TableName() string {
	return "users"
}

// AuthorColumns selects only the columns AuthorSummary needs.
var AuthorColumns = []string{"id", "username", "avatar", "profession", "company"}

// FollowerRef is one entry of a profile's followers list.
type FollowerRef struct {
	UserID uint `json:"userId"`
}

// PublicProfile is what anyone may read about a user.
type PublicProfile struct {
	ID              uint            `json:"_id"`
	Username        string          `json:"username"`
	Role            string          `json:"role"`
	Avatar          string          `json:"avatar"`
	Profession      string          `json:"profession"`
	Company         string          `json:"company"`
	IsActivated     bool            `json:"isActivated"`
	Followers       []FollowerRef   `json:"followers"`
	PrivacySettings PrivacySettings `json:"privacySettings"`
}

// ToPublicProfile strips private fields from the user.
func (u *User) ToPublicProfile(followers []uint) PublicProfile {
	refs := make([]FollowerRef, 0, len(followers))
	for _, id := range followers {
		refs = append(refs, FollowerRef{UserID: id})
	}
	return PublicProfile{
		ID:              u.ID,
		Username:        u.Username,
		Role:            u.Role,
		Avatar:          u.Avatar,
		Profession:      u.Profession,
		Company:         u.Company,
		IsActivated:     u.IsActivated,
		Followers:       refs,
		PrivacySettings: u.Privacy,
	}
}

// Follow records that FollowerID follows FolloweeID.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"_id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"followerId"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification types.
const (
	NotificationComment = "comment"
	NotificationReply   = "reply"
	NotificationLike    = "like"
	NotificationFollow  = "follow"
	NotificationSave    = "save"
)

// Notification is an entry in a user's notification list.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"_id"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Text      string    `gorm:"not null" json:"text"`
	Link      string    `gorm:"not null" json:"link"`
	IsRead    bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
