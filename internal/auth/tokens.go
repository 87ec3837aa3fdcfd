// Package auth issues and verifies session tokens and decides what an
// authenticated principal may do.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"alvacus/internal/config"
	"alvacus/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer   = "alvacus-api"
	Audience = "alvacus-client"
)

// Token purposes for JWT_SECRET-signed tokens.
const (
	PurposeReset      = "reset"
	PurposeActivation = "activation"
)

// ErrInvalidToken wraps every parse or validation failure.
var ErrInvalidToken = errors.New("invalid token")

// UserInfo is the profile snapshot carried by access and purpose tokens.
type UserInfo struct {
	Username        string                  `json:"username,omitempty"`
	Email           string                  `json:"email"`
	UserID          string                  `json:"userId"`
	Role            string                  `json:"role,omitempty"`
	Avatar          string                  `json:"avatar,omitempty"`
	Profession      string                  `json:"profession,omitempty"`
	Company         string                  `json:"company,omitempty"`
	IsActivated     bool                    `json:"isActivated"`
	PrivacySettings *models.PrivacySettings `json:"privacySettings,omitempty"`
}

// SnapshotOf copies the token-visible fields of u.
func SnapshotOf(u *models.User) UserInfo {
	privacy := u.Privacy
	return UserInfo{
		Username:        u.Username,
		Email:           u.Email,
		UserID:          FormatID(u.ID),
		Role:            u.Role,
		Avatar:          u.Avatar,
		Profession:      u.Profession,
		Company:         u.Company,
		IsActivated:     u.IsActivated,
		PrivacySettings: &privacy,
	}
}

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserInfo     UserInfo `json:"UserInfo"`
	TokenVersion int      `json:"tv"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of the cookie-held refresh token.
type RefreshClaims struct {
	UserID       string `json:"userId"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

// PurposeClaims is the payload of a reset or activation token.
type PurposeClaims struct {
	UserInfo     UserInfo `json:"UserInfo"`
	Purpose      string   `json:"purpose"`
	TokenVersion int      `json:"tv"`
	jwt.RegisteredClaims
}

// TokenConfig holds the secrets and lifetimes used by a TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	PurposeSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	ActivationTTL time.Duration
}

// TokenConfigFrom maps application config onto token settings.
func TokenConfigFrom(cfg *config.Config) TokenConfig {
	tc := TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		PurposeSecret: cfg.JWTSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		ResetTTL:      cfg.ResetTokenTTL,
		ActivationTTL: cfg.AccessTokenTTL,
	}
	if tc.AccessTTL <= 0 {
		tc.AccessTTL = time.Hour
	}
	if tc.RefreshTTL <= 0 {
		tc.RefreshTTL = 7 * 24 * time.Hour
	}
	if tc.ResetTTL <= 0 {
		tc.ResetTTL = time.Hour
	}
	if tc.ActivationTTL <= 0 {
		tc.ActivationTTL = tc.AccessTTL
	}
	return tc
}

// TokenIssuer signs and verifies the three token kinds.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer returns an issuer for cfg.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// RefreshTTL is how long refresh tokens stay valid.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

func (i *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func sign(claims jwt.Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IssueAccess mints an access token holding a snapshot of u.
func (i *TokenIssuer) IssueAccess(u *models.User) (string, error) {
	claims := AccessClaims{
		UserInfo:         SnapshotOf(u),
		TokenVersion:     u.TokenVersion,
		RegisteredClaims: i.registered(FormatID(u.ID), i.cfg.AccessTTL),
	}
	token, err := sign(claims, i.cfg.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// IssueRefresh mints a refresh token for u.
func (i *TokenIssuer) IssueRefresh(u *models.User) (string, error) {
	claims := RefreshClaims{
		UserID:           FormatID(u.ID),
		TokenVersion:     u.TokenVersion,
		RegisteredClaims: i.registered(FormatID(u.ID), i.cfg.RefreshTTL),
	}
	token, err := sign(claims, i.cfg.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, nil
}

// IssuePurpose mints a reset or activation token for u.
func (i *TokenIssuer) IssuePurpose(u *models.User, purpose string) (string, error) {
	var ttl time.Duration
	switch purpose {
	case PurposeReset:
		ttl = i.cfg.ResetTTL
	case PurposeActivation:
		ttl = i.cfg.ActivationTTL
	default:
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	claims := PurposeClaims{
		UserInfo: UserInfo{
			Email:       u.Email,
			UserID:      FormatID(u.ID),
			IsActivated: u.IsActivated,
		},
		Purpose:          purpose,
		TokenVersion:     u.TokenVersion,
		RegisteredClaims: i.registered(FormatID(u.ID), ttl),
	}
	token, err := sign(claims, i.cfg.PurposeSecret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return token, nil
}

func (i *TokenIssuer) parse(raw string, claims jwt.Claims, secret string) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// ParseAccess verifies an access token.
func (i *TokenIssuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(raw, claims, i.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token.
func (i *TokenIssuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims, i.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParsePurpose verifies a purpose token and checks it was minted for purpose.
func (i *TokenIssuer) ParsePurpose(raw, purpose string) (*PurposeClaims, error) {
	claims := &PurposeClaims{}
	if err := i.parse(raw, claims, i.cfg.PurposeSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// FormatID renders a primary key the way tokens carry it.
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID is the single normalization point for identifiers coming from
// tokens and URL parameters.
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}
