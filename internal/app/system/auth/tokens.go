package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, expired, and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	errShortSecret  = errors.New("jwt secrets must be at least 32 characters")
)

// Claims is the JWT payload for both token kinds.
type Claims struct {
	UserID      string   `json:"userId"`
	Phone       string   `json:"phone"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Kind        string   `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens is the pair handed to clients after login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Issuer signs and parses access and refresh tokens. The two kinds use
// different secrets so a leaked refresh secret cannot mint access tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer validates the secrets and returns an Issuer.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 {
		return nil, errShortSecret
	}
	if accessTTL <= 0 {
		accessTTL = 7 * 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// Issue returns a fresh token pair for u.
func (i *Issuer) Issue(u User) (Tokens, error) {
	access, err := i.sign(u, kindAccess, i.accessTTL, i.accessSecret)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := i.sign(u, kindRefresh, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

func (i *Issuer) sign(u User, kind string, ttl time.Duration, secret []byte) (string, error) {
	now := i.now()
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	claims := Claims{
		UserID:      u.ID,
		Phone:       u.Phone,
		Role:        u.Role,
		Permissions: perms,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccess validates an access token.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, kindAccess, i.accessSecret)
}

// ParseRefresh validates a refresh token.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, kindRefresh, i.refreshSecret)
}

func (i *Issuer) parse(token, kind string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
