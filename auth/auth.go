// Package auth verifies the bearer credentials presented on connect.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"showdown-arena/presence"
)

// ErrInvalidToken is returned for any credential that does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer credential into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (presence.Identity, error)
}

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWTVerifier validates HS256 tokens carrying the user id in sub and the
// display name in a username claim.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (presence.Identity, error) {
	if err := ctx.Err(); err != nil {
		return presence.Identity{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return presence.Identity{}, fmt.Errorf("%w: token is required", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var parsed claims
	if _, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return presence.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := strings.TrimSpace(parsed.Subject)
	if userID == "" {
		return presence.Identity{}, fmt.Errorf("%w: sub is required", ErrInvalidToken)
	}
	username := strings.TrimSpace(parsed.Username)
	if username == "" {
		username = userID
	}
	return presence.Identity{UserID: userID, Username: username}, nil
}

// IssueToken signs a token for id. Credential issuance belongs to the account
// service; this exists for development and tests.
func IssueToken(secret, issuer string, id presence.Identity, ttl time.Duration, now time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: id.Username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

var _ Verifier = (*JWTVerifier)(nil)
