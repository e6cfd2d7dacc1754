package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/model"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken is returned by Verify for any token that cannot be trusted.
var ErrInvalidToken = errs.Unauthenticated("Token is not valid")

// Claims represents the JWT payload
type Claims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId"`
	TenantSlug string `json:"tenantSlug"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 identity tokens. Verification is
// stateless: a token stays valid until it expires.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not set")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p that expires exactly ttl after issuance.
func (s *TokenService) Issue(p model.Principal) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := Claims{
		Email:      p.Email,
		Role:       string(p.Role),
		TenantID:   p.TenantID.String(),
		TenantSlug: p.TenantSlug,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and verifies a token. Any failure, including a payload that
// does not decode into a principal, yields ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (*model.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	return &model.Principal{
		UserID:     userID,
		Email:      claims.Email,
		Role:       role,
		TenantID:   tenantID,
		TenantSlug: claims.TenantSlug,
	}, nil
}
