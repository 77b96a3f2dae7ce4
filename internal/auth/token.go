package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/golang-jwt/jwt/v5"
)

type TokenGenerator interface {
	Generate(user User, ttl time.Duration) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret     []byte
	Issuer     string
	DefaultTTL time.Duration
}

// NewJWTTokenGenerator creates an HS256 generator. Tokens minted elsewhere
// must use the same secret and issuer.
func NewJWTTokenGenerator(secret, issuer string, defaultTTL time.Duration) *JWTTokenGenerator {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &JWTTokenGenerator{
		Secret:     []byte(secret),
		Issuer:     issuer,
		DefaultTTL: defaultTTL,
	}
}

func (j *JWTTokenGenerator) Generate(user User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = j.DefaultTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID:      user.ID,
		Email:       user.Email,
		Permissions: user.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
