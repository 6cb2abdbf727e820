package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleOperator is the only role accepted on the admin API.
const RoleOperator = "operator"

const operatorTokenExpiry = 12 * time.Hour

// ErrNotOperator is returned for a valid token without the operator role.
var ErrNotOperator = errors.New("token does not carry the operator role")

// OperatorClaims represents the JWT claims of an operator token. Subject is
// the operator's name.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token operations
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignOperatorToken issues a token for the admin API. A ttl of zero uses the
// default expiry.
func (s *JWTService) SignOperatorToken(operator string, ttl time.Duration) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("operator name is required")
	}
	if ttl <= 0 {
		ttl = operatorTokenExpiry
	}
	now := s.now()
	claims := &OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken verifies and parses an operator token
func (s *JWTService) VerifyToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Role != RoleOperator {
		return nil, ErrNotOperator
	}

	return claims, nil
}
