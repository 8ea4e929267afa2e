package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mesaqr/api/internal/enum"
)

const (
	staffTokenTTL = 12 * time.Hour
	tableTokenTTL = 4 * time.Hour
)

// ErrTableRequired is returned when a customer token is requested without a table.
var ErrTableRequired = errors.New("customer tokens require a table id")

// Claims identifies a browser session. Customer sessions are bound to one
// table; staff sessions carry no table.
type Claims struct {
	Role    string `json:"role"`
	TableID string `json:"table_id,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the claims belong to a staff role.
func (c *Claims) IsStaff() bool {
	return enum.IsStaffRole(c.Role)
}

// GenerateToken signs a token for role. tableID is required for customers
// and ignored for staff.
func GenerateToken(secret, role, tableID string) (string, error) {
	ttl := staffTokenTTL
	if role == enum.RoleCustomer {
		if tableID == "" {
			return "", ErrTableRequired
		}
		ttl = tableTokenTTL
	} else {
		tableID = ""
	}
	now := time.Now()
	claims := Claims{
		Role:    role,
		TableID: tableID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
