package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService emite y valida bearer tokens JWT con el usuario como subject.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

type Claims struct {
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		// Una sola duración explícita, alineada con el max-age de la cookie.
		ttl = 8 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "streamwatch",
	}
}

// Issue firma un access token para el usuario con expiración fija.
func (s *TokenService) Issue(username string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(username) == "" {
		return "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify valida firma, emisor y expiración, y devuelve el username.
func (s *TokenService) Verify(tokenString string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Issuer) != s.issuer {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
