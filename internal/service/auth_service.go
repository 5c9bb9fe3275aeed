package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus_parking/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid admin secret")
var ErrTokenInvalid = errors.New("token invalid or expired")

const tokenSubject = "admin"

// AuthService gates operator actions behind a single shared secret. Only the bcrypt hash of
// the secret is held; a successful login yields a short-lived HS256 token.
type AuthService struct {
	secretHash []byte
	jwtSecret  []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(adminSecret string, jwtSecret []byte, tokenTTL time.Duration) (*AuthService, error) {
	if adminSecret == "" {
		return nil, errors.New("admin secret must not be empty")
	}
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt signing key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin secret: %w", err)
	}
	return &AuthService{
		secretHash: hash,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, dto domain.AdminLoginDTO) (*domain.AuthResponseDTO, error) {
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(dto.Secret)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":  tokenSubject,
		"exp":  expiresAt.Unix(),
		"iat":  now.Unix(),
		"role": domain.RoleAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &domain.AuthResponseDTO{
		Token:     tokenString,
		Role:      domain.RoleAdmin,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// ValidateToken is used by the auth middleware.
func (s *AuthService) ValidateToken(tokenString string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, nil, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, nil, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, nil, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, nil, ErrTokenInvalid
	}
	return token, claims, nil
}
