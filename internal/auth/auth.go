// Package auth registers users on first login and issues the session tokens
// that carry the acting user on every API call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/storage"
)

const issuer = "archnet"

// Session is an issued token and the user it belongs to.
type Session struct {
	User      *core.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Created   bool       `json:"created"`
}

// Service implements login-or-register and token handling.
type Service struct {
	store    storage.Ledger
	validate *validator.Validate
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates an auth Service.
func NewService(store storage.Ledger, cfg *config.AuthConfig, logger *slog.Logger) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// NormalizeEmail lowercases and trims an address and checks its syntax.
func (s *Service) NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return "", fmt.Errorf("%w: %q is not a valid email address", core.ErrValidation, email)
	}
	return email, nil
}

// Login returns the user for email, creating it with the signup credit grant
// on first use, together with a fresh session token.
func (s *Service) Login(ctx context.Context, email string) (*Session, error) {
	email, err := s.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, created, err := s.store.CreateUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if created {
		s.logger.Info("new user registered", "user", email, "credits", user.Credits)
	}

	token, expiresAt, err := s.IssueToken(email)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt, Created: created}, nil
}

// IssueToken signs an HS256 token whose subject is the user's email.
func (s *Service) IssueToken(email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies a token and returns the email it was issued for.
func (s *Service) ParseToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", core.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", core.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: invalid token: %w", core.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", core.ErrUnauthorized)
	}
	return claims.Subject, nil
}
