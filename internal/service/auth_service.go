package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/licensify/licensify/internal/config"
	"github.com/licensify/licensify/internal/domain/user"
	"github.com/licensify/licensify/internal/ierr"
	"github.com/licensify/licensify/internal/storage/memstorage"
	"go.uber.org/zap"
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  user.Repository
	cfg    *config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(users user.Repository, cfg *config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		cfg:    cfg,
		logger: logger.Named("AuthService"),
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ierr.ErrUserNotFound) {
			return "", ierr.ErrInvalidCredentials
		}
		s.logger.Error("User lookup failed during login", zap.Error(err))
		return "", fmt.Errorf("user lookup failed: %w", err)
	}

	if !memstorage.CheckPassword(u.PasswordHash, password) {
		s.logger.Info("Invalid password attempt", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return "", fmt.Errorf("token signing failed: %w", err)
	}

	s.logger.Info("User logged in", zap.String("username", u.Username))
	return signed, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, rawToken string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(rawToken, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil {
		s.logger.Debug("Token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ierr.ErrTokenNoClaims
	}

	return claims, nil
}
