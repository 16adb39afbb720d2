package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/platform/ctxutil"
	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

var errInvalidToken = errors.New("invalid or expired token")

type AuthConfig struct {
	SecretKey string
	Issuer    string
	AccessTTL time.Duration
}

func AuthConfigFromEnv() AuthConfig {
	return AuthConfig{
		SecretKey: envutil.String("JWT_SECRET_KEY", ""),
		Issuer:    envutil.String("JWT_ISSUER", "minischools"),
		AccessTTL: envutil.Duration("ACCESS_TOKEN_TTL", 24*time.Hour),
	}
}

// AuthService verifies bearer tokens issued by the accounts service. The
// subject claim is the creator id.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(creatorID uuid.UUID) (string, error)
}

type authService struct {
	log *logger.Logger
	cfg AuthConfig
}

func NewAuthService(baseLog *logger.Logger, cfg AuthConfig) (AuthService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	return &authService{log: baseLog.With("service", "AuthService"), cfg: cfg}, nil
}

func (as *authService) IssueToken(creatorID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   creatorID.String(),
		Issuer:    as.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.cfg.SecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, errInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.cfg.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ctx, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return ctx, errInvalidToken
	}
	creatorID, err := uuid.Parse(claims.Subject)
	if err != nil || creatorID == uuid.Nil {
		return ctx, fmt.Errorf("invalid creator id in token: %w", errInvalidToken)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		CreatorID:   creatorID,
	}), nil
}
