package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/config"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

// AuthService validates bearer tokens issued by the console's identity
// service. Credential and session flows live there, not here; this service
// only turns a token into a typed session.
type AuthService struct {
	config config.JWTConfig
	logger *zap.Logger
}

// NewAuthService constructs AuthService.
func NewAuthService(cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: cfg, logger: logger}
}

// ValidateToken parses and validates an access token, building the typed
// permission set once. Tokens carrying malformed permission payloads are
// rejected and logged rather than coerced.
func (s *AuthService) ValidateToken(tokenString string) (*models.AuthContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	permissions, err := models.NewPermissionSet(claims.Permissions)
	if err != nil {
		s.logger.Warn("rejected token with malformed permissions",
			zap.String("user_id", claims.UserID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "malformed permissions")
	}

	return &models.AuthContext{Claims: claims, Permissions: permissions}, nil
}
