package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/middleware"
	"github.com/onchaincommerce/minibet/types"
)

// Context keys for caller information
const (
	AddressKey = "address"
	ClaimsKey  = "claims"
)

// RoleAdmin marks tokens issued to the contract owner.
const RoleAdmin = "admin"

// Claims represents the JWT claims structure
type Claims struct {
	Address string `json:"address"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret      string
	TokenPrefix string // "Bearer"
	SkipPaths   []string
}

// DefaultJWTConfig returns default JWT configuration
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:      secret,
		TokenPrefix: "Bearer",
		SkipPaths:   []string{"/health", "/api/health"},
	}
}

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string, logger zerolog.Logger) gin.HandlerFunc {
	return JWTMiddlewareWithConfig(DefaultJWTConfig(secret), logger)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.NewErrorResponse(
		http.StatusUnauthorized,
		time.Now().Format(time.RFC3339),
		c.Request.URL.Path,
		message,
		apperrors.ErrUnauthorized,
		middleware.GetTraceID(c),
	))
}

// JWTMiddlewareWithConfig creates a JWT middleware with custom configuration
func JWTMiddlewareWithConfig(config JWTConfig, logger zerolog.Logger) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if config.Secret == "" {
			logger.Warn().Msg("JWT secret not configured, rejecting request")
			unauthorized(c, "Authentication is not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn().Msg("Missing Authorization header")
			unauthorized(c, "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != config.TokenPrefix {
			logger.Warn().Msg("Invalid Authorization header format")
			unauthorized(c, "Invalid Authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := ParseToken(config.Secret, parts[1])
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to parse JWT token")
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(AddressKey, claims.Address)
		c.Set(ClaimsKey, claims)

		logger.Debug().
			Str("address", claims.Address).
			Str("role", claims.Role).
			Msg("JWT authentication successful")

		c.Next()
	}
}

// ParseToken validates an HS256 token and returns its claims. The address
// claim must be a hex account address.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !common.IsHexAddress(claims.Address) {
		return nil, errors.New("address claim is not a hex address")
	}
	return claims, nil
}

// GetAddress extracts the caller address from context
func GetAddress(c *gin.Context) (common.Address, bool) {
	v, exists := c.Get(AddressKey)
	if !exists {
		return common.Address{}, false
	}
	s, ok := v.(string)
	if !ok || !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// GetClaims extracts full claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claimsObj, ok := claims.(*Claims)
	return claimsObj, ok
}

// GenerateToken generates a new JWT token for address
func GenerateToken(secret string, address common.Address, role string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Address: address.Hex(),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address.Hex()),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
