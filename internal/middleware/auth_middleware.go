package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	apperrors "github.com/ikkim/shopcore-backend/internal/errors"
	"github.com/ikkim/shopcore-backend/pkg/util"
)

// Context keys for caller identity
const (
	UserIDKey       = "user_id"
	UserEmailKey    = "user_email"
	UserRoleKey     = "user_role"
	GuestSessionKey = "guest_session"

	GuestSessionHeader = "X-Guest-Session"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// validateAccess accepts access tokens only. Refresh and guest tokens are rejected.
func (m *AuthMiddleware) validateAccess(token string) (*util.Claims, error) {
	claims, err := util.ValidateToken(token, m.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != util.TokenTypeAccess || claims.UserID == 0 {
		return nil, util.ErrInvalidToken
	}
	return claims, nil
}

func setClaims(c *gin.Context, claims *util.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, model.UserRole(claims.Role))
}

// Authenticate requires a user access token. The websocket endpoint may pass it as ?token=.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string
		if c.GetHeader("Authorization") != "" {
			var ok bool
			token, ok = bearerToken(c)
			if !ok {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authorization header format")
				c.Abort()
				return
			}
		} else {
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.Unauthorized(c, "Authorization header is required")
				c.Abort()
				return
			}
		}

		claims, err := m.validateAccess(token)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if errors.Is(err, util.ErrExpiredToken) {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Token has expired")
			} else {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid or expired token")
			}
			c.Abort()
			return
		}

		setClaims(c, claims)
		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		})
		c.Next()
	}
}

// OptionalAuthenticate sets user info when a valid access token is present and
// otherwise continues anonymously.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := m.validateAccess(token)
		if err != nil {
			log.Debug("Token validation failed - continuing as guest", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// GuestSession reads a signed guest token from X-Guest-Session. Requests that
// are already authenticated as a user ignore the header.
func (m *AuthMiddleware) GuestSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, isUser := GetUserID(c); isUser {
			c.Next()
			return
		}

		token := c.GetHeader(GuestSessionHeader)
		if token == "" {
			c.Next()
			return
		}

		sessionID, err := util.ValidateGuestToken(token, m.jwtSecret)
		if err != nil {
			GetLoggerFromContext(c).Warn("Guest session rejected", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			code := apperrors.AuthTokenInvalid
			if errors.Is(err, util.ErrExpiredToken) {
				code = apperrors.AuthTokenExpired
			}
			apperrors.RespondWithError(c, http.StatusUnauthorized, code, "Invalid or expired guest session")
			c.Abort()
			return
		}

		c.Set(GuestSessionKey, sessionID)
		c.Next()
	}
}

// RequireShopper aborts unless the caller is a signed-in user or holds a guest session.
func (m *AuthMiddleware) RequireShopper() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetUserID(c); ok {
			c.Next()
			return
		}
		if _, ok := GetGuestSession(c); ok {
			c.Next()
			return
		}
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthGuestSessionNeeded,
			"Sign in or start a guest session first")
		c.Abort()
	}
}

// RequireRole checks if user has required role
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetUserRole(c)
		if !exists {
			log.Warn("Role information not found in context", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzRoleNotFound, "Role information not found")
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		userID, _ := GetUserID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		apperrors.Forbidden(c, "Insufficient permissions")
		c.Abort()
	}
}

func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok && id != 0
}

func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok
}

func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}

func GetGuestSession(c *gin.Context) (string, bool) {
	session := c.GetString(GuestSessionKey)
	return session, session != ""
}
