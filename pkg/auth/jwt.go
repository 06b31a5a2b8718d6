package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = "platform_user"

type Auth struct {
	secret    []byte
	debugMode bool
}

// New builds the platform auth helper. In debug mode token signatures
// are not verified, which keeps local frontend work off the identity
// service.
func New(secret string, debugMode bool) *Auth {
	return &Auth{
		secret:    []byte(secret),
		debugMode: debugMode,
	}
}

// UserData is the authenticated identity extracted from a bearer token.
type UserData struct {
	ID          string
	Username    string
	DisplayName string
}

type platformClaims struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Info("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		user, err := a.ExtractUserData(token)
		if err != nil {
			log.Info("invalid platform token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid auth token"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// ExtractUserData validates the token and returns the identity it
// carries. Debug mode skips signature verification.
func (a *Auth) ExtractUserData(token string) (*UserData, error) {
	var claims platformClaims

	if a.debugMode {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
			return nil, err
		}
	} else {
		_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, err
		}
	}

	return &UserData{
		ID:          claims.Subject,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
	}, nil
}

// IssueToken signs a token for the given identity. Used by support
// tooling and tests; production tokens come from the identity service.
func (a *Auth) IssueToken(user UserData, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := platformClaims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// UserFromContext returns the identity set by the middleware.
func UserFromContext(c *gin.Context) (*UserData, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*UserData)
	return user, ok
}
