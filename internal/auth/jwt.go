package auth

import (
	"errors"
	"time"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
	"canteen-backend/internal/timeutil"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID    int    `json:"user_id"`
	TheaterID *int   `json:"theater_id,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	cfg *config.Config
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{cfg: cfg}
}

// GenerateToken creates a new JWT token for a user
func (j *JWTManager) GenerateToken(user *models.User) (string, error) {
	now := timeutil.Now()
	expirationTime := now.Add(time.Duration(j.cfg.JWT.ExpirationHours) * time.Hour)

	claims := &Claims{
		UserID:    user.ID,
		TheaterID: user.TheaterID,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.cfg.JWT.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWT.Secret))
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.cfg.JWT.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// AgentClaims identify a theater agent subprocess. Agent tokens are long
// lived (the supervisor restarts agents with stored credentials) and grant
// only the websocket channel, never the staff API.
type AgentClaims struct {
	TheaterID int    `json:"theater_id"`
	Username  string `json:"username"`
	Type      string `json:"type"` // always "agent"
	jwt.RegisteredClaims
}

// GenerateAgentToken creates a theater-scoped token for an agent process
func (j *JWTManager) GenerateAgentToken(theaterID int, username string) (string, error) {
	now := timeutil.Now()

	claims := &AgentClaims{
		TheaterID: theaterID,
		Username:  username,
		Type:      "agent",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.cfg.JWT.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWT.Secret))
}

// ValidateAgentToken verifies an agent token and returns its claims
func (j *JWTManager) ValidateAgentToken(tokenString string) (*AgentClaims, error) {
	claims := &AgentClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.cfg.JWT.Secret), nil
	})

	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Type != "agent" {
		return nil, errors.New("invalid agent token")
	}

	return claims, nil
}
