package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

func jwtTestConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "canteen-backend"
	return cfg
}

func TestUserTokenRoundTrip(t *testing.T) {
	m := NewJWTManager(jwtTestConfig("s1"))
	theaterID := 4
	token, err := m.GenerateToken(&models.User{
		ID:        12,
		TheaterID: &theaterID,
		Email:     "manager@canteen.local",
		Role:      "manager",
		IsActive:  true,
	})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 12, claims.UserID)
	require.NotNil(t, claims.TheaterID)
	assert.Equal(t, 4, *claims.TheaterID)
	assert.Equal(t, "manager@canteen.local", claims.Email)
	assert.Equal(t, "manager", claims.Role)
	assert.True(t, claims.IsActive)
	assert.Equal(t, "canteen-backend", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager(jwtTestConfig("s1")).GenerateToken(&models.User{
		ID: 1, Email: "a@canteen.local", Role: "admin", IsActive: true,
	})
	require.NoError(t, err)

	_, err = NewJWTManager(jwtTestConfig("s2")).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager(jwtTestConfig("s1")).ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestAgentTokenRoundTrip(t *testing.T) {
	m := NewJWTManager(jwtTestConfig("s1"))
	token, err := m.GenerateAgentToken(7, "agent-pvr-7")
	require.NoError(t, err)

	claims, err := m.ValidateAgentToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.TheaterID)
	assert.Equal(t, "agent-pvr-7", claims.Username)
	assert.Equal(t, "agent", claims.Type)
}

func TestAgentTokenIsNotAStaffToken(t *testing.T) {
	m := NewJWTManager(jwtTestConfig("s1"))

	staffToken, err := m.GenerateToken(&models.User{
		ID: 1, Email: "a@canteen.local", Role: "admin", IsActive: true,
	})
	require.NoError(t, err)

	// Staff tokens lack the agent type marker
	_, err = m.ValidateAgentToken(staffToken)
	assert.Error(t, err)
}
