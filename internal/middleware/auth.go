package middleware

import (
	"context"
	"net/http"
	"strings"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/repositories"
	"canteen-backend/pkg/utils"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const TheaterIDKey contextKey = "theater_id"
const EmailKey contextKey = "email"
const RoleKey contextKey = "role"
const AgentTheaterIDKey contextKey = "agent_theater_id"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	userRepo   *repositories.UserRepository
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, userRepo *repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		userRepo:   userRepo,
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// Authenticate validates the staff JWT and loads the current user state from
// the database, so deactivation and role changes apply immediately.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			utils.ErrorStatus(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			utils.ErrorStatus(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			utils.ErrorStatus(w, http.StatusUnauthorized, "user not found")
			return
		}
		if !user.IsActive {
			utils.ErrorStatus(w, http.StatusForbidden, "account suspended")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
		ctx = context.WithValue(ctx, EmailKey, user.Email)
		ctx = context.WithValue(ctx, RoleKey, user.Role)
		theaterID := 0 // 0 = platform scope
		if user.TheaterID != nil {
			theaterID = *user.TheaterID
		}
		ctx = context.WithValue(ctx, TheaterIDKey, theaterID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps Authenticate and additionally checks the user's role
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetRoleFromContext(r.Context())
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.ErrorStatus(w, http.StatusForbidden, "insufficient permissions")
		}))
	}
}

// RequireAdmin ensures the user has the admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole("admin")(next)
}

// AuthenticateAgent validates an agent token for the websocket channel. The
// token may arrive as a Bearer header or a ?token= query parameter (browser
// websocket clients cannot set headers).
func (m *AuthMiddleware) AuthenticateAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			utils.ErrorStatus(w, http.StatusUnauthorized, "agent token required")
			return
		}

		claims, err := m.jwtManager.ValidateAgentToken(token)
		if err != nil {
			utils.ErrorStatus(w, http.StatusUnauthorized, "invalid agent token")
			return
		}

		ctx := context.WithValue(r.Context(), AgentTheaterIDKey, claims.TheaterID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetTheaterIDFromContext extracts the user's theater scope (0 = platform)
func GetTheaterIDFromContext(ctx context.Context) (int, bool) {
	theaterID, ok := ctx.Value(TheaterIDKey).(int)
	return theaterID, ok
}

// GetEmailFromContext extracts email from request context
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetAgentTheaterIDFromContext extracts the agent's theater from context
func GetAgentTheaterIDFromContext(ctx context.Context) (int, bool) {
	theaterID, ok := ctx.Value(AgentTheaterIDKey).(int)
	return theaterID, ok
}
