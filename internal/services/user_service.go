package services

import (
	"context"
	"log"
	"strings"
	"time"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
)

// Step-up 2FA locks after this many failed codes inside the window
const (
	totpFailureLimit  = 5
	totpFailureWindow = 15 * time.Minute
)

// UserService handles staff accounts, login, and TOTP enrolment
type UserService struct {
	users        *repositories.UserRepository
	loginLogs    *repositories.LoginLogRepository
	totpAttempts *repositories.TOTPRepository
	jwt          *auth.JWTManager
}

func NewUserService(users *repositories.UserRepository, loginLogs *repositories.LoginLogRepository,
	totpAttempts *repositories.TOTPRepository, jwt *auth.JWTManager) *UserService {
	return &UserService{users: users, loginLogs: loginLogs, totpAttempts: totpAttempts, jwt: jwt}
}

// Login authenticates a staff member. When 2FA is enabled the TOTP code is
// mandatory. The error message never reveals which factor failed.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest, ip, userAgent string) (*models.AuthResponse, error) {
	invalid := models.NewValidationError("invalid credentials", nil)

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, invalid
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, invalid
	}

	if user.TOTPEnabled {
		if req.TOTPCode == "" {
			return nil, models.NewValidationError("totp code required", map[string]string{"totp_code": "required"})
		}
		if err := s.checkTOTP(ctx, user.ID, req.TOTPCode, ip); err != nil {
			return nil, err
		}
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, models.NewInternalError("token generation failed", err)
	}
	if _, err := s.loginLogs.Record(ctx, user.ID, ip, userAgent); err != nil {
		// Audit failure does not block sign-in
		log.Printf("[Users] could not record login for user %d: %v", user.ID, err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// Refresh re-issues a token for a still-active user so sessions survive
// past the original expiry without a fresh password prompt
func (s *UserService) Refresh(ctx context.Context, userID int) (*models.AuthResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, models.NewValidationError("account is deactivated", nil)
	}
	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, models.NewInternalError("token generation failed", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// Logout closes the user's open audit session
func (s *UserService) Logout(ctx context.Context, userID int) error {
	return s.loginLogs.CloseLatest(ctx, userID)
}

// LoginAudit returns the most recent sign-ins, newest first
func (s *UserService) LoginAudit(ctx context.Context, limit int) ([]models.LoginLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.loginLogs.List(ctx, limit)
}

func (s *UserService) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	if err := validateUserRequest(req.Name, req.Email, req.Role, req.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, models.NewInternalError("password hashing failed", err)
	}
	user := &models.User{
		TheaterID:    req.TheaterID,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, theaterID int) ([]*models.User, error) {
	return s.users.List(ctx, theaterID)
}

func (s *UserService) Update(ctx context.Context, id int, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = strings.ToLower(email)
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Role != "" {
		if !validRole(req.Role) {
			return nil, models.NewValidationError("invalid role", map[string]string{"role": req.Role})
		}
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, models.NewInternalError("password hashing failed", err)
		}
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) Deactivate(ctx context.Context, id int) error {
	return s.users.Deactivate(ctx, id)
}

// BeginTOTPEnrolment mints a secret and provisioning URL; 2FA stays off
// until the first code verifies.
func (s *UserService) BeginTOTPEnrolment(ctx context.Context, userID int) (secret, url string, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	secret, url, err = auth.GenerateTOTPSecret(user.Email)
	if err != nil {
		return "", "", models.NewInternalError("totp secret generation failed", err)
	}
	if err := s.users.SetTOTPSecret(ctx, userID, secret, false); err != nil {
		return "", "", err
	}
	return secret, url, nil
}

// ConfirmTOTPEnrolment turns 2FA on after the user proves they hold the
// secret.
func (s *UserService) ConfirmTOTPEnrolment(ctx context.Context, userID int, code string) error {
	secret, err := s.users.GetTOTPSecret(ctx, userID)
	if err != nil {
		return err
	}
	if secret == "" {
		return models.NewPreconditionError("totp enrolment not started")
	}
	if !auth.VerifyTOTPCode(secret, code) {
		return models.NewValidationError("invalid totp code", map[string]string{"totp_code": "mismatch"})
	}
	if err := s.users.SetTOTPSecret(ctx, userID, secret, true); err != nil {
		return err
	}
	log.Printf("[Users] totp enabled for user %d", userID)
	return nil
}

// VerifyTOTP checks a code for an already-enrolled user (step-up auth for
// the agent-credential endpoints).
func (s *UserService) VerifyTOTP(ctx context.Context, userID int, code, ip string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return models.NewPreconditionError("totp is not enabled for this user")
	}
	return s.checkTOTP(ctx, userID, code, ip)
}

// checkTOTP verifies a code against the stored secret, recording the attempt
// and refusing outright once the failure window is exhausted
func (s *UserService) checkTOTP(ctx context.Context, userID int, code, ip string) error {
	failures, err := s.totpAttempts.RecentFailures(ctx, userID, totpFailureWindow)
	if err != nil {
		return err
	}
	if failures >= totpFailureLimit {
		return models.NewRateLimitedError("too many failed codes, try again later")
	}

	secret, err := s.users.GetTOTPSecret(ctx, userID)
	if err != nil {
		return err
	}
	ok := auth.VerifyTOTPCode(secret, code)
	if err := s.totpAttempts.RecordAttempt(ctx, userID, ip, ok); err != nil {
		log.Printf("[Users] could not record totp attempt for user %d: %v", userID, err)
	}
	if !ok {
		return models.NewValidationError("invalid totp code", map[string]string{"totp_code": "mismatch"})
	}
	return nil
}

func validateUserRequest(name, email, role, password string) error {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "required"
	}
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		fields["email"] = "valid email required"
	}
	if !validRole(role) {
		fields["role"] = "must be admin, manager or cashier"
	}
	if len(password) < 8 {
		fields["password"] = "minimum 8 characters"
	}
	if len(fields) > 0 {
		return models.NewValidationError("invalid user", fields)
	}
	return nil
}

func validRole(role string) bool {
	switch role {
	case "admin", "manager", "cashier":
		return true
	}
	return false
}
