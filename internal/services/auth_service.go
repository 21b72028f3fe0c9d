package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

const (
	otpTTL          = 10 * time.Minute
	otpSendLimit    = 5
	otpSendWindow   = 10 * time.Minute
	otpThrottlePref = "otp:send:"
	otpTryLimit     = 5
	otpTryPref      = "otp:try:"
)

var (
	ErrInvalidCredentials = apperror.Unauthenticated("invalid email or password")
	ErrEmailNotVerified   = apperror.Forbidden("email is not verified")
	ErrEmailTaken         = apperror.Conflict("email is already registered")
	ErrInvalidOTP         = apperror.Validation("invalid or expired code")
	ErrOTPThrottled       = apperror.Validation("too many code requests, try again later")
	ErrOTPAttempts        = apperror.Validation("too many incorrect codes, request a new one")
	ErrWeakPassword       = apperror.Validationf("password must be at least %d characters", minPasswordLen)
)

// AuthService owns registration, login and one-time-code flows
type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
	mailer Mailer
	cache  *RedisCache
	now    Clock
}

func NewAuthService(db *gorm.DB, tokens *TokenService, mailer Mailer, cache *RedisCache, clock Clock) *AuthService {
	return &AuthService{db: db, tokens: tokens, mailer: mailer, cache: cache, now: clock.orDefault()}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=50"`
}

// Register creates an unverified member and emails a verification code
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	exists, err := emailExists(ctx, s.db, email, 0)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to register")
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := HashSecret(in.Password)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to register")
	}

	user := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, apperror.Wrap(err, "failed to register")
	}

	if err := s.issueOTP(ctx, &user, models.OTPPurposeVerifyEmail); err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyEmail consumes a verification code and logs the member in
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (string, *models.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil, ErrInvalidOTP
		}
		return "", nil, apperror.Wrap(err, "failed to verify email")
	}
	if user.IsVerified {
		return "", nil, apperror.Conflict("email is already verified")
	}
	if err := s.countOTPAttempt(ctx, user.Email); err != nil {
		return "", nil, err
	}
	if !s.otpMatches(user, models.OTPPurposeVerifyEmail, code) {
		return "", nil, ErrInvalidOTP
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"is_verified":    true,
		"otp_hash":       "",
		"otp_purpose":    "",
		"otp_expires_at": nil,
	}).Error; err != nil {
		return "", nil, apperror.Wrap(err, "failed to verify email")
	}
	user.IsVerified = true

	token, err := s.tokens.Issue(*user)
	if err != nil {
		return "", nil, apperror.Wrap(err, "failed to issue token")
	}
	return token, user, nil
}

// ResendVerification issues a fresh verification code
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperror.Wrap(err, "failed to resend code")
	}
	if user.IsVerified {
		return apperror.Conflict("email is already verified")
	}
	return s.issueOTP(ctx, user, models.OTPPurposeVerifyEmail)
}

// Login checks credentials and returns a signed token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, apperror.Wrap(err, "failed to log in")
	}
	if !CheckSecret(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.tokens.Issue(*user)
	if err != nil {
		return "", nil, apperror.Wrap(err, "failed to issue token")
	}
	return token, user, nil
}

// ForgotPassword emails a reset code. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperror.Wrap(err, "failed to start password reset")
	}
	return s.issueOTP(ctx, user, models.OTPPurposeResetPassword)
}

// ResetPassword consumes a reset code and sets a new password
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidOTP
		}
		return apperror.Wrap(err, "failed to reset password")
	}
	if err := s.countOTPAttempt(ctx, user.Email); err != nil {
		return err
	}
	if !s.otpMatches(user, models.OTPPurposeResetPassword, code) {
		return ErrInvalidOTP
	}

	hash, err := HashSecret(newPassword)
	if err != nil {
		return apperror.Wrap(err, "failed to reset password")
	}
	// a reset proves mailbox ownership
	return apperror.Wrap(s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password_hash":  hash,
		"is_verified":    true,
		"otp_hash":       "",
		"otp_purpose":    "",
		"otp_expires_at": nil,
	}).Error, "failed to reset password")
}

// ChangePassword replaces the password of a logged-in member
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if len(next) < minPasswordLen {
		return ErrWeakPassword
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return apperror.Wrap(err, "failed to change password")
	}
	if !CheckSecret(user.PasswordHash, current) {
		return apperror.Validation("current password is incorrect")
	}
	hash, err := HashSecret(next)
	if err != nil {
		return apperror.Wrap(err, "failed to change password")
	}
	return apperror.Wrap(s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error, "failed to change password")
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issueOTP(ctx context.Context, user *models.User, purpose models.OTPPurpose) error {
	count, err := s.cache.IncrementWindow(ctx, otpThrottlePref+user.Email, otpSendWindow)
	if err == nil && count > otpSendLimit {
		return ErrOTPThrottled
	}

	code, err := GenerateOTP()
	if err != nil {
		return apperror.Wrap(err, "failed to generate code")
	}
	hash, err := HashSecret(code)
	if err != nil {
		return apperror.Wrap(err, "failed to generate code")
	}
	expires := s.now().Add(otpTTL)

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"otp_hash":       hash,
		"otp_purpose":    purpose,
		"otp_expires_at": expires,
	}).Error; err != nil {
		return apperror.Wrap(err, "failed to store code")
	}
	user.OTPHash, user.OTPPurpose, user.OTPExpiresAt = hash, purpose, &expires
	// a fresh code gets a fresh set of guesses
	_ = s.cache.Delete(ctx, otpTryPref+user.Email)

	template := TemplateVerifyEmail
	if purpose == models.OTPPurposeResetPassword {
		template = TemplateResetPassword
	}
	sendQuietly(ctx, s.mailer, user.Email, template, map[string]string{"name": user.Name, "otp": code})
	return nil
}

// countOTPAttempt caps guesses against the current code. Without Redis
// there is no cap.
func (s *AuthService) countOTPAttempt(ctx context.Context, email string) error {
	count, err := s.cache.IncrementWindow(ctx, otpTryPref+email, otpTTL)
	if err == nil && count > otpTryLimit {
		return ErrOTPAttempts
	}
	return nil
}

func (s *AuthService) otpMatches(user *models.User, purpose models.OTPPurpose, code string) bool {
	if user.OTPPurpose != purpose || user.OTPExpiresAt == nil {
		return false
	}
	if s.now().After(*user.OTPExpiresAt) {
		return false
	}
	return CheckSecret(user.OTPHash, strings.TrimSpace(code))
}

func emailExists(ctx context.Context, db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&models.User{}).Where("lower(email) = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// sendQuietly delivers a side-effect email; failures are only logged
func sendQuietly(ctx context.Context, mailer Mailer, to, template string, data map[string]string) {
	if mailer == nil {
		return
	}
	if err := mailer.SendTemplate(ctx, to, template, data); err != nil {
		slog.Warn("email delivery failed", "template", template, "to", to, "err", err)
	}
}
