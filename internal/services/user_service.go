package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var ErrUserNotFound = apperror.NotFound("user not found")

// Page is a 1-based page request
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is returned alongside paged lists
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPagination(p Page, total int64) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

type UserFilter struct {
	Search string
	Role   models.Role
	Page
}

type CreateUserInput struct {
	Name       string      `json:"name" validate:"required,max=255"`
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required"`
	Phone      string      `json:"phone" validate:"omitempty,max=50"`
	Role       models.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsVerified bool        `json:"isVerified"`
}

// UpdateUserInput carries optional fields; nil means unchanged
type UpdateUserInput struct {
	Name           *string      `json:"name" validate:"omitempty,max=255"`
	Email          *string      `json:"email" validate:"omitempty,email"`
	Phone          *string      `json:"phone" validate:"omitempty,max=50"`
	Role           *models.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsVerified     *bool        `json:"isVerified"`
	MembershipType *string      `json:"membershipType" validate:"omitempty,max=50"`
	BiometricID    *string      `json:"biometricId" validate:"omitempty,max=100"`
}

// ProfileInput is what a member may change about themselves
type ProfileInput struct {
	Name        *string    `json:"name" validate:"omitempty,max=255"`
	Phone       *string    `json:"phone" validate:"omitempty,max=50"`
	Gender      *string    `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	HeightCM    *float64   `json:"heightCm" validate:"omitempty,gte=0,lte=300"`
	WeightKG    *float64   `json:"weightKg" validate:"omitempty,gte=0,lte=500"`
	FitnessGoal *string    `json:"fitnessGoal" validate:"omitempty,max=100"`
}

type NotifPreferenceInput struct {
	Channel            models.NotificationChannel `json:"channel" validate:"required,oneof=email whatsapp none"`
	WhatsappTargetType string                     `json:"whatsappTargetType" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string                     `json:"whatsappGroupId" validate:"required_if=WhatsappTargetType group,max=100"`
}

// UserService covers member self-service and admin user management
type UserService struct {
	db     *gorm.DB
	mailer Mailer
	now    Clock
}

func NewUserService(db *gorm.DB, mailer Mailer, clock Clock) *UserService {
	return &UserService{db: db, mailer: mailer, now: clock.orDefault()}
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// List pages users matching a case-insensitive name/email search
func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, Pagination, error) {
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.User{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(email) LIKE ?", like, like)
	}
	if f.Role != "" {
		if !f.Role.Valid() {
			return nil, Pagination{}, apperror.Validation("invalid role filter")
		}
		q = q.Where("role = ?", f.Role)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list users")
	}

	var users []models.User
	if err := q.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list users")
	}
	return users, newPagination(page, total), nil
}

// Create adds a user on behalf of an admin
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperror.Validation("invalid role")
	}

	exists, err := emailExists(ctx, s.db, email, 0)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to create user")
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := HashSecret(in.Password)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to create user")
	}
	user := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
		IsVerified:   in.IsVerified,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, apperror.Wrap(err, "failed to create user")
	}
	return &user, nil
}

// Update applies an admin edit
func (s *UserService) Update(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		exists, err := emailExists(ctx, s.db, email, id)
		if err != nil {
			return nil, apperror.Wrap(err, "failed to update user")
		}
		if exists {
			return nil, ErrEmailTaken
		}
		updates["email"] = email
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperror.Validation("invalid role")
		}
		updates["role"] = *in.Role
	}
	if in.IsVerified != nil {
		updates["is_verified"] = *in.IsVerified
	}
	if in.MembershipType != nil {
		updates["membership_type"] = strings.TrimSpace(*in.MembershipType)
	}
	if in.BiometricID != nil {
		if v := strings.TrimSpace(*in.BiometricID); v != "" {
			updates["biometric_id"] = v
		} else {
			updates["biometric_id"] = nil
		}
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, apperror.Conflict("email or biometric id already in use")
		}
		return nil, apperror.Wrap(err, "failed to update user")
	}
	return s.Get(ctx, id)
}

// Delete removes a user and everything that belongs to them
func (s *UserService) Delete(ctx context.Context, id uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, owned := range []any{
			&models.AttendanceRecord{},
			&models.WorkoutSession{},
			&models.WorkoutPlanAssignment{},
			&models.DietPlanAssignment{},
			&models.AnnouncementStatus{},
			&models.UserNotifPreference{},
			&models.PaymentSession{},
		} {
			if err := tx.Where("user_id = ?", id).Delete(owned).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	}), "failed to delete user")
}

// UpdateProfile applies a member's own profile edit
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Gender != nil {
		updates["gender"] = *in.Gender
	}
	if in.DateOfBirth != nil {
		if in.DateOfBirth.After(s.now()) {
			return nil, apperror.Validation("date of birth cannot be in the future")
		}
		updates["date_of_birth"] = *in.DateOfBirth
	}
	if in.HeightCM != nil {
		updates["height_cm"] = *in.HeightCM
	}
	if in.WeightKG != nil {
		updates["weight_kg"] = *in.WeightKG
	}
	if in.FitnessGoal != nil {
		updates["fitness_goal"] = strings.TrimSpace(*in.FitnessGoal)
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to update profile")
	}
	return s.Get(ctx, id)
}

// GrantHubAccess activates or extends the premium hub add-on
func (s *UserService) GrantHubAccess(ctx context.Context, id uint, months int) (*models.User, error) {
	if months < 1 || months > 24 {
		return nil, apperror.Validation("months must be between 1 and 24")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := grantHubAccess(ctx, s.db, user, months, s.now()); err != nil {
		return nil, err
	}
	sendHubActivated(ctx, s.mailer, user)
	return user, nil
}

// RevokeHubAccess clears the premium hub add-on
func (s *UserService) RevokeHubAccess(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.RevokeHubAccess()
	if err := s.db.WithContext(ctx).Model(user).Select(
		"has_premium_hub_access", "hub_access_start_date", "hub_access_end_date",
	).Updates(user).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to revoke hub access")
	}
	return user, nil
}

// SetMembership replaces the base membership tier
func (s *UserService) SetMembership(ctx context.Context, id uint, membershipType string, months int) (*models.User, error) {
	membershipType = strings.TrimSpace(membershipType)
	if membershipType == "" {
		return nil, apperror.Validation("membership type is required")
	}
	if months < 1 || months > 60 {
		return nil, apperror.Validation("months must be between 1 and 60")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.SetMembership(membershipType, s.now(), months)
	if err := s.db.WithContext(ctx).Model(user).Select(
		"membership_type", "membership_start_date", "membership_end_date",
	).Updates(user).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to set membership")
	}
	return user, nil
}

// NotifPreference returns the stored preference or the default one
func (s *UserService) NotifPreference(ctx context.Context, userID uint) (models.UserNotifPreference, error) {
	return loadNotifPreference(ctx, s.db, userID)
}

// SaveNotifPreference upserts the member's delivery preference
func (s *UserService) SaveNotifPreference(ctx context.Context, userID uint, in NotifPreferenceInput) (models.UserNotifPreference, error) {
	target := in.WhatsappTargetType
	if target == "" {
		target = models.WhatsappTargetTypePersonal
	}
	groupID := strings.TrimSpace(in.WhatsappGroupID)
	if target == models.WhatsappTargetTypeGroup && groupID == "" {
		return models.UserNotifPreference{}, apperror.Validation("whatsapp group id is required for group delivery")
	}
	if target == models.WhatsappTargetTypePersonal {
		groupID = ""
	}

	pref := models.UserNotifPreference{
		UserID:             userID,
		Channel:            in.Channel,
		WhatsappTargetType: target,
		WhatsappGroupID:    groupID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel", "whatsapp_target_type", "whatsapp_group_id", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return models.UserNotifPreference{}, apperror.Wrap(err, "failed to save notification preference")
	}
	return loadNotifPreference(ctx, s.db, userID)
}

func loadNotifPreference(ctx context.Context, db *gorm.DB, userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if isNotFound(err) {
		return models.DefaultNotifPreference(userID), nil
	}
	if err != nil {
		return pref, apperror.Wrap(err, "failed to load notification preference")
	}
	return pref, nil
}

// grantHubAccess persists an extension of the hub window on user
func grantHubAccess(ctx context.Context, db *gorm.DB, user *models.User, months int, now time.Time) error {
	user.GrantHubAccess(now, months)
	err := db.WithContext(ctx).Model(user).Select(
		"has_premium_hub_access", "hub_access_start_date", "hub_access_end_date",
	).Updates(user).Error
	return apperror.Wrap(err, "failed to grant hub access")
}

func sendHubActivated(ctx context.Context, mailer Mailer, user *models.User) {
	end := ""
	if user.HubAccessEndDate != nil {
		end = user.HubAccessEndDate.Format("2 January 2006")
	}
	sendQuietly(ctx, mailer, user.Email, TemplateHubActivated, map[string]string{
		"name":     user.Name,
		"end_date": end,
	})
}
