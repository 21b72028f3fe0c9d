package models

import (
	"time"
)

// Role is the closed set of permission levels
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// CanManageClub reports whether the role may use the admin surface
func (r Role) CanManageClub() bool {
	return r == RoleAdmin
}

// BypassesHubGate reports whether the role skips the premium hub check
func (r Role) BypassesHubGate() bool {
	return r == RoleAdmin
}

// OTPPurpose tags what a pending one-time code is for
type OTPPurpose string

const (
	OTPPurposeVerifyEmail   OTPPurpose = "verify_email"
	OTPPurposeResetPassword OTPPurpose = "reset_password"
)

// User represents a club member or staff account
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string `gorm:"type:varchar(255)" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	PasswordHash string `gorm:"type:varchar(255)" json:"-"`
	Role         Role   `gorm:"type:varchar(20);default:'user'" json:"role"`
	IsVerified   bool   `gorm:"default:false" json:"is_verified"`

	OTPHash      string     `gorm:"type:varchar(255)" json:"-"`
	OTPPurpose   OTPPurpose `gorm:"type:varchar(30)" json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	// Profile
	Gender      string     `gorm:"type:varchar(20)" json:"gender,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	HeightCM    float64    `json:"height_cm,omitempty"`
	WeightKG    float64    `json:"weight_kg,omitempty"`
	FitnessGoal string     `gorm:"type:varchar(100)" json:"fitness_goal,omitempty"`

	// Base membership tier
	MembershipType      string     `gorm:"type:varchar(50);index" json:"membership_type"`
	MembershipStartDate *time.Time `json:"membership_start_date"`
	MembershipEndDate   *time.Time `json:"membership_end_date"`

	// Premium hub add-on
	HasPremiumHubAccess bool       `gorm:"default:false" json:"has_premium_hub_access"`
	HubAccessStartDate  *time.Time `json:"hub_access_start_date"`
	HubAccessEndDate    *time.Time `json:"hub_access_end_date"`

	AttendanceStreak   int    `gorm:"default:0" json:"attendance_streak"`
	LastAttendanceDate string `gorm:"type:varchar(10)" json:"last_attendance_date,omitempty"`

	CurrentWorkoutPlanID *uint `json:"current_workout_plan_id"`
	CurrentDietPlanID    *uint `json:"current_diet_plan_id"`

	// Identifier the gym's biometric device uses for this member
	BiometricID *string `gorm:"type:varchar(100);uniqueIndex" json:"biometric_id,omitempty"`
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role.CanManageClub()
}

// HasActiveHubAccess applies the premium hub rule at time now
func (u User) HasActiveHubAccess(now time.Time) bool {
	if !u.HasPremiumHubAccess {
		return false
	}
	return u.HubAccessEndDate == nil || !now.After(*u.HubAccessEndDate)
}

// GrantHubAccess activates the add-on for the given number of months.
// An unexpired grant is extended from its current end date; an active grant
// without an end date is already unlimited and stays as it is.
func (u *User) GrantHubAccess(now time.Time, months int) {
	active := u.HasActiveHubAccess(now)
	if active && u.HubAccessEndDate == nil {
		return
	}
	start := now
	if active {
		start = *u.HubAccessEndDate
		if u.HubAccessStartDate == nil {
			u.HubAccessStartDate = &now
		}
	} else {
		u.HubAccessStartDate = &now
	}
	end := start.AddDate(0, months, 0)
	u.HasPremiumHubAccess = true
	u.HubAccessEndDate = &end
}

// RevokeHubAccess clears the add-on and its window
func (u *User) RevokeHubAccess() {
	u.HasPremiumHubAccess = false
	u.HubAccessStartDate = nil
	u.HubAccessEndDate = nil
}

// SetMembership replaces the base membership tier
func (u *User) SetMembership(membershipType string, now time.Time, months int) {
	end := now.AddDate(0, months, 0)
	u.MembershipType = membershipType
	u.MembershipStartDate = &now
	u.MembershipEndDate = &end
}
