package models

import (
	"slices"
	"sort"
	"time"
)

type AnnouncementPriority string

const (
	PriorityNormal    AnnouncementPriority = "normal"
	PriorityImportant AnnouncementPriority = "important"
	PriorityCritical  AnnouncementPriority = "critical"
)

// Rank orders priorities, higher first
func (p AnnouncementPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 2
	case PriorityImportant:
		return 1
	default:
		return 0
	}
}

type AudienceType string

const (
	AudienceAll             AudienceType = "all"
	AudienceSpecificUsers   AudienceType = "specific_users"
	AudienceMembershipTypes AudienceType = "membership_types"
	AudienceHubMembers      AudienceType = "hub_members"
)

// Audience selects which members see an announcement
type Audience struct {
	Type            AudienceType `json:"type" validate:"required,oneof=all specific_users membership_types hub_members"`
	UserIDs         []uint       `json:"user_ids,omitempty"`
	MembershipTypes []string     `json:"membership_types,omitempty"`
}

// Includes reports whether user belongs to the audience. A nil user only
// matches the "all" audience.
func (a Audience) Includes(user *User, now time.Time) bool {
	switch a.Type {
	case AudienceAll:
		return true
	case AudienceSpecificUsers:
		return user != nil && slices.Contains(a.UserIDs, user.ID)
	case AudienceMembershipTypes:
		return user != nil && user.MembershipType != "" && slices.Contains(a.MembershipTypes, user.MembershipType)
	case AudienceHubMembers:
		return user != nil && user.HasActiveHubAccess(now)
	default:
		return false
	}
}

// Announcement is an admin-authored message to members
type Announcement struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title    string               `gorm:"type:varchar(255)" json:"title"`
	Message  string               `gorm:"type:text" json:"message"`
	Priority AnnouncementPriority `gorm:"type:varchar(20);default:'normal'" json:"priority"`
	Category string               `gorm:"type:varchar(50)" json:"category"`
	Audience Audience             `gorm:"serializer:json" json:"audience"`

	ScheduleAt *time.Time `json:"schedule_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	IsSticky   bool       `gorm:"default:false" json:"is_sticky"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	Notify     bool       `gorm:"default:false" json:"notify"`
	CreatedBy  uint       `json:"created_by"`

	ReachCount   int `gorm:"default:0" json:"reach_count"`
	ReadCount    int `gorm:"default:0" json:"read_count"`
	DismissCount int `gorm:"default:0" json:"dismiss_count"`
}

// VisibleTo is the feed predicate for user at now
func (a Announcement) VisibleTo(user *User, now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ScheduleAt != nil && a.ScheduleAt.After(now) {
		return false
	}
	if a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
		return false
	}
	return a.Audience.Includes(user, now)
}

// SortForFeed orders sticky first, then by priority, then newest first
func SortForFeed(list []Announcement) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsSticky != b.IsSticky {
			return a.IsSticky
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// AnnouncementStatus is one member's read/dismiss state for one announcement
type AnnouncementStatus struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID         uint `gorm:"not null;uniqueIndex:idx_announcement_status,priority:1" json:"user_id"`
	AnnouncementID uint `gorm:"not null;uniqueIndex:idx_announcement_status,priority:2;index" json:"announcement_id"`

	IsRead      bool       `gorm:"default:false" json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	IsDismissed bool       `gorm:"default:false" json:"is_dismissed"`
	DismissedAt *time.Time `json:"dismissed_at"`
}
