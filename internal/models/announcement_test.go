package models

import (
	"testing"
	"time"
)

func TestAnnouncementVisibleTo(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	hubEnd := now.AddDate(0, 1, 0)

	premium := &User{ID: 1, MembershipType: "premium"}
	basic := &User{ID: 2, MembershipType: "basic"}
	hubMember := &User{ID: 3, HasPremiumHubAccess: true, HubAccessEndDate: &hubEnd}

	premiumOnly := Audience{Type: AudienceMembershipTypes, MembershipTypes: []string{"premium"}}

	tests := []struct {
		name string
		a    Announcement
		user *User
		want bool
	}{
		{"all audience anonymous", Announcement{IsActive: true, Audience: Audience{Type: AudienceAll}}, nil, true},
		{"inactive", Announcement{IsActive: false, Audience: Audience{Type: AudienceAll}}, premium, false},
		{"scheduled in the future", Announcement{IsActive: true, ScheduleAt: &future, Audience: Audience{Type: AudienceAll}}, premium, false},
		{"schedule passed", Announcement{IsActive: true, ScheduleAt: &past, Audience: Audience{Type: AudienceAll}}, premium, true},
		{"expired", Announcement{IsActive: true, ExpiresAt: &past, Audience: Audience{Type: AudienceAll}}, premium, false},
		{"membership match", Announcement{IsActive: true, Audience: premiumOnly}, premium, true},
		{"membership mismatch", Announcement{IsActive: true, Audience: premiumOnly}, basic, false},
		{"membership without user", Announcement{IsActive: true, Audience: premiumOnly}, nil, false},
		{"specific user listed", Announcement{IsActive: true, Audience: Audience{Type: AudienceSpecificUsers, UserIDs: []uint{2}}}, basic, true},
		{"specific user not listed", Announcement{IsActive: true, Audience: Audience{Type: AudienceSpecificUsers, UserIDs: []uint{2}}}, premium, false},
		{"hub members", Announcement{IsActive: true, Audience: Audience{Type: AudienceHubMembers}}, hubMember, true},
		{"hub members without access", Announcement{IsActive: true, Audience: Audience{Type: AudienceHubMembers}}, basic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.VisibleTo(tt.user, now); got != tt.want {
				t.Errorf("VisibleTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortForFeed(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	list := []Announcement{
		{ID: 1, Priority: PriorityNormal, CreatedAt: base.Add(4 * time.Hour)},
		{ID: 2, Priority: PriorityCritical, CreatedAt: base},
		{ID: 3, Priority: PriorityNormal, IsSticky: true, CreatedAt: base},
		{ID: 4, Priority: PriorityImportant, CreatedAt: base.Add(time.Hour)},
		{ID: 5, Priority: PriorityNormal, CreatedAt: base.Add(5 * time.Hour)},
	}

	SortForFeed(list)

	want := []uint{3, 2, 4, 5, 1}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d = %d, want %d (order %v)", i, list[i].ID, id, ids(list))
		}
	}
}

func ids(list []Announcement) []uint {
	out := make([]uint, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
