package models

import (
	"testing"
	"time"
)

func TestHasActiveHubAccess(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"no flag", User{HubAccessEndDate: &future}, false},
		{"flag without end", User{HasPremiumHubAccess: true}, true},
		{"end in future", User{HasPremiumHubAccess: true, HubAccessEndDate: &future}, true},
		{"end exactly now", User{HasPremiumHubAccess: true, HubAccessEndDate: &now}, true},
		{"expired", User{HasPremiumHubAccess: true, HubAccessEndDate: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasActiveHubAccess(now); got != tt.want {
				t.Errorf("HasActiveHubAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrantHubAccess(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	var u User
	u.GrantHubAccess(now, 1)
	if !u.HasActiveHubAccess(now) {
		t.Fatalf("grant did not activate access")
	}
	if want := now.AddDate(0, 1, 0); !u.HubAccessEndDate.Equal(want) {
		t.Errorf("end = %v, want %v", u.HubAccessEndDate, want)
	}

	// renewing before expiry stacks on the current window
	u.GrantHubAccess(now.AddDate(0, 0, 10), 2)
	if want := now.AddDate(0, 3, 0); !u.HubAccessEndDate.Equal(want) {
		t.Errorf("extended end = %v, want %v", u.HubAccessEndDate, want)
	}
	if !u.HubAccessStartDate.Equal(now) {
		t.Errorf("start moved on extension: %v", u.HubAccessStartDate)
	}

	// after expiry a grant starts over
	later := now.AddDate(1, 0, 0)
	u.GrantHubAccess(later, 1)
	if !u.HubAccessStartDate.Equal(later) {
		t.Errorf("start = %v, want %v", u.HubAccessStartDate, later)
	}

	u.RevokeHubAccess()
	if u.HasActiveHubAccess(later) || u.HubAccessEndDate != nil {
		t.Errorf("revoke left access in place")
	}
}

func TestGrantHubAccessKeepsUnlimited(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	since := now.AddDate(-1, 0, 0)
	u := User{HasPremiumHubAccess: true, HubAccessStartDate: &since}

	u.GrantHubAccess(now, 1)
	if u.HubAccessEndDate != nil {
		t.Errorf("unlimited access was capped at %v", u.HubAccessEndDate)
	}
	if !u.HubAccessStartDate.Equal(since) || !u.HasActiveHubAccess(now.AddDate(5, 0, 0)) {
		t.Errorf("unlimited grant changed: start %v", u.HubAccessStartDate)
	}

	// an end date without a recorded start still extends
	end := now.AddDate(0, 0, 5)
	v := User{HasPremiumHubAccess: true, HubAccessEndDate: &end}
	v.GrantHubAccess(now, 1)
	if want := end.AddDate(0, 1, 0); !v.HubAccessEndDate.Equal(want) {
		t.Errorf("end = %v, want %v", v.HubAccessEndDate, want)
	}
}

func TestRoleChecks(t *testing.T) {
	tests := []struct {
		role               Role
		valid, manage, hub bool
	}{
		{RoleAdmin, true, true, true},
		{RoleUser, true, false, false},
		{"trainer", false, false, false},
	}
	for _, tt := range tests {
		if tt.role.Valid() != tt.valid || tt.role.CanManageClub() != tt.manage || tt.role.BypassesHubGate() != tt.hub {
			t.Errorf("role %q checks wrong", tt.role)
		}
	}
}
