package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

var ErrAnnouncementNotFound = apperror.NotFound("announcement not found")

const announcementMaxAttempt = 3

type AnnouncementInput struct {
	Title      string                      `json:"title" validate:"required,max=255"`
	Message    string                      `json:"message" validate:"required"`
	Priority   models.AnnouncementPriority `json:"priority" validate:"omitempty,oneof=normal important critical"`
	Category   string                      `json:"category" validate:"max=50"`
	Audience   models.Audience             `json:"audience"`
	ScheduleAt *time.Time                  `json:"scheduleAt"`
	ExpiresAt  *time.Time                  `json:"expiresAt"`
	IsSticky   bool                        `json:"isSticky"`
	IsActive   *bool                       `json:"isActive"`
	Notify     bool                        `json:"notify"`
}

type AnnouncementFilter struct {
	Search   string
	Category string
	IsActive *bool
	Page
}

// FeedItem is an announcement merged with the caller's read/dismiss state
type FeedItem struct {
	models.Announcement
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	IsDismissed bool       `json:"is_dismissed"`
}

type AnnouncementStats struct {
	AnnouncementID uint    `json:"announcementId"`
	Reach          int     `json:"reach"`
	Reads          int     `json:"reads"`
	Dismissals     int     `json:"dismissals"`
	Unread         int     `json:"unread"`
	ReadRate       float64 `json:"readRate"`
	DismissRate    float64 `json:"dismissRate"`
}

// AnnouncementService manages the admin-authored feed
type AnnouncementService struct {
	db  *gorm.DB
	now Clock
}

func NewAnnouncementService(db *gorm.DB, clock Clock) *AnnouncementService {
	return &AnnouncementService{db: db, now: clock.orDefault()}
}

func validateAnnouncement(in AnnouncementInput) error {
	switch in.Audience.Type {
	case models.AudienceAll, models.AudienceHubMembers:
	case models.AudienceSpecificUsers:
		if len(in.Audience.UserIDs) == 0 {
			return apperror.Validation("audience.user_ids is required for specific_users")
		}
	case models.AudienceMembershipTypes:
		if len(in.Audience.MembershipTypes) == 0 {
			return apperror.Validation("audience.membership_types is required for membership_types")
		}
	default:
		return apperror.Validation("audience.type must be one of all, specific_users, membership_types, hub_members")
	}
	if in.ScheduleAt != nil && in.ExpiresAt != nil && !in.ExpiresAt.After(*in.ScheduleAt) {
		return apperror.Validation("expiresAt must be after scheduleAt")
	}
	return nil
}

func applyAnnouncementInput(a *models.Announcement, in AnnouncementInput) {
	a.Title = strings.TrimSpace(in.Title)
	a.Message = in.Message
	a.Priority = in.Priority
	if a.Priority == "" {
		a.Priority = models.PriorityNormal
	}
	a.Category = strings.TrimSpace(in.Category)
	a.Audience = in.Audience
	a.ScheduleAt = in.ScheduleAt
	a.ExpiresAt = in.ExpiresAt
	a.IsSticky = in.IsSticky
	a.Notify = in.Notify
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

// Create publishes an announcement, sets its reach and queues delivery
func (s *AnnouncementService) Create(ctx context.Context, createdBy uint, in AnnouncementInput) (*models.Announcement, error) {
	if err := validateAnnouncement(in); err != nil {
		return nil, err
	}
	now := s.now()
	a := models.Announcement{CreatedBy: createdBy, IsActive: true}
	applyAnnouncementInput(&a, in)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reach, err := audienceSize(tx, a.Audience, now)
		if err != nil {
			return err
		}
		a.ReachCount = int(reach)
		// a false IsActive is a zero value, so the insert fills in the
		// column default and writes it back into a
		active := a.IsActive
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		if !active {
			if err := tx.Model(&a).Update("is_active", false).Error; err != nil {
				return err
			}
			a.IsActive = false
		}
		if a.Notify && a.IsActive {
			return enqueueAnnouncement(tx, a, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Wrap(err, "failed to create announcement")
	}
	return &a, nil
}

func enqueueAnnouncement(tx *gorm.DB, a models.Announcement, now time.Time) error {
	due := now
	if a.ScheduleAt != nil && a.ScheduleAt.After(now) {
		due = *a.ScheduleAt
	}
	task, err := models.BuildScheduledTask(models.TaskSendAnnouncement, map[string]any{
		"announcement_id": a.ID,
	}, due, nil, models.ScheduledTaskTypeOneTime, announcementMaxAttempt)
	if err != nil {
		return err
	}
	return tx.Create(task).Error
}

func (s *AnnouncementService) Get(ctx context.Context, id uint) (*models.Announcement, error) {
	var a models.Announcement
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, apperror.Wrap(err, "failed to load announcement")
	}
	return &a, nil
}

// Update replaces an announcement's content. Reach is recomputed when the
// audience changes; turning notify on queues delivery once.
func (s *AnnouncementService) Update(ctx context.Context, id uint, in AnnouncementInput) (*models.Announcement, error) {
	if err := validateAnnouncement(in); err != nil {
		return nil, err
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	prevAudience := a.Audience
	wasNotify := a.Notify
	applyAnnouncementInput(a, in)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !sameAudience(prevAudience, a.Audience) {
			reach, err := audienceSize(tx, a.Audience, now)
			if err != nil {
				return err
			}
			a.ReachCount = int(reach)
		}
		if err := tx.Save(a).Error; err != nil {
			return err
		}
		if a.Notify && !wasNotify && a.IsActive {
			return enqueueAnnouncement(tx, *a, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Wrap(err, "failed to update announcement")
	}
	return a, nil
}

func sameAudience(a, b models.Audience) bool {
	if a.Type != b.Type || len(a.UserIDs) != len(b.UserIDs) || len(a.MembershipTypes) != len(b.MembershipTypes) {
		return false
	}
	for i := range a.UserIDs {
		if a.UserIDs[i] != b.UserIDs[i] {
			return false
		}
	}
	for i := range a.MembershipTypes {
		if a.MembershipTypes[i] != b.MembershipTypes[i] {
			return false
		}
	}
	return true
}

func (s *AnnouncementService) Delete(ctx context.Context, id uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("announcement_id = ?", id).Delete(&models.AnnouncementStatus{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Announcement{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAnnouncementNotFound
		}
		return nil
	}), "failed to delete announcement")
}

// List is the admin view of every announcement regardless of visibility
func (s *AnnouncementService) List(ctx context.Context, f AnnouncementFilter) ([]models.Announcement, Pagination, error) {
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.Announcement{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("lower(title) LIKE ? OR lower(message) LIKE ?", like, like)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list announcements")
	}
	var list []models.Announcement
	if err := q.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&list).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list announcements")
	}
	return list, newPagination(page, total), nil
}

func (s *AnnouncementService) Stats(ctx context.Context, id uint) (*AnnouncementStats, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &AnnouncementStats{
		AnnouncementID: a.ID,
		Reach:          a.ReachCount,
		Reads:          a.ReadCount,
		Dismissals:     a.DismissCount,
	}
	if st.Reach > 0 {
		st.ReadRate = float64(st.Reads) / float64(st.Reach)
		st.DismissRate = float64(st.Dismissals) / float64(st.Reach)
		if st.Unread = st.Reach - st.Reads; st.Unread < 0 {
			st.Unread = 0
		}
	}
	return st, nil
}

// Feed returns what user may see now, sorted for display. Dismissed
// announcements are left out unless includeDismissed is set.
func (s *AnnouncementService) Feed(ctx context.Context, user *models.User, includeDismissed bool) ([]FeedItem, error) {
	now := s.now()
	var candidates []models.Announcement
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("schedule_at IS NULL OR schedule_at <= ?", now).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Find(&candidates).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load announcements")
	}

	visible := candidates[:0]
	for _, a := range candidates {
		if a.VisibleTo(user, now) {
			visible = append(visible, a)
		}
	}
	models.SortForFeed(visible)

	statuses := map[uint]models.AnnouncementStatus{}
	if user != nil && len(visible) > 0 {
		ids := make([]uint, len(visible))
		for i, a := range visible {
			ids[i] = a.ID
		}
		var rows []models.AnnouncementStatus
		if err := s.db.WithContext(ctx).Where("user_id = ? AND announcement_id IN ?", user.ID, ids).Find(&rows).Error; err != nil {
			return nil, apperror.Wrap(err, "failed to load announcements")
		}
		for _, r := range rows {
			statuses[r.AnnouncementID] = r
		}
	}

	items := make([]FeedItem, 0, len(visible))
	for _, a := range visible {
		st := statuses[a.ID]
		if st.IsDismissed && !includeDismissed {
			continue
		}
		items = append(items, FeedItem{
			Announcement: a,
			IsRead:       st.IsRead,
			ReadAt:       st.ReadAt,
			IsDismissed:  st.IsDismissed,
		})
	}
	return items, nil
}

// UnreadCount counts visible, undismissed announcements user has not read
func (s *AnnouncementService) UnreadCount(ctx context.Context, user *models.User) (int, error) {
	items, err := s.Feed(ctx, user, false)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n, nil
}

// MarkRead records that user has read the announcement
func (s *AnnouncementService) MarkRead(ctx context.Context, user *models.User, id uint) error {
	if err := s.requireVisible(ctx, user, id); err != nil {
		return err
	}
	now := s.now()
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return markRead(tx, user.ID, id, now)
	}), "failed to mark announcement read")
}

// Dismiss hides the announcement for user; dismissing implies reading
func (s *AnnouncementService) Dismiss(ctx context.Context, user *models.User, id uint) error {
	if err := s.requireVisible(ctx, user, id); err != nil {
		return err
	}
	now := s.now()
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markRead(tx, user.ID, id, now); err != nil {
			return err
		}
		st := models.AnnouncementStatus{
			UserID:         user.ID,
			AnnouncementID: id,
			IsRead:         true,
			ReadAt:         &now,
			IsDismissed:    true,
			DismissedAt:    &now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "announcement_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_dismissed": true, "dismissed_at": now, "updated_at": now}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "announcement_statuses.is_dismissed = ?", Vars: []any{false}},
			}},
		}).Create(&st)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Announcement{}).Where("id = ?", id).
			UpdateColumn("dismiss_count", gorm.Expr("dismiss_count + 1")).Error
	}), "failed to dismiss announcement")
}

// markRead upserts the read flag and bumps the counter on first read only
func markRead(tx *gorm.DB, userID, announcementID uint, now time.Time) error {
	st := models.AnnouncementStatus{
		UserID:         userID,
		AnnouncementID: announcementID,
		IsRead:         true,
		ReadAt:         &now,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "announcement_id"}},
		DoUpdates: clause.Assignments(map[string]any{"is_read": true, "read_at": now, "updated_at": now}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "announcement_statuses.is_read = ?", Vars: []any{false}},
		}},
	}).Create(&st)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return tx.Model(&models.Announcement{}).Where("id = ?", announcementID).
		UpdateColumn("read_count", gorm.Expr("read_count + 1")).Error
}

func (s *AnnouncementService) requireVisible(ctx context.Context, user *models.User, id uint) error {
	if id == 0 {
		return apperror.Validation("announcementId is required")
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.VisibleTo(user, s.now()) {
		return ErrAnnouncementNotFound
	}
	return nil
}

// Recipients loads every user the announcement's audience selects now
func (s *AnnouncementService) Recipients(ctx context.Context, a models.Announcement) ([]models.User, error) {
	var users []models.User
	q := audienceQuery(s.db.WithContext(ctx).Model(&models.User{}), a.Audience, s.now())
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to load recipients")
	}
	return users, nil
}

func audienceSize(db *gorm.DB, aud models.Audience, now time.Time) (int64, error) {
	var n int64
	err := audienceQuery(db.Model(&models.User{}), aud, now).Count(&n).Error
	return n, err
}

// audienceQuery narrows a users query to models.Audience.Includes
func audienceQuery(q *gorm.DB, aud models.Audience, now time.Time) *gorm.DB {
	switch aud.Type {
	case models.AudienceAll:
		return q
	case models.AudienceSpecificUsers:
		if len(aud.UserIDs) == 0 {
			return q.Where("1 = 0")
		}
		return q.Where("id IN ?", aud.UserIDs)
	case models.AudienceMembershipTypes:
		if len(aud.MembershipTypes) == 0 {
			return q.Where("1 = 0")
		}
		return q.Where("membership_type IN ?", aud.MembershipTypes)
	case models.AudienceHubMembers:
		return q.Where("has_premium_hub_access = ?", true).
			Where("hub_access_end_date IS NULL OR hub_access_end_date >= ?", now)
	default:
		slog.Warn("unknown audience type", "type", aud.Type)
		return q.Where("1 = 0")
	}
}
