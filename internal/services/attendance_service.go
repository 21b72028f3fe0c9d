package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

var (
	ErrAlreadyCheckedIn  = apperror.Conflict("already checked in today")
	ErrNoCheckIn         = apperror.Validation("no check-in found for today")
	ErrAlreadyCheckedOut = apperror.Conflict("already checked out today")
	ErrCheckOutTooEarly  = apperror.Validation("check-out cannot be before check-in")
	ErrStaleDeviceEvent  = apperror.Validation("timestamp must fall on the current day")
)

// maxDeviceClockSkew bounds how far in the future a device timestamp may be
const maxDeviceClockSkew = 5 * time.Minute

// Provenance describes where an attendance event came from
type Provenance struct {
	Source   models.AttendanceSource
	DeviceID string
}

type CheckInResult struct {
	Record *models.AttendanceRecord `json:"attendance"`
	Streak int                      `json:"streak"`
}

type AttendanceStatusView struct {
	Date       string                   `json:"date"`
	CheckedIn  bool                     `json:"checkedIn"`
	CheckedOut bool                     `json:"checkedOut"`
	Record     *models.AttendanceRecord `json:"attendance"`
	Streak     int                      `json:"streak"`
	LastDate   string                   `json:"lastAttendanceDate,omitempty"`
}

type HistoryFilter struct {
	From string // YYYY-MM-DD inclusive
	To   string
	Page
}

type AttendanceSummary struct {
	Present int64 `json:"present"`
	Late    int64 `json:"late"`
	Absent  int64 `json:"absent"`
}

type AdminAttendanceFilter struct {
	Date   string
	Status models.AttendanceStatus
	Page
}

// AttendanceService is the per-user-per-day check-in register
type AttendanceService struct {
	db  *gorm.DB
	loc *time.Location
	now Clock
}

func NewAttendanceService(db *gorm.DB, loc *time.Location, clock Clock) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{db: db, loc: loc, now: clock.orDefault()}
}

// CheckIn records today's check-in for a member using the app
func (s *AttendanceService) CheckIn(ctx context.Context, userID uint) (*CheckInResult, error) {
	return s.checkInAt(ctx, userID, s.now(), Provenance{Source: models.AttendanceSourceApp})
}

// CheckOut closes today's record for a member using the app
func (s *AttendanceService) CheckOut(ctx context.Context, userID uint) (*models.AttendanceRecord, error) {
	return s.checkOutAt(ctx, userID, s.now())
}

// checkInAt inserts the day's record, or fills a record that exists without
// a check-in, in a single statement. The streak is updated in the same
// transaction without a read-modify-write.
func (s *AttendanceService) checkInAt(ctx context.Context, userID uint, at time.Time, p Provenance) (*CheckInResult, error) {
	local := at.In(s.loc)
	today := models.DateKey(local, s.loc)
	yesterday := models.DateKey(local.AddDate(0, 0, -1), s.loc)

	rec := models.AttendanceRecord{
		UserID:      userID,
		Date:        today,
		CheckInTime: &at,
		Status:      models.StatusForCheckIn(local),
		Source:      p.Source,
		DeviceID:    p.DeviceID,
	}
	if p.Source == models.AttendanceSourceBiometric {
		rec.EventID = uuid.NewString()
	}

	var streak int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"check_in_time", "status", "source", "device_id", "event_id", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "attendance_records.check_in_time IS NULL"},
			}},
		}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCheckedIn
		}

		// zero streak always extends; otherwise yesterday must qualify, else back to 1
		upd := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"attendance_streak": gorm.Expr(
				`CASE WHEN attendance_streak = 0 OR EXISTS (
					SELECT 1 FROM attendance_records ar
					WHERE ar.user_id = users.id AND ar.date = ? AND ar.status IN (?, ?)
				) THEN attendance_streak + 1 ELSE 1 END`,
				yesterday, models.AttendanceStatusPresent, models.AttendanceStatusLate,
			),
			"last_attendance_date": today,
		})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var stored models.AttendanceRecord
		if err := tx.Where("user_id = ? AND date = ?", userID, today).First(&stored).Error; err != nil {
			return err
		}
		rec = stored
		return tx.Model(&models.User{}).Where("id = ?", userID).Select("attendance_streak").Scan(&streak).Error
	})
	if err != nil {
		return nil, apperror.Wrap(err, "failed to check in")
	}
	return &CheckInResult{Record: &rec, Streak: streak}, nil
}

func (s *AttendanceService) checkOutAt(ctx context.Context, userID uint, at time.Time) (*models.AttendanceRecord, error) {
	today := models.DateKey(at, s.loc)

	var rec models.AttendanceRecord
	err := s.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, today).First(&rec).Error
	if isNotFound(err) || (err == nil && rec.CheckInTime == nil) {
		return nil, ErrNoCheckIn
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to check out")
	}
	if rec.CheckOutTime != nil {
		return nil, ErrAlreadyCheckedOut
	}
	if at.Before(*rec.CheckInTime) {
		return nil, ErrCheckOutTooEarly
	}

	minutes := int(at.Sub(*rec.CheckInTime).Minutes())
	res := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("id = ? AND check_out_time IS NULL", rec.ID).
		Updates(map[string]any{"check_out_time": at, "duration_minutes": minutes})
	if res.Error != nil {
		return nil, apperror.Wrap(res.Error, "failed to check out")
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyCheckedOut
	}
	rec.CheckOutTime = &at
	rec.DurationMinutes = &minutes
	return &rec, nil
}

// Status reports today's record and the current streak
func (s *AttendanceService) Status(ctx context.Context, userID uint) (*AttendanceStatusView, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to load attendance status")
	}

	view := &AttendanceStatusView{
		Date:     models.DateKey(s.now(), s.loc),
		Streak:   user.AttendanceStreak,
		LastDate: user.LastAttendanceDate,
	}
	var rec models.AttendanceRecord
	err := s.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, view.Date).First(&rec).Error
	switch {
	case err == nil:
		view.Record = &rec
		view.CheckedIn = rec.CheckInTime != nil
		view.CheckedOut = rec.CheckOutTime != nil
	case !isNotFound(err):
		return nil, apperror.Wrap(err, "failed to load attendance status")
	}
	return view, nil
}

// History pages a member's records, newest first, with status totals
func (s *AttendanceService) History(ctx context.Context, userID uint, f HistoryFilter) ([]models.AttendanceRecord, AttendanceSummary, Pagination, error) {
	page := f.Page.normalize()
	if err := validateDateRange(f.From, f.To); err != nil {
		return nil, AttendanceSummary{}, Pagination{}, err
	}
	q := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("user_id = ?", userID)
	if f.From != "" {
		q = q.Where("date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("date <= ?", f.To)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, AttendanceSummary{}, Pagination{}, apperror.Wrap(err, "failed to load attendance history")
	}

	var rows []struct {
		Status models.AttendanceStatus
		N      int64
	}
	if err := q.Session(&gorm.Session{}).Select("status, count(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, AttendanceSummary{}, Pagination{}, apperror.Wrap(err, "failed to load attendance history")
	}
	var sum AttendanceSummary
	for _, r := range rows {
		switch r.Status {
		case models.AttendanceStatusPresent:
			sum.Present = r.N
		case models.AttendanceStatusLate:
			sum.Late = r.N
		case models.AttendanceStatusAbsent:
			sum.Absent = r.N
		}
	}

	var records []models.AttendanceRecord
	if err := q.Session(&gorm.Session{}).Order("date DESC").Offset(page.offset()).Limit(page.Limit).Find(&records).Error; err != nil {
		return nil, AttendanceSummary{}, Pagination{}, apperror.Wrap(err, "failed to load attendance history")
	}
	return records, sum, newPagination(page, total), nil
}

// ListForDate is the admin view of one day's register
func (s *AttendanceService) ListForDate(ctx context.Context, f AdminAttendanceFilter) ([]models.AttendanceRecord, Pagination, error) {
	page := f.Page.normalize()
	date := f.Date
	if date == "" {
		date = models.DateKey(s.now(), s.loc)
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, Pagination{}, apperror.Validation("date must be YYYY-MM-DD")
	}

	q := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("date = ?", date)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list attendance")
	}
	var records []models.AttendanceRecord
	if err := q.Session(&gorm.Session{}).Preload("User").Order("check_in_time ASC, id ASC").
		Offset(page.offset()).Limit(page.Limit).Find(&records).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list attendance")
	}
	return records, newPagination(page, total), nil
}

// MarkAbsent writes an absent record for every member without a record on
// date. It returns how many records were created.
func (s *AttendanceService) MarkAbsent(ctx context.Context, date string) (int, error) {
	today := models.DateKey(s.now(), s.loc)
	if date == "" {
		date = today
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return 0, apperror.Validation("date must be YYYY-MM-DD")
	}
	if date > today {
		return 0, apperror.Validation("cannot mark absence for a future date")
	}

	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleUser).
		Where("id NOT IN (?)", s.db.Model(&models.AttendanceRecord{}).Select("user_id").Where("date = ?", date)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, apperror.Wrap(err, "failed to mark absences")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	records := make([]models.AttendanceRecord, len(ids))
	for i, id := range ids {
		records[i] = models.AttendanceRecord{
			UserID: id,
			Date:   date,
			Status: models.AttendanceStatusAbsent,
			Source: models.AttendanceSourceAdmin,
		}
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&records, 200)
	if res.Error != nil {
		return 0, apperror.Wrap(res.Error, "failed to mark absences")
	}
	return int(res.RowsAffected), nil
}

// BiometricEvent is one push from a gym access device
type BiometricEvent struct {
	UserID      uint       `json:"userId"`
	Email       string     `json:"email" validate:"omitempty,email"`
	BiometricID string     `json:"biometricId"`
	Type        string     `json:"type" validate:"required,oneof=check-in check-out"`
	Timestamp   *time.Time `json:"timestamp"`
	DeviceID    string     `json:"deviceId" validate:"max=100"`
}

type BiometricResult struct {
	Type   string                   `json:"type"`
	UserID uint                     `json:"userId"`
	Record *models.AttendanceRecord `json:"attendance"`
	Streak *int                     `json:"streak,omitempty"`
}

// RecordBiometric applies a device event to the member it identifies
func (s *AttendanceService) RecordBiometric(ctx context.Context, ev BiometricEvent) (*BiometricResult, error) {
	user, err := s.resolveMember(ctx, ev)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if ev.Timestamp != nil {
		if ev.Timestamp.After(at.Add(maxDeviceClockSkew)) {
			return nil, apperror.Validation("timestamp is in the future")
		}
		// events from an earlier day would rewind the streak
		if models.DateKey(*ev.Timestamp, s.loc) != models.DateKey(at, s.loc) {
			return nil, ErrStaleDeviceEvent
		}
		at = *ev.Timestamp
	}

	out := &BiometricResult{Type: ev.Type, UserID: user.ID}
	switch ev.Type {
	case "check-in":
		res, err := s.checkInAt(ctx, user.ID, at, Provenance{Source: models.AttendanceSourceBiometric, DeviceID: ev.DeviceID})
		if err != nil {
			return nil, err
		}
		out.Record, out.Streak = res.Record, &res.Streak
	case "check-out":
		rec, err := s.checkOutAt(ctx, user.ID, at)
		if err != nil {
			return nil, err
		}
		out.Record = rec
	default:
		return nil, apperror.Validation("type must be check-in or check-out")
	}
	return out, nil
}

func (s *AttendanceService) resolveMember(ctx context.Context, ev BiometricEvent) (*models.User, error) {
	q := s.db.WithContext(ctx)
	switch {
	case ev.UserID != 0:
		q = q.Where("id = ?", ev.UserID)
	case strings.TrimSpace(ev.BiometricID) != "":
		q = q.Where("biometric_id = ?", strings.TrimSpace(ev.BiometricID))
	case strings.TrimSpace(ev.Email) != "":
		q = q.Where("email = ?", NormalizeEmail(ev.Email))
	default:
		return nil, apperror.Validation("userId, biometricId or email is required")
	}
	var user models.User
	if err := q.First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to resolve member")
	}
	return &user, nil
}

func validateDateRange(from, to string) error {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return apperror.Validation("dates must be YYYY-MM-DD")
		}
	}
	if from != "" && to != "" && from > to {
		return apperror.Validation("from must not be after to")
	}
	return nil
}
