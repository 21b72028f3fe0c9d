package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"gorm.io/gorm"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

var (
	ErrPaymentsDisabled = apperror.Validation("online payment is not available")
	ErrAlreadyPaid      = apperror.Conflict("payment already made")
	ErrInvalidSignature = apperror.Forbidden("invalid notification signature")
	ErrPaymentNotFound  = apperror.NotFound("payment session not found")
	ErrAmountMismatch   = apperror.Validation("gross amount does not match the order")
)

const maxHubMonths = 12

// MidtransNotification is the subset of the HTTP notification body we act on
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// paid reports whether the gateway considers the money collected
func (n MidtransNotification) paid() bool {
	switch n.TransactionStatus {
	case "settlement":
		return true
	case "capture":
		return n.FraudStatus == "" || n.FraudStatus == "accept"
	}
	return false
}

func failedTransaction(status string) bool {
	switch status {
	case "deny", "expire", "cancel", "failure":
		return true
	}
	return false
}

type CheckoutResult struct {
	OrderID     string `json:"orderId"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
	Amount      int64  `json:"amount"`
	Months      int    `json:"months"`
	IsExisting  bool   `json:"isExisting"`
}

// HubService sells the premium hub add-on through Midtrans Snap
type HubService struct {
	db           *gorm.DB
	gateway      PaymentGatewayClient
	mailer       Mailer
	monthlyPrice int64
	finishURL    string
	now          Clock
}

func NewHubService(db *gorm.DB, gateway PaymentGatewayClient, mailer Mailer, monthlyPrice int64, appURL string, clock Clock) *HubService {
	return &HubService{
		db:           db,
		gateway:      gateway,
		mailer:       mailer,
		monthlyPrice: monthlyPrice,
		finishURL:    strings.TrimRight(appURL, "/") + "/hub/checkout/finish",
		now:          clock.orDefault(),
	}
}

// Checkout starts or resumes a payment for months of hub access
func (s *HubService) Checkout(ctx context.Context, userID uint, months int) (*CheckoutResult, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	if months < 1 || months > maxHubMonths {
		return nil, apperror.Validationf("months must be between 1 and %d", maxHubMonths)
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to start checkout")
	}

	existing, err := s.activeSession(ctx, userID, months)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if res, err := s.resume(ctx, existing); res != nil || err != nil {
			return res, err
		}
	}

	amount := int64(months) * s.monthlyPrice
	orderID := fmt.Sprintf("hub-%d-%s", userID, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: user.Name,
			Email: user.Email,
			Phone: user.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("hub-%dm", months),
				Name:  fmt.Sprintf("Premium hub access (%d months)", months),
				Price: s.monthlyPrice,
				Qty:   int32(months),
			},
		},
		Callbacks: &snap.Callbacks{Finish: s.finishURL},
	}

	resp, err := s.gateway.CreateTransaction(req)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to create payment")
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)
	session := models.PaymentSession{
		UserID:           userID,
		Months:           months,
		Amount:           amount,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		Status:           models.PaymentStatusPending,
		IsActive:         true,
		Token:            resp.Token,
		RedirectURL:      resp.RedirectURL,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to save payment")
	}

	return &CheckoutResult{
		OrderID:     orderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		Amount:      amount,
		Months:      months,
	}, nil
}

func (s *HubService) activeSession(ctx context.Context, userID uint, months int) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND months = ? AND is_active = ? AND status = ?", userID, months, true, models.PaymentStatusPending).
		Order("created_at DESC").First(&session).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to start checkout")
	}
	return &session, nil
}

// resume returns the pending session's token when Midtrans still considers
// it payable. A nil result with nil error means a new order is needed.
func (s *HubService) resume(ctx context.Context, session *models.PaymentSession) (*CheckoutResult, error) {
	status, err := s.gateway.CheckTransaction(session.OrderID)
	if err == nil {
		n := MidtransNotification{
			OrderID:           session.OrderID,
			TransactionStatus: status.TransactionStatus,
			FraudStatus:       status.FraudStatus,
			PaymentType:       status.PaymentType,
		}
		switch {
		case n.paid():
			if _, err := s.settle(ctx, session.OrderID); err != nil {
				return nil, err
			}
			return nil, ErrAlreadyPaid
		case failedTransaction(status.TransactionStatus):
			// fall through to a new order
		default:
			if session.Token != "" {
				return &CheckoutResult{
					OrderID:     session.OrderID,
					Token:       session.Token,
					RedirectURL: session.RedirectURL,
					Amount:      session.Amount,
					Months:      session.Months,
					IsExisting:  true,
				}, nil
			}
		}
	}
	// unknown to the gateway, failed, or broken locally
	if err := s.db.WithContext(ctx).Model(session).Updates(map[string]any{
		"is_active": false,
		"status":    models.PaymentStatusFailed,
	}).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to start checkout")
	}
	return nil, nil
}

// HandleNotification processes a Midtrans HTTP notification. Every call is
// logged; a paid order extends hub access exactly once.
func (s *HubService) HandleNotification(ctx context.Context, raw []byte) error {
	var n MidtransNotification
	if err := json.Unmarshal(raw, &n); err != nil || n.OrderID == "" {
		return apperror.Validation("invalid notification payload")
	}

	valid := s.gateway != nil && s.gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey)
	history := models.PaymentCallbackHistory{
		PaymentGateway:    models.PaymentGatewayMidtrans,
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		SignatureValid:    valid,
		Metadata:          json.RawMessage(raw),
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		return apperror.Wrap(err, "failed to record notification")
	}
	if !valid {
		return ErrInvalidSignature
	}

	var session models.PaymentSession
	if err := s.db.WithContext(ctx).Where("order_id = ?", n.OrderID).First(&session).Error; err != nil {
		if isNotFound(err) {
			return ErrPaymentNotFound
		}
		return apperror.Wrap(err, "failed to load payment")
	}
	if gross, err := strconv.ParseFloat(n.GrossAmount, 64); err != nil || int64(math.Round(gross)) != session.Amount {
		return ErrAmountMismatch
	}

	switch {
	case n.paid():
		_, err := s.settle(ctx, n.OrderID)
		return err
	case failedTransaction(n.TransactionStatus):
		return apperror.Wrap(s.db.WithContext(ctx).Model(&models.PaymentSession{}).
			Where("order_id = ? AND status = ?", n.OrderID, models.PaymentStatusPending).
			Updates(map[string]any{"status": models.PaymentStatusFailed, "is_active": false}).Error,
			"failed to update payment")
	}
	return nil
}

// settle marks the order paid and grants its months. It reports false when
// the order had already been settled.
func (s *HubService) settle(ctx context.Context, orderID string) (bool, error) {
	now := s.now()
	var user models.User
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.PaymentSession
		if err := tx.Where("order_id = ?", orderID).First(&session).Error; err != nil {
			return err
		}
		res := tx.Model(&models.PaymentSession{}).
			Where("id = ? AND status <> ?", session.ID, models.PaymentStatusPaid).
			Updates(map[string]any{"status": models.PaymentStatusPaid, "is_active": false, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.First(&user, session.UserID).Error; err != nil {
			return err
		}
		applied = true
		return grantHubAccess(ctx, tx, &user, session.Months, now)
	})
	if err != nil {
		return false, apperror.Wrap(err, "failed to settle payment")
	}
	if applied {
		sendHubActivated(ctx, s.mailer, &user)
	}
	return applied, nil
}

// Payments lists a member's checkout history, newest first
func (s *HubService) Payments(ctx context.Context, userID uint) ([]models.PaymentSession, error) {
	var out []models.PaymentSession
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to list payments")
	}
	return out, nil
}
