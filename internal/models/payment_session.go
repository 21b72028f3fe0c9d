package models

import (
	"encoding/json"
	"time"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentSession is one checkout attempt for the premium hub add-on
type PaymentSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID         uint           `gorm:"index" json:"user_id"`
	Months         int            `json:"months"`
	Amount         int64          `json:"amount"`
	PaymentGateway PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID        string         `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	Status         PaymentStatus  `gorm:"type:varchar(20);default:'pending'" json:"status"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	PaidAt         *time.Time     `json:"paid_at"`

	Token       string `gorm:"type:varchar(255)" json:"token"`
	RedirectURL string `gorm:"type:text" json:"redirect_url"`

	RequestMetadata  json.RawMessage `gorm:"type:json" json:"-"`
	ResponseMetadata json.RawMessage `gorm:"type:json" json:"-"`
}
