package models

import (
	"encoding/json"
	"time"
)

// PaymentCallbackHistory keeps every gateway notification as received
type PaymentCallbackHistory struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	PaymentGateway    PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID           string          `gorm:"type:varchar(100);index" json:"order_id"`
	TransactionStatus string          `gorm:"type:varchar(50)" json:"transaction_status"`
	SignatureValid    bool            `json:"signature_valid"`
	Metadata          json.RawMessage `gorm:"type:json" json:"metadata"`
}
