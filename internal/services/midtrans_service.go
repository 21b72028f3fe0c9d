package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"gymhub_app_echo/internal/config"
)

// PaymentGatewayClient is the slice of Midtrans the hub checkout needs
type PaymentGatewayClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, error)
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error)
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService(cfg config.MidtransConfig) *MidtransService {
	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.ServerKey, env)

	var c coreapi.Client
	c.New(cfg.ServerKey, env)

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  cfg.ServerKey,
	}
}

// CreateTransaction creates a Snap transaction and returns the redirect URL and token
func (s *MidtransService) CreateTransaction(req *snap.Request) (*snap.Response, error) {
	resp, err := s.SnapClient.CreateTransaction(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans create transaction error: %v", err)
	}
	return resp, nil
}

// CheckTransaction fetches the gateway-side status of an order
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, err := s.CoreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, fmt.Errorf("midtrans check transaction error: %v", err)
	}
	return resp, nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server_key)
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return VerifyMidtransSignature(s.serverKey, orderID, statusCode, grossAmount, signatureKey)
}

// VerifyMidtransSignature is the notification signature rule
func VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, signatureKey string) bool {
	if serverKey == "" || signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}
