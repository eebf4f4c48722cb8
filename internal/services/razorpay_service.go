package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

// RazorpayService wraps the payment gateway for online-channel orders.
// Amounts cross the wire in paise.
type RazorpayService struct {
	cfg    *config.Config
	client *razorpay.Client
}

func NewRazorpayService(cfg *config.Config) *RazorpayService {
	s := &RazorpayService{cfg: cfg}
	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		s.client = razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	}
	return s
}

func (s *RazorpayService) Enabled() bool {
	return s.client != nil
}

// CreateGatewayOrder registers the order with Razorpay and returns the
// gateway-side order id the client pays against.
func (s *RazorpayService) CreateGatewayOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	if s.client == nil {
		return "", models.NewUnavailableError("online payments are not configured", nil)
	}

	orderData := map[string]interface{}{
		"amount":   int(amount * 100),
		"currency": "INR",
		"receipt":  receipt,
	}
	order, err := s.client.Order.Create(orderData, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create razorpay order: %w", err)
	}

	orderID, ok := order["id"].(string)
	if !ok {
		return "", models.NewInternalError("razorpay order response missing id", nil)
	}
	return orderID, nil
}

// VerifyPaymentSignature checks the checkout callback signature
// (order_id|payment_id signed with the key secret).
func (s *RazorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if s.cfg.Razorpay.KeySecret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(s.cfg.Razorpay.KeySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw webhook body.
func (s *RazorpayService) VerifyWebhookSignature(body []byte, signature string) bool {
	if s.cfg.Razorpay.WebhookSecret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(s.cfg.Razorpay.WebhookSecret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
