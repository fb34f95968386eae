package services

import (
	"encoding/json"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Razorpay event names handled by the billing webhook
const (
	EventPaymentCaptured       = "payment.captured"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionHalted    = "subscription.halted"
)

// RazorpayService handles all Razorpay API interactions
type RazorpayService interface {
	CreateSubscription(planID, tenantID string, cycles int) (string, error)
	CreateOrder(amountPaise int, currency, tenantID string) (string, error)
	WebhookVerify(rawData []byte, signature string) (*WebhookEvent, error)
}

// resourceCreator is the subset of a razorpay-go resource used here
type resourceCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayService struct {
	orders        resourceCreator
	subscriptions resourceCreator
	webhookSecret string
}

// Notes is the free-form notes object Razorpay attaches to entities. An empty
// notes field arrives as a JSON array.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		var arr []interface{}
		if arrErr := json.Unmarshal(data, &arr); arrErr != nil {
			return err
		}
		*n = Notes{}
		return nil
	}
	out := make(Notes, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		} else if v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	*n = out
	return nil
}

type PaymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
	Notes    Notes  `json:"notes"`
}

type SubscriptionEntity struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
	Notes  Notes  `json:"notes"`
}

type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment,omitempty"`
		Subscription *struct {
			Entity SubscriptionEntity `json:"entity"`
		} `json:"subscription,omitempty"`
	} `json:"payload"`
}

// Payment returns the payment entity or nil when the event carries none
func (e *WebhookEvent) Payment() *PaymentEntity {
	if e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}

// Subscription returns the subscription entity or nil when the event carries none
func (e *WebhookEvent) Subscription() *SubscriptionEntity {
	if e.Payload.Subscription == nil {
		return nil
	}
	return &e.Payload.Subscription.Entity
}

// NewRazorpayService creates a Razorpay service backed by the official client
func NewRazorpayService(keyID, keySecret, webhookSecret string) RazorpayService {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayService(client.Order, client.Subscription, webhookSecret)
}

func newRazorpayService(orders, subscriptions resourceCreator, webhookSecret string) RazorpayService {
	return &razorpayService{
		orders:        orders,
		subscriptions: subscriptions,
		webhookSecret: webhookSecret,
	}
}

// CreateSubscription creates a recurring subscription tagged with the tenant id
func (s *razorpayService) CreateSubscription(planID, tenantID string, cycles int) (string, error) {
	if planID == "" {
		return "", errors.New("razorpay plan id is not configured")
	}
	data := map[string]interface{}{
		"plan_id":         planID,
		"customer_notify": 1,
		"total_count":     cycles,
		"notes": map[string]interface{}{
			"userId": tenantID,
		},
	}
	resp, err := s.subscriptions.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create subscription: %w", err)
	}
	return entityID(resp)
}

// CreateOrder creates a one-time order tagged with the tenant id
func (s *razorpayService) CreateOrder(amountPaise int, currency, tenantID string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"notes": map[string]interface{}{
			"userId": tenantID,
			"type":   "one_time_pass",
		},
	}
	resp, err := s.orders.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	return entityID(resp)
}

// WebhookVerify checks the HMAC signature of a raw webhook body and decodes it
func (s *razorpayService) WebhookVerify(rawData []byte, signature string) (*WebhookEvent, error) {
	if signature == "" || s.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}
	if !utils.VerifyWebhookSignature(string(rawData), signature, s.webhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(rawData, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return &event, nil
}

func entityID(resp map[string]interface{}) (string, error) {
	id, _ := resp["id"].(string)
	if id == "" {
		return "", errors.New("razorpay response carried no id")
	}
	return id, nil
}
