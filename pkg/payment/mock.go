package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway is an in-memory implementation for development and tests.
type MockGateway struct {
	mu       sync.RWMutex
	checkout string
	payments map[string]*Transaction
}

// NewMockGateway creates a mock gateway whose checkout pages live under checkoutBase.
func NewMockGateway(checkoutBase string) *MockGateway {
	return &MockGateway{
		checkout: checkoutBase,
		payments: make(map[string]*Transaction),
	}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreatePayment(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("mock: amount must be positive")
	}

	id := "mock_" + uuid.New().String()
	g.mu.Lock()
	g.payments[id] = &Transaction{
		ID:       id,
		Status:   StatusPending,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: map[string]string{
			"user_id": req.UserID,
			"plan":    req.Plan,
		},
		CreatedAt: time.Now(),
	}
	g.mu.Unlock()

	return &Checkout{
		ID:  id,
		URL: g.checkout + "/payment/mock?payment_id=" + url.QueryEscape(id),
	}, nil
}

func (g *MockGateway) GetPayment(ctx context.Context, id string) (*Transaction, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// SetStatus moves a payment to status, as if the customer had finished the checkout.
func (g *MockGateway) SetStatus(id string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.payments[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

type mockNotification struct {
	EventID   string `json:"eventId"`
	PaymentID string `json:"paymentId"`
	Status    Status `json:"status"`
}

// ParseWebhook accepts {"eventId","paymentId","status"} and applies the status locally.
func (g *MockGateway) ParseWebhook(payload []byte, header http.Header) (*Event, error) {
	var n mockNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("mock: invalid notification: %w", err)
	}
	if n.PaymentID == "" {
		return nil, fmt.Errorf("mock: paymentId is required")
	}
	switch n.Status {
	case StatusPending, StatusSucceeded, StatusCanceled:
	default:
		return nil, fmt.Errorf("mock: unknown status %q", n.Status)
	}

	// Unknown ids are still reported so the reconciler can reject them.
	_ = g.SetStatus(n.PaymentID, n.Status)

	if n.EventID == "" {
		n.EventID = n.PaymentID + ":" + string(n.Status)
	}
	return &Event{ID: n.EventID, PaymentID: n.PaymentID, Status: n.Status}, nil
}
