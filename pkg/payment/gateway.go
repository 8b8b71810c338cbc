package payment

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Status is the gateway-neutral state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCanceled  Status = "canceled"
)

var (
	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrNotFound is returned when the gateway does not know a payment.
	ErrNotFound = errors.New("payment not found at gateway")
)

// Gateway defines the interface for payment providers.
type Gateway interface {
	// Name identifies the provider in logs.
	Name() string
	// CreatePayment opens a hosted checkout for a one-off payment.
	CreatePayment(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// GetPayment fetches the current state of a payment.
	GetPayment(ctx context.Context, id string) (*Transaction, error)
	// ParseWebhook verifies a notification and extracts the payment it is about.
	// It returns (nil, nil) for event types that carry no payment update.
	ParseWebhook(payload []byte, header http.Header) (*Event, error)
}

// CheckoutRequest describes the payment to open.
type CheckoutRequest struct {
	UserID      string
	Email       string
	Amount      int64 // minor units
	Currency    string
	Description string
	Plan        string
	SuccessURL  string
	CancelURL   string
}

// Checkout is the hosted payment page created by the gateway.
type Checkout struct {
	ID  string
	URL string
}

// Transaction is the gateway's view of a payment.
type Transaction struct {
	ID        string
	Status    Status
	Amount    int64
	Currency  string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Event is a verified webhook notification.
type Event struct {
	// ID is unique per delivery-worthy event and is used for de-duplication.
	ID        string
	PaymentID string
	Status    Status
}
