package domain

import "time"

// SubscriptionType is the purchased premium period.
type SubscriptionType string

const (
	SubscriptionMonthly SubscriptionType = "monthly"
	SubscriptionYearly  SubscriptionType = "yearly"
)

// Valid reports whether t is a known subscription type.
func (t SubscriptionType) Valid() bool {
	return t == SubscriptionMonthly || t == SubscriptionYearly
}

// AddPeriod adds one calendar period to t. Month overflow normalises like time.AddDate
// (Jan 31 + 1 month is Mar 3 in a non-leap year).
func (t SubscriptionType) AddPeriod(from time.Time) time.Time {
	if t == SubscriptionYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// ExtendPremium computes the new expiry for a successful payment. An active entitlement is
// extended from its current expiry; a lapsed or missing one starts from now.
func ExtendPremium(now time.Time, u *User, t SubscriptionType) time.Time {
	base := now
	if u != nil && u.PremiumAt(now) && u.PremiumExpiry != nil {
		base = *u.PremiumExpiry
	}
	return t.AddPeriod(base)
}

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Final reports whether the status can no longer change.
func (s PaymentStatus) Final() bool {
	return s == PaymentSucceeded || s == PaymentCanceled
}

// Payment is a premium purchase. ID is the gateway's payment id.
type Payment struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Amount           int64            `json:"amount"` // minor units
	Currency         string           `json:"currency"`
	Status           PaymentStatus    `json:"status"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
	Description      string           `json:"description"`
	PaymentURL       string           `json:"paymentUrl,omitempty"`
	ActivatedAt      *time.Time       `json:"activatedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Activation is the outcome of applying a succeeded payment to its owner.
type Activation struct {
	// Applied is false when the payment had already been applied earlier.
	Applied       bool       `json:"applied"`
	UserID        string     `json:"userId"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`
}

// CheckoutRequest is the input for starting a premium purchase.
type CheckoutRequest struct {
	SubscriptionType SubscriptionType `json:"subscriptionType" validate:"required,oneof=monthly yearly"`
}

// PaymentLinkResponse returns the URL to redirect the user to for payment.
type PaymentLinkResponse struct {
	PaymentURL string `json:"paymentUrl"`
	PaymentID  string `json:"paymentId"`
}

// PaymentStatusResponse is returned by the polling endpoint.
type PaymentStatusResponse struct {
	ID               string           `json:"id"`
	Status           PaymentStatus    `json:"status"`
	Amount           int64            `json:"amount"`
	Currency         string           `json:"currency"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
	Description      string           `json:"description"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// NewPaymentStatusResponse builds the polling view of a payment.
func NewPaymentStatusResponse(p *Payment) *PaymentStatusResponse {
	return &PaymentStatusResponse{
		ID:               p.ID,
		Status:           p.Status,
		Amount:           p.Amount,
		Currency:         p.Currency,
		SubscriptionType: p.SubscriptionType,
		Description:      p.Description,
		CreatedAt:        p.CreatedAt,
	}
}
