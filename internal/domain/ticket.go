package domain

import "time"

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketClosed   TicketStatus = "closed"
)

// Ticket is a support request filed by a user.
type Ticket struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Subject   string       `json:"subject"`
	Message   string       `json:"message"`
	Status    TicketStatus `json:"status"`
	Reply     *string      `json:"reply,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CreateTicketRequest is the validated input for filing a ticket.
type CreateTicketRequest struct {
	Subject string `json:"subject" validate:"required,min=3,max=200"`
	Message string `json:"message" validate:"required,min=1,max=5000"`
}

// ReplyTicketRequest is the validated input for an admin reply.
type ReplyTicketRequest struct {
	Reply string `json:"reply" validate:"required,min=1,max=5000"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users             int `json:"users"`
	PremiumUsers      int `json:"premiumUsers"`
	Readings          int `json:"readings"`
	SucceededPayments int `json:"succeededPayments"`
	OpenTickets       int `json:"openTickets"`
}
