package service

import (
	"context"
	"errors"

	"github.com/tarotdeck/backend/pkg/payment"
)

// failingGateway always fails, to exercise upstream error paths.
type failingGateway struct{ payment.MockGateway }

func (*failingGateway) CreatePayment(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	return nil, errors.New("gateway down")
}

// recharged reports a different charged amount than the checkout asked for.
type recharged struct {
	*payment.MockGateway
	amount int64
}

func (g *recharged) GetPayment(ctx context.Context, id string) (*payment.Transaction, error) {
	tx, err := g.MockGateway.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.Amount = g.amount
	return tx, nil
}

func ptr[T any](v T) *T { return &v }
