package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransGateway opens Snap transactions. The order id is the payment id.
type MidtransGateway struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
}

// NewMidtransGateway creates a gateway for the sandbox or production environment.
func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	g := &MidtransGateway{serverKey: serverKey}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

func (g *MidtransGateway) Name() string { return "midtrans" }

func (g *MidtransGateway) CreatePayment(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	orderID := "tarot-" + uuid.New().String()

	resp, mErr := g.snap.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			Email: req.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Plan,
				Name:  req.Description,
				Price: req.Amount,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: req.SuccessURL,
		},
		CustomField1: req.UserID,
		CustomField2: req.Plan,
	})
	if mErr != nil {
		return nil, fmt.Errorf("midtrans: create transaction: %s", mErr.GetMessage())
	}
	return &Checkout{ID: orderID, URL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) GetPayment(ctx context.Context, id string) (*Transaction, error) {
	resp, mErr := g.core.CheckTransaction(id)
	if mErr != nil {
		if mErr.GetStatusCode() == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("midtrans: check transaction: %s", mErr.GetMessage())
	}
	if resp.StatusCode == "404" {
		return nil, ErrNotFound
	}

	created, _ := time.Parse("2006-01-02 15:04:05", resp.TransactionTime)
	amount, _ := strconv.ParseFloat(resp.GrossAmount, 64)
	return &Transaction{
		ID:        resp.OrderID,
		Status:    midtransStatus(resp.TransactionStatus, resp.FraudStatus),
		Amount:    int64(amount),
		Currency:  "idr",
		CreatedAt: created,
	}, nil
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

func (g *MidtransGateway) ParseWebhook(payload []byte, header http.Header) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("midtrans: invalid notification: %w", err)
	}

	want := MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	if subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		return nil, ErrInvalidSignature
	}

	return &Event{
		ID:        n.TransactionID + ":" + n.TransactionStatus,
		PaymentID: n.OrderID,
		Status:    midtransStatus(n.TransactionStatus, n.FraudStatus),
	}, nil
}

// MidtransSignature computes SHA512(order_id + status_code + gross_amount + server_key) as hex.
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func midtransStatus(transactionStatus, fraudStatus string) Status {
	switch transactionStatus {
	case "settlement":
		return StatusSucceeded
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return StatusSucceeded
		}
		return StatusPending
	case "deny", "expire", "cancel", "failure":
		return StatusCanceled
	default:
		return StatusPending
	}
}
