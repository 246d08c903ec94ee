// Package stripe implements the card payment-method provider backing
// wallet deposits and withdrawals (spec component C6), grounded on the
// teacher's payment-domain port/adapter split: a narrow Provider port
// exposes only what the wallet deposit/withdrawal path needs, and Adapter
// implements it against github.com/stripe/stripe-go/v76.
package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// IntentRequest is a request to create a Stripe PaymentIntent for a wallet
// deposit.
type IntentRequest struct {
	AmountMinorUnits int64
	Currency         string
	CustomerID       string
	IdempotencyKey   string
	Metadata         map[string]string
}

// IntentResponse is what creating a PaymentIntent returns.
type IntentResponse struct {
	ProviderPaymentID string
	ClientSecret      string
	Status            string
}

// RefundRequest is a request to refund a previously captured payment, used
// for withdrawal-side card refunds.
type RefundRequest struct {
	ProviderPaymentID string
	AmountMinorUnits  int64 // 0 = full refund
	IdempotencyKey    string
}

// RefundResponse is what a refund request returns.
type RefundResponse struct {
	RefundID string
	Status   string
	Amount   int64
}

// Event is a parsed webhook notification, translated into the fields the
// wallet service needs to complete or fail a pending deposit.
type Event struct {
	Type              string
	ProviderPaymentID string
	Succeeded         bool
	Failed            bool
	FailureReason     string
}

// Provider is the narrow port the wallet service's card deposit/withdrawal
// path depends on — not the full teacher PaymentProviderAdapter surface,
// since wallet transactions only need intent creation, refund and webhook
// parsing.
type Provider interface {
	CreatePaymentIntent(req IntentRequest) (*IntentResponse, error)
	RefundPayment(req RefundRequest) (*RefundResponse, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Adapter implements Provider against the real Stripe API.
type Adapter struct {
	webhookSecret string
}

// NewAdapter builds an Adapter. apiKey and webhookSecret come from
// configuration (spec §4.1's config store), not environment variables
// directly, so they can be rotated per tenant/brand without a redeploy.
func NewAdapter(apiKey, webhookSecret string) *Adapter {
	stripe.Key = apiKey
	return &Adapter{webhookSecret: webhookSecret}
}

func (a *Adapter) CreatePaymentIntent(req IntentRequest) (*IntentResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinorUnits),
		Currency: stripe.String(req.Currency),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &IntentResponse{ProviderPaymentID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (a *Adapter) RefundPayment(req RefundRequest) (*RefundResponse, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.ProviderPaymentID)}
	if req.AmountMinorUnits > 0 {
		params.Amount = stripe.Int64(req.AmountMinorUnits)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create refund: %w", err)
	}
	return &RefundResponse{RefundID: r.ID, Status: string(r.Status), Amount: r.Amount}, nil
}

func (a *Adapter) ParseWebhook(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEvent(payload, signature, a.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: verify webhook signature: %w", err)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: parse payment_intent: %w", err)
	}

	event := &Event{Type: string(evt.Type), ProviderPaymentID: pi.ID}
	switch evt.Type {
	case "payment_intent.succeeded":
		event.Succeeded = true
	case "payment_intent.payment_failed":
		event.Failed = true
		if pi.LastPaymentError != nil {
			event.FailureReason = pi.LastPaymentError.Msg
		}
	default:
		return nil, fmt.Errorf("stripe: unhandled event type: %s", evt.Type)
	}
	return event, nil
}

var _ Provider = (*Adapter)(nil)
