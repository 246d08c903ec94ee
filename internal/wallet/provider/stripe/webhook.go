package stripe

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/eventbus"
	"github.com/coreledger/platform/internal/wallet"
)

// PendingDeposit records a card deposit between CreatePaymentIntent and the
// webhook confirming it, so the webhook (which only carries a provider
// payment id) can be resolved back to a wallet, user and amount.
type PendingDeposit struct {
	ID                uuid.UUID
	WalletID          uuid.UUID
	UserID            uuid.UUID
	Amount            int64
	Currency          string
	ProviderPaymentID string
	Consumed          bool
}

// PendingDepositStore is the narrow port Dispatcher looks up and resolves
// pending deposits through.
type PendingDepositStore interface {
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*PendingDeposit, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, failureReason string) error
}

// Dispatcher translates parsed Stripe webhook events into wallet
// transactions, closing the loop opened by CreatePaymentIntent.
type Dispatcher struct {
	wallets  *wallet.Service
	deposits PendingDepositStore
	events   eventbus.Bus
}

// NewDispatcher builds a Dispatcher over the wallet service and pending
// deposit store.
func NewDispatcher(wallets *wallet.Service, deposits PendingDepositStore) *Dispatcher {
	return &Dispatcher{wallets: wallets, deposits: deposits}
}

// WithEventBus publishes a `payment.completed` event on the
// `integration:payment` channel (spec §6) after a successful deposit, for
// the Notification Dispatcher (C12) to translate into a user-facing alert.
func (d *Dispatcher) WithEventBus(bus eventbus.Bus) *Dispatcher {
	d.events = bus
	return d
}

// HandleEvent resolves evt's provider payment id to its pending deposit and,
// on success, credits the wallet via CreateWalletTransaction. A failed
// payment intent consumes the pending deposit without crediting anything,
// since no funds were ever captured. Unknown payment ids are logged and
// ignored rather than erroring, since Stripe may retry delivery of events
// this service created under a different account/context.
func (d *Dispatcher) HandleEvent(ctx context.Context, evt *Event) error {
	pending, err := d.deposits.FindByProviderPaymentID(ctx, evt.ProviderPaymentID)
	if err != nil {
		if common.IsNotFound(err) {
			slog.WarnContext(ctx, "stripe webhook for unknown payment intent", "provider_payment_id", evt.ProviderPaymentID)
			return nil
		}
		return err
	}
	if pending.Consumed {
		return nil
	}

	switch {
	case evt.Succeeded:
		_, err := d.wallets.CreateWalletTransaction(ctx, pending.WalletID, pending.UserID, wallet.TxDeposit, wallet.BalanceReal,
			pending.Amount, pending.Currency, "card deposit via stripe")
		if err != nil {
			return err
		}
		d.publishPaymentCompleted(pending)
		return d.deposits.MarkConsumed(ctx, pending.ID, "")
	case evt.Failed:
		return d.deposits.MarkConsumed(ctx, pending.ID, evt.FailureReason)
	default:
		return nil
	}
}

func (d *Dispatcher) publishPaymentCompleted(pending *PendingDeposit) {
	if d.events == nil {
		return
	}
	env := eventbus.NewEnvelope("payment.completed", map[string]any{
		"wallet_id": pending.WalletID,
		"amount":    pending.Amount,
		"currency":  pending.Currency,
	})
	env.UserID = pending.UserID
	if err := d.events.Publish(eventbus.ChannelPayment, env); err != nil {
		slog.Error("failed to publish payment.completed event", "err", err)
	}
}
