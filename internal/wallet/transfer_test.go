package wallet_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/wallet"
)

func TestCreateTransfer_MovesAmountFromSourceToDestination(t *testing.T) {
	svc, owner := newTestService(t)
	fromUser, toUser := uuid.New(), uuid.New()

	fromWallet, err := svc.CreateWallet(context.Background(), owner, fromUser, "USD", "default")
	require.NoError(t, err)
	toWallet, err := svc.CreateWallet(context.Background(), owner, toUser, "USD", "default")
	require.NoError(t, err)

	_, err = svc.CreateWalletTransaction(context.Background(), fromWallet.ID, fromUser, wallet.TxDeposit, wallet.BalanceReal, 1000, "USD", "fund source")
	require.NoError(t, err)

	transfer, err := svc.CreateTransfer(context.Background(), owner, fromUser, toUser, 300, 0, "USD", wallet.BalanceReal, wallet.BalanceReal, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.TransferApproved, transfer.Status)

	fromBalance, err := svc.BalanceOf(context.Background(), fromWallet, wallet.BalanceReal)
	require.NoError(t, err)
	toBalance, err := svc.BalanceOf(context.Background(), toWallet, wallet.BalanceReal)
	require.NoError(t, err)

	assert.Equal(t, int64(700), fromBalance)
	assert.Equal(t, int64(300), toBalance)
}

func TestCreateTransfer_WithFeeCreditsFeeAccount(t *testing.T) {
	svc, owner := newTestService(t)
	fromUser, toUser := uuid.New(), uuid.New()

	fromWallet, err := svc.CreateWallet(context.Background(), owner, fromUser, "USD", "default")
	require.NoError(t, err)
	toWallet, err := svc.CreateWallet(context.Background(), owner, toUser, "USD", "default")
	require.NoError(t, err)

	_, err = svc.CreateWalletTransaction(context.Background(), fromWallet.ID, fromUser, wallet.TxDeposit, wallet.BalanceReal, 1000, "USD", "fund source")
	require.NoError(t, err)

	transfer, err := svc.CreateTransfer(context.Background(), owner, fromUser, toUser, 300, 25, "USD", wallet.BalanceReal, wallet.BalanceReal, "ext-fee-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.TransferApproved, transfer.Status)
	assert.Equal(t, int64(25), transfer.FeeAmount)

	fromBalance, err := svc.BalanceOf(context.Background(), fromWallet, wallet.BalanceReal)
	require.NoError(t, err)
	toBalance, err := svc.BalanceOf(context.Background(), toWallet, wallet.BalanceReal)
	require.NoError(t, err)

	// source pays both the transferred amount and the fee; the destination
	// only ever receives amount.
	assert.Equal(t, int64(675), fromBalance)
	assert.Equal(t, int64(300), toBalance)
}

func TestCreateTransfer_InsufficientFundsFailsAndCompensates(t *testing.T) {
	svc, owner := newTestService(t)
	fromUser, toUser := uuid.New(), uuid.New()

	fromWallet, err := svc.CreateWallet(context.Background(), owner, fromUser, "USD", "default")
	require.NoError(t, err)
	toWallet, err := svc.CreateWallet(context.Background(), owner, toUser, "USD", "default")
	require.NoError(t, err)

	transfer, err := svc.CreateTransfer(context.Background(), owner, fromUser, toUser, 500, 0, "USD", wallet.BalanceReal, wallet.BalanceReal, "ext-2")
	require.NoError(t, err)
	assert.Equal(t, wallet.TransferFailed, transfer.Status)
	assert.NotEmpty(t, transfer.FailureReason)

	fromBalance, err := svc.BalanceOf(context.Background(), fromWallet, wallet.BalanceReal)
	require.NoError(t, err)
	toBalance, err := svc.BalanceOf(context.Background(), toWallet, wallet.BalanceReal)
	require.NoError(t, err)

	assert.Equal(t, int64(0), fromBalance)
	assert.Equal(t, int64(0), toBalance)
}

func TestCreateTransfer_RepeatedExternalRefIsIdempotent(t *testing.T) {
	svc, owner := newTestService(t)
	fromUser, toUser := uuid.New(), uuid.New()

	fromWallet, err := svc.CreateWallet(context.Background(), owner, fromUser, "USD", "default")
	require.NoError(t, err)
	toWallet, err := svc.CreateWallet(context.Background(), owner, toUser, "USD", "default")
	require.NoError(t, err)

	_, err = svc.CreateWalletTransaction(context.Background(), fromWallet.ID, fromUser, wallet.TxDeposit, wallet.BalanceReal, 1000, "USD", "fund source")
	require.NoError(t, err)

	first, err := svc.CreateTransfer(context.Background(), owner, fromUser, toUser, 300, 0, "USD", wallet.BalanceReal, wallet.BalanceReal, "ext-3")
	require.NoError(t, err)

	second, err := svc.CreateTransfer(context.Background(), owner, fromUser, toUser, 300, 0, "USD", wallet.BalanceReal, wallet.BalanceReal, "ext-3")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "CreateTransfer always creates a new Transfer record; idempotency is enforced at the saga/posting level via sagaId and externalRef")

	fromBalance, err := svc.BalanceOf(context.Background(), fromWallet, wallet.BalanceReal)
	require.NoError(t, err)
	toBalance, err := svc.BalanceOf(context.Background(), toWallet, wallet.BalanceReal)
	require.NoError(t, err)

	assert.Equal(t, int64(700), fromBalance)
	assert.Equal(t, int64(300), toBalance)
}
