package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

// earn записывает продажи на 20000 рублей, что даёт 1000 рублей на балансе при ставке 5%.
func earn(t *testing.T, svc *Service, userID int64) {
	t.Helper()
	product := createProduct(t, svc)
	_, err := svc.RecordSale(context.Background(), SaleInput{UserID: userID, ProductID: product.ID, Quantity: 400})
	require.NoError(t, err)
}

func TestCreateWithdrawal_Commission(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	earn(t, svc, u.ID)

	w, err := svc.CreateWithdrawal(ctx, u.ID, withdrawal.Request{Amount: "1000", Phone: "8 (912) 345-67-89"})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(50).Equal(w.Commission), w.Commission.String())
	assert.True(t, decimal.NewFromInt(950).Equal(w.AmountToReceive), w.AmountToReceive.String())
	assert.True(t, w.Amount.Equal(w.Commission.Add(w.AmountToReceive)))
	assert.Equal(t, "79123456789", w.Phone)
	assert.Equal(t, model.WithdrawalPending, w.Status)

	bal, err := svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, bal.Earnings.IsZero(), "balance must drop by the requested amount, got %s", bal.Earnings)
	assert.True(t, decimal.NewFromInt(1000).Equal(bal.Withdrawn))
}

func TestCreateWithdrawal_Rejections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	earn(t, svc, u.ID)

	_, err := svc.CreateWithdrawal(ctx, u.ID, withdrawal.Request{Amount: "1000.01", Phone: "79123456789"})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = svc.CreateWithdrawal(ctx, u.ID, withdrawal.Request{Amount: "50", Phone: "79123456789"})
	assert.ErrorIs(t, err, withdrawal.ErrAmountTooSmall)

	_, err = svc.CreateWithdrawal(ctx, u.ID, withdrawal.Request{Amount: "500", Phone: "+1 555 0100"})
	assert.ErrorIs(t, err, withdrawal.ErrPhoneInvalid)

	list, err := svc.ListWithdrawals(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests must not be stored")
}

func TestSetWithdrawalStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	earn(t, svc, u.ID)

	w, err := svc.CreateWithdrawal(ctx, u.ID, withdrawal.Request{Amount: "400", Phone: "79123456789"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetWithdrawalStatus(ctx, "not-a-uuid", model.WithdrawalRejected), model.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetWithdrawalStatus(ctx, w.ID.String(), model.WithdrawalPending), model.ErrInvalidInput)

	require.NoError(t, svc.SetWithdrawalStatus(ctx, w.ID.String(), model.WithdrawalRejected))
	assert.ErrorIs(t, svc.SetWithdrawalStatus(ctx, w.ID.String(), model.WithdrawalCompleted), model.ErrInvalidTransition)

	bal, err := svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(bal.Earnings), bal.Earnings.String())
}
