package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/repository/memory"
)

// hookedRepo выполняет заданные действия перед записью в хранилище,
// имитируя конкурентное изменение между чтением и записью.
type hookedRepo struct {
	*memory.Store

	checkoutHooks []func()
	statusHooks   []func()
	checkouts     int
	statusUpdates int
}

func (r *hookedRepo) Checkout(ctx context.Context, cartVersion int64, o model.Order) (*model.Order, error) {
	r.checkouts++
	if len(r.checkoutHooks) > 0 {
		hook := r.checkoutHooks[0]
		r.checkoutHooks = r.checkoutHooks[1:]
		hook()
	}
	return r.Store.Checkout(ctx, cartVersion, o)
}

func (r *hookedRepo) UpdateOrderStatus(ctx context.Context, change model.StatusChange) error {
	r.statusUpdates++
	if len(r.statusHooks) > 0 {
		hook := r.statusHooks[0]
		r.statusHooks = r.statusHooks[1:]
		hook()
	}
	return r.Store.UpdateOrderStatus(ctx, change)
}

func newHookedService(t *testing.T) (*Service, *hookedRepo, *fakeClock) {
	t.Helper()

	repo := &hookedRepo{Store: memory.New()}
	svc, clock := newServiceOn(t, repo)
	return svc, repo, clock
}

func countStatus(o *model.Order, status model.OrderStatus) int {
	n := 0
	for _, h := range o.History {
		if h.Status == status {
			n++
		}
	}
	return n
}

func placeOrder(t *testing.T, svc *Service, userID, cost int64) *model.Order {
	t.Helper()
	ctx := context.Background()

	grantPoints(t, svc, userID, cost)
	p := createPrize(t, svc, cost)
	_, err := svc.AddToCart(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	o, err := svc.Checkout(ctx, userID, CheckoutInput{DeliveryAddress: "Main st. 1"})
	require.NoError(t, err)
	return o
}

func TestCancelOrder_RestoresPoints(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, _ := newTestService(t)
			ctx := context.Background()

			u := registerBartender(t, svc, "alice")
			grantPoints(t, svc, u.ID, 40)
			o := placeOrder(t, svc, u.ID, 750)

			if status == model.OrderStatusConfirmed {
				_, err := svc.TransitionOrder(ctx, o.Number, model.OrderStatusConfirmed, "", nil)
				require.NoError(t, err)
			}

			before, err := svc.GetBalance(ctx, u.ID)
			require.NoError(t, err)

			cancelled, err := svc.CancelOrder(ctx, model.Principal{UserID: u.ID, Role: u.Role}, o.Number, "changed my mind")
			require.NoError(t, err)
			assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)

			after, err := svc.GetBalance(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Points+o.TotalCost, after.Points)

			ledger, err := svc.ListLedger(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, model.LedgerRefund, ledger[0].Type)
		})
	}
}

func TestCancelOrder_Permissions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	owner := registerBartender(t, svc, "alice")
	other := registerBartender(t, svc, "bob")
	o := placeOrder(t, svc, owner.ID, 100)

	_, err := svc.CancelOrder(ctx, model.Principal{UserID: other.ID, Role: model.RoleBartender}, o.Number, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.CancelOrder(ctx, model.Principal{UserID: 999, Role: model.RoleAdmin}, o.Number, "")
	assert.NoError(t, err)
}

func TestTransitionOrder_FullLifecycle(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	o := placeOrder(t, svc, u.ID, 100)
	actor := model.Principal{UserID: u.ID, Role: u.Role}

	eta := clock.Now().Add(72 * time.Hour)
	steps := []model.OrderStatus{
		model.OrderStatusConfirmed,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	}
	for _, st := range steps {
		clock.Advance(time.Hour)
		var err error
		o, err = svc.TransitionOrder(ctx, o.Number, st, "", &eta)
		require.NoError(t, err)
	}

	stored, err := svc.GetOrder(ctx, actor, o.Number)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)
	assert.Len(t, stored.History, 5)
	require.NotNil(t, stored.ActualDelivery)
	require.NotNil(t, stored.EstimatedDelivery)

	_, err = svc.TransitionOrder(ctx, o.Number, model.OrderStatusPending, "", nil)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = svc.CancelOrder(ctx, actor, o.Number, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = svc.UpdateDelivery(ctx, actor, o.Number, "elsewhere", "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	again, err := svc.GetOrder(ctx, actor, o.Number)
	require.NoError(t, err)
	assert.Len(t, again.History, 5, "rejected operations must not append history")
}

func TestUpdateDelivery(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	o := placeOrder(t, svc, u.ID, 100)
	actor := model.Principal{UserID: u.ID, Role: u.Role}

	updated, err := svc.UpdateDelivery(ctx, actor, o.Number, "Second st. 2", "call first")
	require.NoError(t, err)
	assert.Equal(t, "Second st. 2", updated.DeliveryAddress)

	stored, err := svc.GetOrder(ctx, actor, o.Number)
	require.NoError(t, err)
	assert.Equal(t, "call first", stored.Notes)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
	assert.Len(t, stored.History, 1)
}

func TestGetOrder_ValidatesNumber(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetOrder(context.Background(), model.Principal{UserID: 1}, "123")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.GetOrder(context.Background(), model.Principal{UserID: 1}, "2410181234567")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListAllOrders_FiltersByStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	first := placeOrder(t, svc, u.ID, 100)
	placeOrder(t, svc, u.ID, 200)

	_, err := svc.TransitionOrder(ctx, first.Number, model.OrderStatusConfirmed, "", nil)
	require.NoError(t, err)

	all, err := svc.ListAllOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := svc.ListAllOrders(ctx, "confirmed")
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, first.Number, confirmed[0].Number)

	_, err = svc.ListAllOrders(ctx, "lost")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCheckout_RetriesOnceAfterConflict(t *testing.T) {
	svc, repo, _ := newHookedService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	grantPoints(t, svc, u.ID, 100)
	p := createPrize(t, svc, 40)
	_, err := svc.AddToCart(ctx, u.ID, p.ID, 1)
	require.NoError(t, err)

	repo.checkoutHooks = []func(){func() {
		_, err := svc.SetCartQuantity(ctx, u.ID, p.ID, 2)
		require.NoError(t, err)
	}}

	o, err := svc.Checkout(ctx, u.ID, CheckoutInput{DeliveryAddress: "Main st. 1"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.checkouts)
	assert.Equal(t, int64(80), o.TotalCost, "retry must use the cart as changed by the concurrent writer")

	bal, err := svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), bal.Points)
}

func TestCheckout_GivesUpAfterSecondConflict(t *testing.T) {
	svc, repo, _ := newHookedService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	grantPoints(t, svc, u.ID, 100)
	p := createPrize(t, svc, 10)
	_, err := svc.AddToCart(ctx, u.ID, p.ID, 1)
	require.NoError(t, err)

	bump := func() {
		_, err := svc.AddToCart(ctx, u.ID, p.ID, 1)
		require.NoError(t, err)
	}
	repo.checkoutHooks = []func(){bump, bump}

	_, err = svc.Checkout(ctx, u.ID, CheckoutInput{})
	assert.ErrorIs(t, err, model.ErrConcurrencyConflict)
	assert.Equal(t, 2, repo.checkouts)

	bal, err := svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Points)

	orders, err := svc.ListOrders(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestTransitionOrder_RetriesOnceAfterConflict(t *testing.T) {
	svc, repo, _ := newHookedService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	o := placeOrder(t, svc, u.ID, 100)
	actor := model.Principal{UserID: u.ID, Role: u.Role}

	repo.statusHooks = []func(){func() {
		_, err := svc.UpdateDelivery(ctx, actor, o.Number, "Second st. 2", "")
		require.NoError(t, err)
	}}

	confirmed, err := svc.TransitionOrder(ctx, o.Number, model.OrderStatusConfirmed, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, 2, repo.statusUpdates)

	stored, err := svc.GetOrder(ctx, actor, o.Number)
	require.NoError(t, err)
	assert.Equal(t, "Second st. 2", stored.DeliveryAddress)
	assert.Len(t, stored.History, 2)
	assert.Equal(t, 1, countStatus(stored, model.OrderStatusConfirmed))
}

func TestAutoConfirm_LosesRaceToAdminTransition(t *testing.T) {
	svc, repo, clock := newHookedService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	o := placeOrder(t, svc, u.ID, 100)
	clock.Advance(49 * time.Hour)

	repo.statusHooks = []func(){func() {
		_, err := svc.TransitionOrder(ctx, o.Number, model.OrderStatusConfirmed, "confirmed by admin", nil)
		require.NoError(t, err)
	}}

	svc.autoConfirmOrders(ctx)

	stored, err := svc.GetOrder(ctx, model.Principal{UserID: u.ID, Role: u.Role}, o.Number)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, stored.Status)
	require.Len(t, stored.History, 2)
	assert.Equal(t, 1, countStatus(stored, model.OrderStatusConfirmed))
	assert.Equal(t, "confirmed by admin", stored.History[1].Comment)
}

func TestTransitionOrder_ConcurrentTransitionsAppendOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := registerBartender(t, svc, "alice")
	o := placeOrder(t, svc, u.ID, 100)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.TransitionOrder(ctx, o.Number, model.OrderStatusConfirmed, "", nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := svc.GetOrder(ctx, model.Principal{UserID: u.ID, Role: u.Role}, o.Number)
	require.NoError(t, err)
	assert.Len(t, stored.History, 2)
	assert.Equal(t, 1, countStatus(stored, model.OrderStatusConfirmed))
}
