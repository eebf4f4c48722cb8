package services

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
)

type fakeOrderStore struct {
	orders     map[int]*models.Order
	idem       map[string]*repositories.IdempotencyRecord
	nextID     int
	nextNumber int64
	createErr  error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: map[int]*models.Order{},
		idem:   map[string]*repositories.IdempotencyRecord{},
	}
}

func idemKeyFor(theaterID int, key string) string {
	return strconv.Itoa(theaterID) + "/" + key
}

func (f *fakeOrderStore) Create(_ context.Context, o *models.Order, requestHash string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	f.nextNumber++
	o.ID = f.nextID
	o.OrderNumber = f.nextNumber
	f.orders[o.ID] = o
	if o.IdempotencyKey != "" {
		f.idem[idemKeyFor(o.TheaterID, o.IdempotencyKey)] = &repositories.IdempotencyRecord{
			OrderID: o.ID, RequestHash: requestHash,
		}
	}
	return nil
}

func (f *fakeOrderStore) GetIdempotencyRecord(_ context.Context, theaterID int, key string) (*repositories.IdempotencyRecord, error) {
	return f.idem[idemKeyFor(theaterID, key)], nil
}

func (f *fakeOrderStore) Get(_ context.Context, id int) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, models.NewNotFoundError("order")
	}
	return o, nil
}

func (f *fakeOrderStore) GetForTheater(_ context.Context, theaterID, id int) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.TheaterID != theaterID {
		return nil, models.NewNotFoundError("order")
	}
	return o, nil
}

func (f *fakeOrderStore) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.GatewayOrderID == gatewayOrderID {
			return o, nil
		}
	}
	return nil, models.NewNotFoundError("order")
}

func (f *fakeOrderStore) List(_ context.Context, filter *models.OrderFilter) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.TheaterID == filter.TheaterID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) TransitionStatus(_ context.Context, id int, from, to models.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return models.NewPreconditionError("stale order status")
	}
	o.Status = to
	return nil
}

func (f *fakeOrderStore) MarkPaid(_ context.Context, id int, method, gatewayPaymentID string) error {
	o, ok := f.orders[id]
	if !ok {
		return models.NewNotFoundError("order")
	}
	o.PaymentStatus = models.PaymentPaid
	o.PaymentMethod = method
	o.GatewayPaymentID = gatewayPaymentID
	return nil
}

func (f *fakeOrderStore) SetGatewayOrderID(_ context.Context, id int, gatewayOrderID string) error {
	o, ok := f.orders[id]
	if !ok {
		return models.NewNotFoundError("order")
	}
	o.GatewayOrderID = gatewayOrderID
	return nil
}

func (f *fakeOrderStore) SetPaymentStatus(_ context.Context, id int, status models.PaymentStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return models.NewNotFoundError("order")
	}
	o.PaymentStatus = status
	return nil
}

type fakeCatalog struct {
	products map[int]*models.Product
	combos   map[int]*models.Combo
}

func (f *fakeCatalog) GetByIDs(_ context.Context, theaterID int, ids []int) (map[int]*models.Product, error) {
	out := map[int]*models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.TheaterID == theaterID {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetActiveCombo(_ context.Context, theaterID, id int) (*models.Combo, error) {
	c, ok := f.combos[id]
	if !ok || c.TheaterID != theaterID || !c.IsActive {
		return nil, models.NewNotFoundError("combo")
	}
	return c, nil
}

// fakeOrderLedger tracks balances per product and records posted entries
type fakeOrderLedger struct {
	balances map[int]int
	entries  []*models.AddStockEntryRequest
	failOn   int // product id whose sale decrement fails, 0 = never

	// staleBalances, when set, is what GetCurrent reports instead of the
	// live balances, mimicking a reader lagging behind another writer
	staleBalances map[int]int
}

func (f *fakeOrderLedger) GetCurrent(_ context.Context, theaterID, productID int, ledger models.LedgerKind) (*models.CurrentStock, error) {
	balance := f.balances[productID]
	if f.staleBalances != nil {
		balance = f.staleBalances[productID]
	}
	return &models.CurrentStock{
		TheaterID: theaterID, ProductID: productID, Ledger: ledger,
		Balance: balance, Unit: "pcs",
	}, nil
}

func (f *fakeOrderLedger) AddEntry(_ context.Context, req *models.AddStockEntryRequest) (*models.StockMonth, error) {
	f.entries = append(f.entries, req)
	switch req.Entry.Type {
	case models.StockEntrySales:
		f.balances[req.ProductID] -= req.Entry.Sales
	case models.StockEntryCancel:
		f.balances[req.ProductID] += req.Entry.CancelStock
	}
	return &models.StockMonth{}, nil
}

func (f *fakeOrderLedger) DecrementForSale(_ context.Context, req *models.AddStockEntryRequest, floor int) (*models.StockMonth, error) {
	if f.failOn != 0 && req.ProductID == f.failOn {
		return nil, models.NewUnavailableError("ledger write failed", nil)
	}
	have := f.balances[req.ProductID]
	if have-req.Entry.Sales < floor {
		return nil, models.NewPreconditionError(fmt.Sprintf(
			"insufficient stock: have %d, need %d", have, req.Entry.Sales))
	}
	f.entries = append(f.entries, req)
	f.balances[req.ProductID] -= req.Entry.Sales
	return &models.StockMonth{}, nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Get(_ context.Context, _ *int, key string) (*models.SystemSetting, error) {
	v, ok := f.values[key]
	if !ok {
		return nil, models.NewNotFoundError("setting")
	}
	return &models.SystemSetting{SettingKey: key, SettingValue: v}, nil
}

func testProduct(id int, price float64, taxRate float64, inclusive bool) *models.Product {
	return &models.Product{
		ID: id, TheaterID: 1, Name: fmt.Sprintf("Product %d", id),
		BasePrice: price, TaxRate: taxRate, GSTInclusive: inclusive,
		TrackStock: true, StockUnit: "pcs",
		IsActive: true, IsAvailable: true,
	}
}

func newTestOrderService(store *fakeOrderStore, catalog *fakeCatalog, ledger *fakeOrderLedger) *OrderService {
	return NewOrderService(store, catalog, ledger, &fakeSettings{values: map[string]string{}})
}

func submitReq(items ...models.SubmitOrderItem) *models.SubmitOrderRequest {
	return &models.SubmitOrderRequest{TheaterID: 1, Channel: models.ChannelPOS, Items: items}
}

func TestSubmitPricesExclusiveGST(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 150, 18, false),
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 100}}
	svc := newTestOrderService(store, catalog, ledger)

	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 2},
	), "", 7)
	require.NoError(t, err)

	// 2 x 150 = 300 net, 18% GST on top
	assert.Equal(t, 300.0, order.Subtotal)
	assert.Equal(t, 54.0, order.Tax)
	assert.Equal(t, 354.0, order.Total)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, int64(1), order.OrderNumber)
	assert.Equal(t, 7, order.CreatedByUserID)

	// Stock decremented on the cafe ledger
	assert.Equal(t, 98, ledger.balances[10])
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, models.LedgerCafe, ledger.entries[0].Ledger)
	assert.Equal(t, 2, ledger.entries[0].Entry.Sales)
}

func TestSubmitPricesInclusiveGST(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		11: testProduct(11, 118, 18, true),
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{11: 50}}
	svc := newTestOrderService(store, catalog, ledger)

	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 11, Quantity: 1},
	), "", 1)
	require.NoError(t, err)

	// 118 gross backs out to 100 net + 18 tax
	assert.Equal(t, 100.0, order.Subtotal)
	assert.Equal(t, 18.0, order.Tax)
	assert.Equal(t, 118.0, order.Total)
}

func TestSubmitAppliesServiceChargeAndDiscount(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 200, 0, false),
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := NewOrderService(store, catalog, ledger, &fakeSettings{values: map[string]string{
		models.SettingServiceChargePct: "10",
	}})

	req := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 1})
	req.Discount = 20
	order, err := svc.Submit(context.Background(), req, "", 1)
	require.NoError(t, err)

	assert.Equal(t, 200.0, order.Subtotal)
	assert.Equal(t, 20.0, order.ServiceCharge)
	assert.Equal(t, 200.0+20.0-20.0, order.Total)

	// Discount larger than the order is rejected
	req2 := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 1})
	req2.Discount = 500
	_, err = svc.Submit(context.Background(), req2, "", 1)
	require.Error(t, err)
	assert.Equal(t, models.ErrValidation, models.AsAppError(err).Kind)
}

func TestSubmitInsufficientStock(t *testing.T) {
	store := newFakeOrderStore()
	p := testProduct(10, 50, 0, false)
	p.MinStock = 2
	catalog := &fakeCatalog{products: map[int]*models.Product{10: p}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 5}}
	svc := newTestOrderService(store, catalog, ledger)

	// 5 on hand, min floor 2: at most 3 sellable
	_, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 4},
	), "", 1)
	require.Error(t, err)
	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrPreconditionFailed, appErr.Kind)
	assert.Contains(t, appErr.Message, "insufficient stock")
	assert.Empty(t, ledger.entries)
	assert.Empty(t, store.orders)
}

func TestSubmitRejectsRacingOversell(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 50, 0, false),
		11: testProduct(11, 60, 0, false),
	}}
	// Reads report plenty of stock, but product 11 really has one left:
	// the pre-check passes and only the guarded write catches the oversell
	ledger := &fakeOrderLedger{
		balances:      map[int]int{10: 20, 11: 1},
		staleBalances: map[int]int{10: 20, 11: 20},
	}
	svc := newTestOrderService(store, catalog, ledger)

	_, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 3},
		models.SubmitOrderItem{ProductID: 11, Quantity: 3},
	), "", 1)
	require.Error(t, err)
	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrPreconditionFailed, appErr.Kind)
	assert.Contains(t, appErr.Message, "insufficient stock")

	// No order persisted and any decrement taken first was compensated
	assert.Empty(t, store.orders)
	assert.Equal(t, 20, ledger.balances[10])
	assert.Equal(t, 1, ledger.balances[11])
}

func TestOrderNumbersGloballyUnique(t *testing.T) {
	store := newFakeOrderStore()
	other := testProduct(30, 80, 0, false)
	other.TheaterID = 2
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 50, 0, false),
		30: other,
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 100, 30: 100}}
	svc := newTestOrderService(store, catalog, ledger)

	theater2Req := func() *models.SubmitOrderRequest {
		return &models.SubmitOrderRequest{
			TheaterID: 2, Channel: models.ChannelPOS,
			Items: []models.SubmitOrderItem{{ProductID: 30, Quantity: 1}},
		}
	}

	perTheater := map[int][]int64{}
	for i := 0; i < 3; i++ {
		o1, err := svc.Submit(context.Background(), submitReq(
			models.SubmitOrderItem{ProductID: 10, Quantity: 1}), "", 1)
		require.NoError(t, err)
		o2, err := svc.Submit(context.Background(), theater2Req(), "", 1)
		require.NoError(t, err)
		perTheater[1] = append(perTheater[1], o1.OrderNumber)
		perTheater[2] = append(perTheater[2], o2.OrderNumber)
	}

	seen := map[int64]bool{}
	for _, numbers := range perTheater {
		for _, n := range numbers {
			assert.False(t, seen[n], "order number %d repeated across theaters", n)
			seen[n] = true
		}
	}
	for theaterID, numbers := range perTheater {
		for i := 1; i < len(numbers); i++ {
			assert.Greater(t, numbers[i], numbers[i-1],
				"theater %d numbers must increase", theaterID)
		}
	}
}

func TestSubmitUntrackedProductSkipsLedger(t *testing.T) {
	store := newFakeOrderStore()
	p := testProduct(10, 50, 0, false)
	p.TrackStock = false
	catalog := &fakeCatalog{products: map[int]*models.Product{10: p}}
	ledger := &fakeOrderLedger{balances: map[int]int{}}
	svc := newTestOrderService(store, catalog, ledger)

	_, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 3},
	), "", 1)
	require.NoError(t, err)
	assert.Empty(t, ledger.entries)
}

func TestSubmitIdempotencyReplay(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 100, 0, false),
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 50}}
	svc := newTestOrderService(store, catalog, ledger)

	req := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 1})
	first, err := svc.Submit(context.Background(), req, "key-1", 1)
	require.NoError(t, err)

	// Same key, same payload: replayed, no second decrement
	again, err := svc.Submit(context.Background(), req, "key-1", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, ledger.entries, 1)
	assert.Len(t, store.orders, 1)

	// Same key, different payload: conflict
	other := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 2})
	_, err = svc.Submit(context.Background(), other, "key-1", 1)
	require.Error(t, err)
	assert.Equal(t, models.ErrConflict, models.AsAppError(err).Kind)
}

func TestSubmitComboPricingAndComponentDecrement(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{
		products: map[int]*models.Product{
			20: testProduct(20, 120, 0, false),
			21: testProduct(21, 80, 0, false),
		},
		combos: map[int]*models.Combo{
			5: {
				ID: 5, TheaterID: 1, Name: "Movie Night",
				ActualPrice: 200, CurrentPrice: 170, TaxRate: 5, GSTInclusive: false,
				IsActive: true,
				Items: []models.ComboItem{
					{ProductID: 20, Quantity: 1},
					{ProductID: 21, Quantity: 2},
				},
			},
		},
	}
	ledger := &fakeOrderLedger{balances: map[int]int{20: 10, 21: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	comboID := 5
	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ComboID: &comboID, Quantity: 2},
	), "", 1)
	require.NoError(t, err)

	// Priced off the combo, not the components: 2 x 170 + 5% GST
	assert.Equal(t, 340.0, order.Subtotal)
	assert.Equal(t, 17.0, order.Tax)
	assert.Equal(t, 357.0, order.Total)

	// Components decrement individually: 2x1 of 20, 2x2 of 21
	assert.Equal(t, 8, ledger.balances[20])
	assert.Equal(t, 6, ledger.balances[21])
}

func TestSubmitCompensatesOnMidFlightFailure(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{
		10: testProduct(10, 50, 0, false),
		11: testProduct(11, 60, 0, false),
	}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 20, 11: 20}, failOn: 11}
	svc := newTestOrderService(store, catalog, ledger)

	_, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 3},
		models.SubmitOrderItem{ProductID: 11, Quantity: 2},
	), "", 1)
	require.Error(t, err)

	// Whichever product was decremented first got its quantity back
	assert.Equal(t, 20, ledger.balances[10])
	assert.Equal(t, 20, ledger.balances[11])
	assert.Empty(t, store.orders)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestOrderService(newFakeOrderStore(), &fakeCatalog{}, &fakeOrderLedger{balances: map[int]int{}})

	cases := []*models.SubmitOrderRequest{
		{TheaterID: 0, Channel: models.ChannelPOS, Items: []models.SubmitOrderItem{{ProductID: 1, Quantity: 1}}},
		{TheaterID: 1, Channel: "drive-thru", Items: []models.SubmitOrderItem{{ProductID: 1, Quantity: 1}}},
		{TheaterID: 1, Channel: models.ChannelPOS},
		{TheaterID: 1, Channel: models.ChannelPOS, Items: []models.SubmitOrderItem{{ProductID: 1, Quantity: 0}}},
		{TheaterID: 1, Channel: models.ChannelPOS, Items: []models.SubmitOrderItem{{ProductID: 1, Quantity: 1}}, Discount: -5},
	}
	for i, req := range cases {
		_, err := svc.Submit(context.Background(), req, "", 1)
		require.Error(t, err, "case %d", i)
		assert.Equal(t, models.ErrValidation, models.AsAppError(err).Kind, "case %d", i)
	}
}

func TestPOSMarkPaidUpFront(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{10: testProduct(10, 50, 0, false)}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	req := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 1})
	req.MarkPaid = true
	order, err := svc.Submit(context.Background(), req, "", 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "cash", order.PaymentMethod)
}

func TestTransitionStateMachine(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{10: testProduct(10, 50, 0, false)}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 1},
	), "", 1)
	require.NoError(t, err)

	// Skipping a state is rejected
	_, err = svc.Transition(context.Background(), 1, order.ID, models.OrderPreparing)
	require.Error(t, err)
	assert.Equal(t, models.ErrPreconditionFailed, models.AsAppError(err).Kind)

	for _, next := range []models.OrderStatus{
		models.OrderConfirmed, models.OrderPreparing, models.OrderReady, models.OrderServed,
	} {
		order, err = svc.Transition(context.Background(), 1, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}

	// Terminal states are final
	_, err = svc.Transition(context.Background(), 1, order.ID, models.OrderCancelled)
	require.Error(t, err)
}

func TestCancellationReturnsStock(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{10: testProduct(10, 50, 0, false)}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 4},
	), "", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, ledger.balances[10])

	order, err = svc.Transition(context.Background(), 1, order.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, 10, ledger.balances[10])

	// The compensating entry is a CANCEL on the cafe ledger
	last := ledger.entries[len(ledger.entries)-1]
	assert.Equal(t, models.StockEntryCancel, last.Entry.Type)
	assert.Equal(t, 4, last.Entry.CancelStock)
}

func TestSettleGatewayPayment(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{10: testProduct(10, 50, 0, false)}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	req := submitReq(models.SubmitOrderItem{ProductID: 10, Quantity: 1})
	req.Channel = models.ChannelOnline
	order, err := svc.Submit(context.Background(), req, "", 1)
	require.NoError(t, err)
	require.NoError(t, store.SetGatewayOrderID(context.Background(), order.ID, "rzp_order_1"))

	settled, err := svc.SettleGatewayPayment(context.Background(), "rzp_order_1", "pay_9", true)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, settled.PaymentStatus)
	assert.Equal(t, "pay_9", settled.GatewayPaymentID)

	_, err = svc.SettleGatewayPayment(context.Background(), "rzp_order_unknown", "pay_9", true)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestMarkPaidIdempotent(t *testing.T) {
	store := newFakeOrderStore()
	catalog := &fakeCatalog{products: map[int]*models.Product{10: testProduct(10, 50, 0, false)}}
	ledger := &fakeOrderLedger{balances: map[int]int{10: 10}}
	svc := newTestOrderService(store, catalog, ledger)

	order, err := svc.Submit(context.Background(), submitReq(
		models.SubmitOrderItem{ProductID: 10, Quantity: 1},
	), "", 1)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), 1, order.ID, "upi")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, "upi", paid.PaymentMethod)

	// Second call keeps the original method
	paid, err = svc.MarkPaid(context.Background(), 1, order.ID, "cash")
	require.NoError(t, err)
	assert.Equal(t, "upi", paid.PaymentMethod)
}
