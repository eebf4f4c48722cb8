package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"canteen-backend/internal/metrics"
	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/timeutil"
)

type orderStore interface {
	Create(ctx context.Context, o *models.Order, requestHash string) error
	GetIdempotencyRecord(ctx context.Context, theaterID int, key string) (*repositories.IdempotencyRecord, error)
	Get(ctx context.Context, id int) (*models.Order, error)
	GetForTheater(ctx context.Context, theaterID, id int) (*models.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderFilter) ([]*models.Order, error)
	TransitionStatus(ctx context.Context, id int, from, to models.OrderStatus) error
	MarkPaid(ctx context.Context, id int, method, gatewayPaymentID string) error
	SetGatewayOrderID(ctx context.Context, id int, gatewayOrderID string) error
	SetPaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
}

type orderCatalog interface {
	GetByIDs(ctx context.Context, theaterID int, ids []int) (map[int]*models.Product, error)
	GetActiveCombo(ctx context.Context, theaterID, id int) (*models.Combo, error)
}

type orderLedger interface {
	GetCurrent(ctx context.Context, theaterID, productID int, ledger models.LedgerKind) (*models.CurrentStock, error)
	AddEntry(ctx context.Context, req *models.AddStockEntryRequest) (*models.StockMonth, error)
	DecrementForSale(ctx context.Context, req *models.AddStockEntryRequest, floor int) (*models.StockMonth, error)
}

type orderSettings interface {
	Get(ctx context.Context, theaterID *int, key string) (*models.SystemSetting, error)
}

type printEnqueuer interface {
	EnqueueOrder(ctx context.Context, order *models.Order, printerHint string) error
}

type gatewayClient interface {
	CreateGatewayOrder(ctx context.Context, amount float64, receipt string) (string, error)
}

// OrderService owns the order lifecycle: validation, server-side pricing,
// stock decrement with compensation, numbering, idempotency, and the
// handoff to the print pipeline.
type OrderService struct {
	store    orderStore
	catalog  orderCatalog
	ledger   orderLedger
	settings orderSettings

	// optional collaborators, attached after construction
	printer printEnqueuer
	gateway gatewayClient
}

func NewOrderService(store orderStore, catalog orderCatalog, ledger orderLedger, settings orderSettings) *OrderService {
	return &OrderService{store: store, catalog: catalog, ledger: ledger, settings: settings}
}

func (s *OrderService) SetPrintEnqueuer(p printEnqueuer) { s.printer = p }
func (s *OrderService) SetGateway(g gatewayClient)       { s.gateway = g }

// decrementedItem tracks a stock decrement so a later failure can post the
// compensating entry.
type decrementedItem struct {
	productID int
	quantity  int
	unit      string
}

// Submit accepts, prices, and persists one order. All-or-nothing with
// respect to stock and the order row; print enqueue is best effort.
func (s *OrderService) Submit(ctx context.Context, req *models.SubmitOrderRequest, idemKey string, userID int) (*models.Order, error) {
	if err := validateSubmit(req); err != nil {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	requestHash := hashSubmitRequest(req)
	if idemKey != "" {
		prior, err := s.store.GetIdempotencyRecord(ctx, req.TheaterID, idemKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			if prior.RequestHash != requestHash {
				metrics.OrdersRejected.WithLabelValues("conflict").Inc()
				return nil, models.NewConflictError("idempotency key reused with a different payload")
			}
			return s.store.Get(ctx, prior.OrderID)
		}
	}

	order, err := s.buildOrder(ctx, req, idemKey, userID)
	if err != nil {
		return nil, err
	}

	decremented, err := s.decrementStock(ctx, req.TheaterID, order.Items)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, order, requestHash); err != nil {
		s.compensate(ctx, req.TheaterID, decremented, "order persist failed")
		if appErr := models.AsAppError(err); appErr.Kind == models.ErrConflict && idemKey != "" {
			// Two racing submits with the same key: the other one won
			if prior, lookupErr := s.store.GetIdempotencyRecord(ctx, req.TheaterID, idemKey); lookupErr == nil && prior != nil {
				return s.store.Get(ctx, prior.OrderID)
			}
		}
		return nil, err
	}

	metrics.OrdersSubmitted.WithLabelValues(string(order.Channel)).Inc()

	if order.Channel == models.ChannelOnline && s.gateway != nil && order.PaymentStatus == models.PaymentPending {
		gwOrderID, err := s.gateway.CreateGatewayOrder(ctx, order.Total, fmt.Sprintf("order-%d-%d", order.TheaterID, order.OrderNumber))
		if err != nil {
			log.Printf("[Orders] gateway order creation failed (order=%d): %v", order.ID, err)
		} else if err := s.store.SetGatewayOrderID(ctx, order.ID, gwOrderID); err != nil {
			log.Printf("[Orders] failed to attach gateway order id (order=%d): %v", order.ID, err)
		} else {
			order.GatewayOrderID = gwOrderID
		}
	}

	if s.printer != nil {
		printerHint := ""
		if req.KioskTypeID != nil {
			printerHint = fmt.Sprintf("kiosk-%d", *req.KioskTypeID)
		}
		if err := s.printer.EnqueueOrder(ctx, order, printerHint); err != nil {
			// Never fails the order; the job shows up in the failed queue
			log.Printf("[Orders] print enqueue failed (order=%d): %v", order.ID, err)
		}
	}

	return order, nil
}

// buildOrder resolves and prices the cart server-side
func (s *OrderService) buildOrder(ctx context.Context, req *models.SubmitOrderRequest, idemKey string, userID int) (*models.Order, error) {
	var productIDs []int
	for _, item := range req.Items {
		if item.ComboID == nil {
			productIDs = append(productIDs, item.ProductID)
		}
	}
	products, err := s.catalog.GetByIDs(ctx, req.TheaterID, productIDs)
	if err != nil {
		return nil, err
	}

	var (
		items    []models.OrderItem
		subtotal float64
		tax      float64
	)

	addLine := func(productID int, comboID *int, name string, unitPrice, taxRate float64, inclusive bool, qty int) {
		lineGross := unitPrice * float64(qty)
		var lineNet, lineTax float64
		if inclusive {
			lineNet = lineGross / (1 + taxRate/100)
			lineTax = lineGross - lineNet
		} else {
			lineNet = lineGross
			lineTax = lineGross * taxRate / 100
		}
		subtotal += lineNet
		tax += lineTax
		items = append(items, models.OrderItem{
			ProductID:  productID,
			ComboID:    comboID,
			Name:       name,
			UnitPrice:  round2(unitPrice),
			Quantity:   qty,
			TaxRate:    taxRate,
			TotalPrice: round2(lineNet + lineTax),
		})
	}

	for _, item := range req.Items {
		if item.ComboID != nil {
			combo, err := s.catalog.GetActiveCombo(ctx, req.TheaterID, *item.ComboID)
			if err != nil {
				metrics.OrdersRejected.WithLabelValues("validation").Inc()
				return nil, err
			}
			// Combos expand to one priced line; components decrement stock
			// individually via the combo's item list.
			comboID := combo.ID
			primary := 0
			if len(combo.Items) > 0 {
				primary = combo.Items[0].ProductID
			}
			addLine(primary, &comboID, combo.Name, combo.CurrentPrice, combo.TaxRate, combo.GSTInclusive, item.Quantity)
			continue
		}

		p, ok := products[item.ProductID]
		if !ok {
			metrics.OrdersRejected.WithLabelValues("validation").Inc()
			return nil, models.NewValidationError("unknown product in cart",
				map[string]string{"product_id": strconv.Itoa(item.ProductID)})
		}
		if !p.Sellable() {
			metrics.OrdersRejected.WithLabelValues("validation").Inc()
			return nil, models.NewValidationError("product is not available",
				map[string]string{"product_id": strconv.Itoa(item.ProductID)})
		}
		addLine(p.ID, nil, p.Name, p.EffectivePrice(), p.TaxRate, p.GSTInclusive, item.Quantity)
	}

	serviceCharge := 0.0
	if pct := s.settingFloat(ctx, req.TheaterID, models.SettingServiceChargePct); pct > 0 {
		serviceCharge = subtotal * pct / 100
	}

	subtotal = round2(subtotal)
	tax = round2(tax)
	serviceCharge = round2(serviceCharge)
	discount := round2(req.Discount)
	total := round2(subtotal + tax + serviceCharge - discount)
	if total < 0 {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, models.NewValidationError("discount exceeds order value", nil)
	}

	if req.ClientTotal > 0 && math.Abs(req.ClientTotal-total) > 0.01 {
		log.Printf("[Orders] client total %.2f disagrees with server total %.2f (theater=%d)",
			req.ClientTotal, total, req.TheaterID)
	}

	paymentStatus := models.PaymentPending
	if req.Channel == models.ChannelPOS && req.MarkPaid {
		paymentStatus = models.PaymentPaid
	}

	return &models.Order{
		TheaterID:       req.TheaterID,
		Channel:         req.Channel,
		KioskTypeID:     req.KioskTypeID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             tax,
		ServiceCharge:   serviceCharge,
		Discount:        discount,
		Total:           total,
		PaymentMethod:   defaultPaymentMethod(req),
		PaymentStatus:   paymentStatus,
		Status:          models.OrderPending,
		IdempotencyKey:  idemKey,
		CreatedByUserID: userID,
	}, nil
}

// decrementStock posts SALES entries on the cafe ledger for every tracked
// component. Balances are checked first so a doomed order touches nothing,
// then each decrement re-checks its floor inside the versioned ledger write
// so racing submits cannot both take the same stock. A mid-flight failure
// compensates the entries already posted.
func (s *OrderService) decrementStock(ctx context.Context, theaterID int, items []models.OrderItem) ([]decrementedItem, error) {
	needed := make(map[int]int)
	for _, item := range items {
		if item.ComboID != nil {
			combo, err := s.catalog.GetActiveCombo(ctx, theaterID, *item.ComboID)
			if err != nil {
				return nil, err
			}
			for _, ci := range combo.Items {
				needed[ci.ProductID] += ci.Quantity * item.Quantity
			}
			continue
		}
		needed[item.ProductID] += item.Quantity
	}

	var productIDs []int
	for id := range needed {
		productIDs = append(productIDs, id)
	}
	products, err := s.catalog.GetByIDs(ctx, theaterID, productIDs)
	if err != nil {
		return nil, err
	}

	type pending struct {
		productID int
		quantity  int
		unit      string
		name      string
		minStock  int
	}
	var toDecrement []pending
	for productID, qty := range needed {
		p, ok := products[productID]
		if !ok {
			metrics.OrdersRejected.WithLabelValues("validation").Inc()
			return nil, models.NewValidationError("unknown product in cart",
				map[string]string{"product_id": strconv.Itoa(productID)})
		}
		if !p.TrackStock {
			continue
		}
		current, err := s.ledger.GetCurrent(ctx, theaterID, productID, models.LedgerCafe)
		if err != nil {
			return nil, err
		}
		if current.Balance-qty < p.MinStock {
			metrics.OrdersRejected.WithLabelValues("stock").Inc()
			return nil, models.NewPreconditionError(fmt.Sprintf(
				"insufficient stock for %s: have %d, need %d", p.Name, current.Balance, qty))
		}
		unit := current.Unit
		if unit == "" {
			unit = p.StockUnit
		}
		toDecrement = append(toDecrement, pending{
			productID: productID, quantity: qty, unit: unit, name: p.Name, minStock: p.MinStock})
	}

	today := timeutil.Now().Format(dateLayout)
	var done []decrementedItem
	for _, d := range toDecrement {
		_, err := s.ledger.DecrementForSale(ctx, &models.AddStockEntryRequest{
			TheaterID: theaterID,
			ProductID: d.productID,
			Ledger:    models.LedgerCafe,
			Entry: models.StockEntry{
				Date:     today,
				Type:     models.StockEntrySales,
				Quantity: d.quantity,
				Unit:     d.unit,
				Sales:    d.quantity,
				Notes:    "order sale",
			},
		}, d.minStock)
		if err != nil {
			s.compensate(ctx, theaterID, done, "stock decrement failed mid-order")
			if appErr := models.AsAppError(err); appErr.Kind == models.ErrPreconditionFailed {
				// Lost a race with another submit after the pre-check passed
				metrics.OrdersRejected.WithLabelValues("stock").Inc()
				return nil, models.NewPreconditionError(fmt.Sprintf(
					"insufficient stock for %s: %s", d.name, appErr.Message))
			}
			return nil, err
		}
		done = append(done, decrementedItem{productID: d.productID, quantity: d.quantity, unit: d.unit})
	}
	return done, nil
}

// compensate returns decremented quantities to the cafe ledger
func (s *OrderService) compensate(ctx context.Context, theaterID int, items []decrementedItem, reason string) {
	today := timeutil.Now().Format(dateLayout)
	for _, d := range items {
		_, err := s.ledger.AddEntry(ctx, &models.AddStockEntryRequest{
			TheaterID: theaterID,
			ProductID: d.productID,
			Ledger:    models.LedgerCafe,
			Entry: models.StockEntry{
				Date:        today,
				Type:        models.StockEntryCancel,
				Quantity:    d.quantity,
				Unit:        d.unit,
				CancelStock: d.quantity,
				Notes:       reason,
			},
		})
		if err != nil {
			log.Printf("[Orders] compensation write failed (theater=%d product=%d qty=%d): %v",
				theaterID, d.productID, d.quantity, err)
		}
	}
}

// Transition moves an order one step along the state machine. Skipping
// states is rejected; cancellation returns tracked stock.
func (s *OrderService) Transition(ctx context.Context, theaterID, orderID int, next models.OrderStatus) (*models.Order, error) {
	order, err := s.store.GetForTheater(ctx, theaterID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, models.NewPreconditionError(fmt.Sprintf(
			"cannot transition order from %s to %s", order.Status, next))
	}

	if err := s.store.TransitionStatus(ctx, orderID, order.Status, next); err != nil {
		return nil, err
	}

	if next == models.OrderCancelled {
		s.returnStockFor(ctx, order)
	}

	order.Status = next
	return order, nil
}

// returnStockFor posts compensating CANCEL entries for a cancelled order
func (s *OrderService) returnStockFor(ctx context.Context, order *models.Order) {
	needed := make(map[int]int)
	for _, item := range order.Items {
		if item.ComboID != nil {
			combo, err := s.catalog.GetActiveCombo(ctx, order.TheaterID, *item.ComboID)
			if err != nil {
				log.Printf("[Orders] cancel: combo %d lookup failed: %v", *item.ComboID, err)
				continue
			}
			for _, ci := range combo.Items {
				needed[ci.ProductID] += ci.Quantity * item.Quantity
			}
			continue
		}
		needed[item.ProductID] += item.Quantity
	}

	productIDs := make([]int, 0, len(needed))
	for id := range needed {
		productIDs = append(productIDs, id)
	}
	products, err := s.catalog.GetByIDs(ctx, order.TheaterID, productIDs)
	if err != nil {
		log.Printf("[Orders] cancel: product lookup failed (order=%d): %v", order.ID, err)
		return
	}

	var items []decrementedItem
	for productID, qty := range needed {
		p, ok := products[productID]
		if !ok || !p.TrackStock {
			continue
		}
		items = append(items, decrementedItem{productID: productID, quantity: qty, unit: p.StockUnit})
	}
	s.compensate(ctx, order.TheaterID, items, fmt.Sprintf("order %d cancelled", order.OrderNumber))
}

func (s *OrderService) Get(ctx context.Context, theaterID, orderID int) (*models.Order, error) {
	return s.store.GetForTheater(ctx, theaterID, orderID)
}

func (s *OrderService) List(ctx context.Context, filter *models.OrderFilter) ([]*models.Order, error) {
	return s.store.List(ctx, filter)
}

// MarkPaid records a counter payment against a POS order
func (s *OrderService) MarkPaid(ctx context.Context, theaterID, orderID int, method string) (*models.Order, error) {
	order, err := s.store.GetForTheater(ctx, theaterID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return order, nil
	}
	if err := s.store.MarkPaid(ctx, orderID, method, ""); err != nil {
		return nil, err
	}
	order.PaymentStatus = models.PaymentPaid
	order.PaymentMethod = method
	return order, nil
}

// SettleGatewayPayment applies a verified gateway callback to its order
func (s *OrderService) SettleGatewayPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID string, captured bool) (*models.Order, error) {
	order, err := s.store.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if captured {
		if err := s.store.MarkPaid(ctx, order.ID, "gateway", gatewayPaymentID); err != nil {
			return nil, err
		}
		order.PaymentStatus = models.PaymentPaid
		order.GatewayPaymentID = gatewayPaymentID
	} else {
		if err := s.store.SetPaymentStatus(ctx, order.ID, models.PaymentFailed); err != nil {
			return nil, err
		}
		order.PaymentStatus = models.PaymentFailed
	}
	return order, nil
}

func (s *OrderService) settingFloat(ctx context.Context, theaterID int, key string) float64 {
	setting, err := s.settings.Get(ctx, &theaterID, key)
	if err != nil || setting == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(setting.SettingValue), 64)
	if err != nil {
		return 0
	}
	return v
}

func validateSubmit(req *models.SubmitOrderRequest) error {
	fields := map[string]string{}
	if req.TheaterID <= 0 {
		fields["theater_id"] = "required"
	}
	switch req.Channel {
	case models.ChannelPOS, models.ChannelKiosk, models.ChannelOnline:
	default:
		fields["channel"] = "must be pos, kiosk or online"
	}
	if len(req.Items) == 0 {
		fields["items"] = "at least one item required"
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be positive"
		}
		if item.ComboID == nil && item.ProductID <= 0 {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "required"
		}
	}
	if req.Discount < 0 {
		fields["discount"] = "must be non-negative"
	}
	if len(fields) > 0 {
		return models.NewValidationError("invalid order submission", fields)
	}
	return nil
}

func defaultPaymentMethod(req *models.SubmitOrderRequest) string {
	if req.PaymentMethod != "" {
		return req.PaymentMethod
	}
	if req.Channel == models.ChannelOnline {
		return "gateway"
	}
	return "cash"
}

func hashSubmitRequest(req *models.SubmitOrderRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%.2f|", req.TheaterID, req.Channel, req.Discount)
	for _, item := range req.Items {
		comboID := 0
		if item.ComboID != nil {
			comboID = *item.ComboID
		}
		fmt.Fprintf(&b, "%d:%d:%d|", item.ProductID, comboID, item.Quantity)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
