package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"canteen-backend/internal/cache"
	"canteen-backend/internal/metrics"
	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/timeutil"
)

const (
	casRetries = 5
	casBackoff = 25 * time.Millisecond
	dateLayout = "2006-01-02"
	carryNote  = "Auto-generated"
	clampNote  = "balance clamped at 0"
)

// ledgerStore is the slice of the stock repository the ledger needs
type ledgerStore interface {
	GetMonth(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error)
	GetLatestBefore(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error)
	ListFrom(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) ([]*models.StockMonth, error)
	Insert(ctx context.Context, sm *models.StockMonth) error
	UpdateCAS(ctx context.Context, sm *models.StockMonth) error
	DistinctProducts(ctx context.Context, theaterID int, ledger models.LedgerKind) ([]int, error)
}

type ledgerProductCatalog interface {
	GetForTheater(ctx context.Context, theaterID, id int) (*models.Product, error)
}

// ledgerCache is the current-stock cache seam. The default forwards to the
// redis helpers; tests substitute an in-memory map.
type ledgerCache interface {
	GetStock(ctx context.Context, theaterID, productID int, ledger string) (*models.CurrentStock, bool)
	SetStock(ctx context.Context, cs *models.CurrentStock)
	Invalidate(ctx context.Context, theaterID, productID int, ledger string)
}

type redisLedgerCache struct{}

func (redisLedgerCache) GetStock(ctx context.Context, theaterID, productID int, ledger string) (*models.CurrentStock, bool) {
	return cache.GetCachedStock(ctx, theaterID, productID, ledger)
}

func (redisLedgerCache) SetStock(ctx context.Context, cs *models.CurrentStock) {
	cache.CacheStock(ctx, cs)
}

func (redisLedgerCache) Invalidate(ctx context.Context, theaterID, productID int, ledger string) {
	cache.InvalidateBalance(ctx, theaterID, productID, ledger)
}

// LedgerService maintains the dense per-product daily balance history.
// Writers serialize through an optimistic version check on the month
// document; readers never block on background repair.
type LedgerService struct {
	store   ledgerStore
	catalog ledgerProductCatalog
	cache   ledgerCache
	tasks   *TaskRunner

	// now is swappable in tests
	now func() time.Time
}

func NewLedgerService(store ledgerStore, catalog ledgerProductCatalog) *LedgerService {
	return &LedgerService{
		store:   store,
		catalog: catalog,
		cache:   redisLedgerCache{},
		now:     timeutil.Now,
	}
}

// SetTaskRunner attaches the deferred-work runner. Without one, chain repair
// and auto-expire simply do not get scheduled.
func (s *LedgerService) SetTaskRunner(t *TaskRunner) {
	s.tasks = t
}

// GetOrCreateMonth returns the month document, creating it with oldStock
// carried from the most recent prior month (0 when no history).
func (s *LedgerService) GetOrCreateMonth(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	if month < 1 || month > 12 {
		return nil, models.NewValidationError("month must be 1..12", nil)
	}
	sm, err := s.store.GetMonth(ctx, theaterID, productID, ledger, year, month)
	if err != nil {
		return nil, err
	}
	if sm != nil {
		return sm, nil
	}

	prev, err := s.store.GetLatestBefore(ctx, theaterID, productID, ledger, year, month)
	if err != nil {
		return nil, models.NewUnavailableError("prior month lookup failed", err)
	}
	oldStock := 0
	if prev != nil {
		oldStock = prev.ClosingBalance
	}

	sm = &models.StockMonth{
		TheaterID:      theaterID,
		ProductID:      productID,
		Ledger:         ledger,
		Year:           year,
		Month:          month,
		OldStock:       oldStock,
		StockDetails:   []models.StockEntry{},
		ClosingBalance: oldStock,
	}
	if err := s.store.Insert(ctx, sm); err != nil {
		// Lost a create race: the row now exists, read it back
		if appErr := models.AsAppError(err); appErr.Kind == models.ErrConflict {
			return s.store.GetMonth(ctx, theaterID, productID, ledger, year, month)
		}
		return nil, err
	}
	return sm, nil
}

// AddEntry appends one movement to the month located by the entry date,
// recalculates, and persists under the optimistic version check.
func (s *LedgerService) AddEntry(ctx context.Context, req *models.AddStockEntryRequest) (*models.StockMonth, error) {
	entry := req.Entry
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	if req.Ledger == models.LedgerTheater && entry.Sales != 0 {
		// The theater ledger never subtracts sales; callers that pass it
		// get it zeroed, loudly.
		log.Printf("[Ledger] dropping sales=%d on theater ledger entry (theater=%d product=%d date=%s)",
			entry.Sales, req.TheaterID, req.ProductID, entry.Date)
		entry.Sales = 0
	}

	date, _ := time.Parse(dateLayout, entry.Date)
	year, month := date.Year(), int(date.Month())

	sm, err := s.mutateMonth(ctx, req.TheaterID, req.ProductID, req.Ledger, year, month,
		func(sm *models.StockMonth) error {
			sm.StockDetails = insertByDate(sm.StockDetails, entry)
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.afterWrite(req.TheaterID, req.ProductID, req.Ledger, year, month)
	return sm, nil
}

// DecrementForSale posts a SALES entry only if the month's closing balance
// stays at or above floor afterwards. The check runs inside the versioned
// write, so concurrent sales cannot both pass against the same stock; a
// failed check surfaces as PreconditionFailed without retrying.
func (s *LedgerService) DecrementForSale(ctx context.Context, req *models.AddStockEntryRequest, floor int) (*models.StockMonth, error) {
	entry := req.Entry
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	if entry.Type != models.StockEntrySales {
		return nil, models.NewValidationError("guarded decrements take SALES entries only", nil)
	}

	date, _ := time.Parse(dateLayout, entry.Date)
	year, month := date.Year(), int(date.Month())

	sm, err := s.mutateMonth(ctx, req.TheaterID, req.ProductID, req.Ledger, year, month,
		func(sm *models.StockMonth) error {
			if sm.ClosingBalance-entry.Sales < floor {
				return models.NewPreconditionError(fmt.Sprintf(
					"insufficient stock: have %d, need %d", sm.ClosingBalance, entry.Sales))
			}
			sm.StockDetails = insertByDate(sm.StockDetails, entry)
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.afterWrite(req.TheaterID, req.ProductID, req.Ledger, year, month)
	return sm, nil
}

// UpdateEntry replaces the real entry at index (position among real entries
// in date order) and recalculates.
func (s *LedgerService) UpdateEntry(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month, index int, entry models.StockEntry) (*models.StockMonth, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	if ledger == models.LedgerTheater && entry.Sales != 0 {
		log.Printf("[Ledger] dropping sales=%d on theater ledger entry (theater=%d product=%d date=%s)",
			entry.Sales, theaterID, productID, entry.Date)
		entry.Sales = 0
	}

	sm, err := s.mutateMonth(ctx, theaterID, productID, ledger, year, month,
		func(sm *models.StockMonth) error {
			if index < 0 || index >= len(sm.StockDetails) {
				return models.NewNotFoundError("stock entry")
			}
			details := append([]models.StockEntry{}, sm.StockDetails[:index]...)
			details = append(details, sm.StockDetails[index+1:]...)
			sm.StockDetails = insertByDate(details, entry)
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.afterWrite(theaterID, productID, ledger, year, month)
	return sm, nil
}

// DeleteEntry removes the real entry at index and recalculates
func (s *LedgerService) DeleteEntry(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month, index int) (*models.StockMonth, error) {
	sm, err := s.mutateMonth(ctx, theaterID, productID, ledger, year, month,
		func(sm *models.StockMonth) error {
			if index < 0 || index >= len(sm.StockDetails) {
				return models.NewNotFoundError("stock entry")
			}
			sm.StockDetails = append(sm.StockDetails[:index], sm.StockDetails[index+1:]...)
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.afterWrite(theaterID, productID, ledger, year, month)
	return sm, nil
}

// mutateMonth runs the read-modify-recalculate-write loop under the version
// check, retrying lost races with jittered backoff.
func (s *LedgerService) mutateMonth(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int, mutate func(*models.StockMonth) error) (*models.StockMonth, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		if attempt > 0 {
			metrics.LedgerCASRetries.Inc()
			backoff := time.Duration(attempt)*casBackoff + time.Duration(rand.Int63n(int64(casBackoff)))
			select {
			case <-ctx.Done():
				return nil, models.NewUnavailableError("ledger write cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		sm, err := s.GetOrCreateMonth(ctx, theaterID, productID, ledger, year, month)
		if err != nil {
			return nil, err
		}
		if err := mutate(sm); err != nil {
			return nil, err
		}
		s.recalculate(sm)

		err = s.store.UpdateCAS(ctx, sm)
		if err == nil {
			return sm, nil
		}
		if err != repositories.ErrVersionConflict {
			return nil, err
		}
		lastErr = err
	}
	metrics.LedgerCASConflicts.Inc()
	return nil, models.NewConflictError(fmt.Sprintf("stock month contention after %d attempts: %v", casRetries, lastErr))
}

// recalculate rebuilds running balances over the real entries in date order.
// Synthetic carry rows are not stored; MonthlySnapshot regenerates them.
func (s *LedgerService) recalculate(sm *models.StockMonth) {
	sortEntriesByDate(sm.StockDetails)

	running := sm.OldStock
	totalInvord := 0
	for i := range sm.StockDetails {
		e := &sm.StockDetails[i]
		e.OldStock = running
		running = applyRecurrence(running, e, sm.Ledger)
		e.Balance = running
		totalInvord += e.InvordStock
	}
	sm.ClosingBalance = running
	sm.TotalInvordStock = totalInvord
}

// applyRecurrence applies one entry's deltas to the running balance,
// clamping at zero with a notes annotation.
func applyRecurrence(running int, e *models.StockEntry, ledger models.LedgerKind) int {
	var next int
	if ledger == models.LedgerCafe {
		next = running + e.AddonStock + e.CancelStock - e.Sales - e.ExpiredStock - e.DamageStock + e.StockAdjustment
	} else {
		next = running + e.InvordStock - e.Transfer - e.ExpiredStock - e.DamageStock + e.StockAdjustment
	}
	if next < 0 {
		if e.Notes == "" {
			e.Notes = clampNote
		} else if !strings.Contains(e.Notes, clampNote) {
			e.Notes = e.Notes + "; " + clampNote
		}
		next = 0
	}
	return next
}

// MonthlySnapshot returns the month with synthetic carry-forward rows filled
// in so every day from the first entry through today (or month end) has
// exactly one row.
func (s *LedgerService) MonthlySnapshot(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	sm, err := s.GetOrCreateMonth(ctx, theaterID, productID, ledger, year, month)
	if err != nil {
		return nil, err
	}
	out := *sm
	out.StockDetails = s.withCarryForward(sm, s.now())
	return &out, nil
}

// withCarryForward produces the dense view: real entries plus synthetic
// zero-delta rows for every skipped day up to today (capped at month end).
func (s *LedgerService) withCarryForward(sm *models.StockMonth, now time.Time) []models.StockEntry {
	real := sm.StockDetails
	if len(real) == 0 {
		return nil
	}

	monthStart := time.Date(sm.Year, time.Month(sm.Month), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, -1)
	limit := timeutil.StartOfDay(now)
	if limit.After(monthEnd) {
		limit = monthEnd
	}

	var dense []models.StockEntry
	var running int
	var cursor time.Time

	appendCarry := func(day time.Time, balance int) {
		dense = append(dense, models.StockEntry{
			Date:     day.Format(dateLayout),
			Type:     models.StockEntryCarry,
			Unit:     lastUnit(dense),
			OldStock: balance,
			Balance:  balance,
			Notes:    carryNote,
			Auto:     true,
		})
	}

	for i, e := range real {
		day, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			continue
		}
		if i == 0 {
			cursor = day
		}
		for cursor.Before(day) {
			appendCarry(cursor, running)
			cursor = cursor.AddDate(0, 0, 1)
		}
		// Same-day entries stack without a carry row between them
		dense = append(dense, e)
		running = e.Balance
		if day.After(cursor) || day.Equal(cursor) {
			cursor = day.AddDate(0, 0, 1)
		}
	}
	for !cursor.After(limit) {
		appendCarry(cursor, running)
		cursor = cursor.AddDate(0, 0, 1)
	}
	return dense
}

func lastUnit(entries []models.StockEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Unit != "" {
			return entries[i].Unit
		}
	}
	return ""
}

// GetCurrent answers the current balance in one store read (plus cache).
// The full snapshot is cached, so hits and misses return the same shape.
func (s *LedgerService) GetCurrent(ctx context.Context, theaterID, productID int, ledger models.LedgerKind) (*models.CurrentStock, error) {
	now := s.now()
	year, month := now.Year(), int(now.Month())

	if cs, ok := s.cache.GetStock(ctx, theaterID, productID, string(ledger)); ok {
		return cs, nil
	}

	sm, err := s.store.GetMonth(ctx, theaterID, productID, ledger, year, month)
	if err != nil {
		return nil, err
	}

	cs := &models.CurrentStock{TheaterID: theaterID, ProductID: productID, Ledger: ledger}
	if sm != nil {
		cs.Balance = sm.ClosingBalance
		cs.TotalInvordStock = sm.TotalInvordStock
		cs.Unit = s.resolveUnitFrom(ctx, theaterID, productID, sm)
	} else {
		prev, err := s.store.GetLatestBefore(ctx, theaterID, productID, ledger, year, month)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			cs.Balance = prev.ClosingBalance
			cs.Unit = s.resolveUnitFrom(ctx, theaterID, productID, prev)
		}
	}

	s.cache.SetStock(ctx, cs)
	return cs, nil
}

// ResolveUnit returns the unit of the most recent real entry, preferring
// units other than the product default; empty means "use product metadata".
func ResolveUnit(sm *models.StockMonth, defaultUnit string) string {
	if sm == nil {
		return ""
	}
	var fallback string
	for i := len(sm.StockDetails) - 1; i >= 0; i-- {
		u := sm.StockDetails[i].Unit
		if u == "" {
			continue
		}
		if u != defaultUnit {
			return u
		}
		if fallback == "" {
			fallback = u
		}
	}
	return fallback
}

func (s *LedgerService) resolveUnitFrom(ctx context.Context, theaterID, productID int, sm *models.StockMonth) string {
	defaultUnit := ""
	if s.catalog != nil {
		if p, err := s.catalog.GetForTheater(ctx, theaterID, productID); err == nil {
			defaultUnit = p.StockUnit
		}
	}
	if u := ResolveUnit(sm, defaultUnit); u != "" {
		return u
	}
	return defaultUnit
}

// afterWrite invalidates the cached balance and schedules deferred repair of
// later months so their oldStock chains stay linked.
func (s *LedgerService) afterWrite(theaterID, productID int, ledger models.LedgerKind, year, month int) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.cache.Invalidate(ctx, theaterID, productID, string(ledger))

	if s.tasks == nil {
		return
	}
	s.tasks.Submit("ledger-chain-repair", func(ctx context.Context) {
		if err := s.RepairChain(ctx, theaterID, productID, ledger, year, month); err != nil {
			log.Printf("[Ledger] chain repair failed (theater=%d product=%d %s %d-%02d): %v",
				theaterID, productID, ledger, year, month, err)
		}
	})
}

// RepairChain re-links oldStock across months from (year, month) forward.
// Runs off the request path; a write to an old month eventually propagates
// to the present.
func (s *LedgerService) RepairChain(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) error {
	months, err := s.store.ListFrom(ctx, theaterID, productID, ledger, year, month)
	if err != nil {
		return err
	}
	for i := 1; i < len(months); i++ {
		prevClosing := months[i-1].ClosingBalance
		if months[i].OldStock == prevClosing {
			continue
		}
		target := months[i]
		_, err := s.mutateMonth(ctx, theaterID, productID, ledger, target.Year, target.Month,
			func(sm *models.StockMonth) error {
				sm.OldStock = prevClosing
				return nil
			})
		if err != nil {
			return err
		}
		// Re-read so the next link sees the recalculated closing
		repaired, err := s.store.GetMonth(ctx, theaterID, productID, ledger, target.Year, target.Month)
		if err != nil {
			return err
		}
		if repaired != nil {
			months[i] = repaired
		}
	}
	return nil
}

// AutoExpire posts EXPIRED entries for batches whose expire date has passed.
// Idempotent per batch: a batch that already has an expiry entry is skipped.
func (s *LedgerService) AutoExpire(ctx context.Context, theaterID int, ledger models.LedgerKind) {
	now := s.now()
	today := timeutil.StartOfDay(now)
	year, month := now.Year(), int(now.Month())

	products, err := s.store.DistinctProducts(ctx, theaterID, ledger)
	if err != nil {
		log.Printf("[Ledger] auto-expire scan failed (theater=%d): %v", theaterID, err)
		return
	}

	for _, productID := range products {
		sm, err := s.store.GetMonth(ctx, theaterID, productID, ledger, year, month)
		if err != nil || sm == nil {
			continue
		}
		expired := make(map[string]bool)
		for _, e := range sm.StockDetails {
			if e.Type == models.StockEntryExpired && e.BatchNumber != "" {
				expired[e.BatchNumber] = true
			}
		}
		for _, e := range sm.StockDetails {
			if e.ExpireDate == "" || e.BatchNumber == "" || expired[e.BatchNumber] {
				continue
			}
			if e.Type != models.StockEntryAdded && e.Type != models.StockEntryAddon {
				continue
			}
			expireDay, err := time.Parse(dateLayout, e.ExpireDate)
			if err != nil || expireDay.After(today) {
				continue
			}
			qty := e.InvordStock
			if e.Type == models.StockEntryAddon {
				qty = e.AddonStock
			}
			if qty <= 0 {
				continue
			}
			_, err = s.AddEntry(ctx, &models.AddStockEntryRequest{
				TheaterID: theaterID,
				ProductID: productID,
				Ledger:    ledger,
				Entry: models.StockEntry{
					Date:         today.Format(dateLayout),
					Type:         models.StockEntryExpired,
					Quantity:     qty,
					Unit:         e.Unit,
					ExpiredStock: qty,
					BatchNumber:  e.BatchNumber,
					Notes:        "auto-expired batch " + e.BatchNumber,
				},
			})
			if err != nil {
				log.Printf("[Ledger] auto-expire write failed (theater=%d product=%d batch=%s): %v",
					theaterID, productID, e.BatchNumber, err)
			} else {
				expired[e.BatchNumber] = true
			}
		}
	}
}

// validateEntry checks date format, delta signs, and type consistency
func validateEntry(e *models.StockEntry) error {
	if _, err := time.Parse(dateLayout, e.Date); err != nil {
		return models.NewValidationError("invalid entry date", map[string]string{"date": "expected YYYY-MM-DD"})
	}
	fields := map[string]int{
		"quantity":      e.Quantity,
		"invord_stock":  e.InvordStock,
		"addon_stock":   e.AddonStock,
		"transfer":      e.Transfer,
		"sales":         e.Sales,
		"cancel_stock":  e.CancelStock,
		"expired_stock": e.ExpiredStock,
		"damage_stock":  e.DamageStock,
	}
	for name, v := range fields {
		if v < 0 {
			return models.NewValidationError("stock deltas must be non-negative", map[string]string{name: "negative"})
		}
	}
	switch e.Type {
	case models.StockEntryAdded:
		if e.InvordStock <= 0 {
			return models.NewValidationError("ADDED entries need invord_stock > 0", nil)
		}
	case models.StockEntryAddon:
		if e.AddonStock <= 0 {
			return models.NewValidationError("ADDON entries need addon_stock > 0", nil)
		}
	case models.StockEntrySales:
		if e.Sales <= 0 {
			return models.NewValidationError("SALES entries need sales > 0", nil)
		}
	case models.StockEntryTransfer:
		if e.Transfer <= 0 {
			return models.NewValidationError("TRANSFER entries need transfer > 0", nil)
		}
	case models.StockEntryExpired:
		if e.ExpiredStock <= 0 {
			return models.NewValidationError("EXPIRED entries need expired_stock > 0", nil)
		}
	case models.StockEntryDamaged:
		if e.DamageStock <= 0 {
			return models.NewValidationError("DAMAGED entries need damage_stock > 0", nil)
		}
	case models.StockEntryCancel:
		if e.CancelStock <= 0 && e.StockAdjustment == 0 {
			return models.NewValidationError("CANCEL entries need cancel_stock or stock_adjustment", nil)
		}
	case models.StockEntryAdjustment:
		// adjustment may be signed, any value accepted
	case models.StockEntryCarry:
		return models.NewValidationError("carry-forward entries are generated, not submitted", nil)
	default:
		return models.NewValidationError("unknown entry type", map[string]string{"type": string(e.Type)})
	}
	return nil
}

// insertByDate keeps stockDetails sorted by date with insertion order
// preserved among same-date entries.
func insertByDate(details []models.StockEntry, entry models.StockEntry) []models.StockEntry {
	out := append(details, entry)
	sortEntriesByDate(out)
	return out
}

func sortEntriesByDate(details []models.StockEntry) {
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Date < details[j].Date
	})
}
