package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/timeutil"
)

type fakeLedgerStore struct {
	months map[string]*models.StockMonth
	nextID int

	// casFailures makes the next N UpdateCAS calls lose the version race
	casFailures int
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{months: map[string]*models.StockMonth{}}
}

func monthKey(theaterID, productID int, ledger models.LedgerKind, year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01") +
		string(ledger) + string(rune('A'+theaterID)) + string(rune('A'+productID))
}

func cloneMonth(sm *models.StockMonth) *models.StockMonth {
	out := *sm
	out.StockDetails = append([]models.StockEntry{}, sm.StockDetails...)
	return &out
}

func (f *fakeLedgerStore) GetMonth(_ context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	sm, ok := f.months[monthKey(theaterID, productID, ledger, year, month)]
	if !ok {
		return nil, nil
	}
	return cloneMonth(sm), nil
}

func (f *fakeLedgerStore) GetLatestBefore(_ context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	var best *models.StockMonth
	cutoff := year*100 + month
	for _, sm := range f.months {
		if sm.TheaterID != theaterID || sm.ProductID != productID || sm.Ledger != ledger {
			continue
		}
		at := sm.Year*100 + sm.Month
		if at >= cutoff {
			continue
		}
		if best == nil || at > best.Year*100+best.Month {
			best = sm
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneMonth(best), nil
}

func (f *fakeLedgerStore) ListFrom(_ context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) ([]*models.StockMonth, error) {
	var out []*models.StockMonth
	from := year*100 + month
	for _, sm := range f.months {
		if sm.TheaterID != theaterID || sm.ProductID != productID || sm.Ledger != ledger {
			continue
		}
		if sm.Year*100+sm.Month >= from {
			out = append(out, cloneMonth(sm))
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Year*100+out[j].Month < out[i].Year*100+out[i].Month {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) Insert(_ context.Context, sm *models.StockMonth) error {
	key := monthKey(sm.TheaterID, sm.ProductID, sm.Ledger, sm.Year, sm.Month)
	if _, exists := f.months[key]; exists {
		return models.NewConflictError("stock month already exists")
	}
	f.nextID++
	sm.ID = f.nextID
	sm.Version = 1
	f.months[key] = cloneMonth(sm)
	return nil
}

func (f *fakeLedgerStore) UpdateCAS(_ context.Context, sm *models.StockMonth) error {
	if f.casFailures > 0 {
		f.casFailures--
		return repositories.ErrVersionConflict
	}
	key := monthKey(sm.TheaterID, sm.ProductID, sm.Ledger, sm.Year, sm.Month)
	stored, ok := f.months[key]
	if !ok || stored.Version != sm.Version {
		return repositories.ErrVersionConflict
	}
	sm.Version++
	f.months[key] = cloneMonth(sm)
	return nil
}

func (f *fakeLedgerStore) DistinctProducts(_ context.Context, theaterID int, ledger models.LedgerKind) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, sm := range f.months {
		if sm.TheaterID == theaterID && sm.Ledger == ledger && !seen[sm.ProductID] {
			seen[sm.ProductID] = true
			out = append(out, sm.ProductID)
		}
	}
	return out, nil
}

func newTestLedger(store *fakeLedgerStore, now time.Time) *LedgerService {
	svc := NewLedgerService(store, nil)
	svc.now = func() time.Time { return now.In(timeutil.IST) }
	return svc
}

// fakeStockCache is an in-memory stand-in for the redis snapshot cache
type fakeStockCache struct {
	stocks map[string]*models.CurrentStock
}

func newFakeStockCache() *fakeStockCache {
	return &fakeStockCache{stocks: map[string]*models.CurrentStock{}}
}

func stockCacheKey(theaterID, productID int, ledger string) string {
	return fmt.Sprintf("%d:%d:%s", theaterID, productID, ledger)
}

func (f *fakeStockCache) GetStock(_ context.Context, theaterID, productID int, ledger string) (*models.CurrentStock, bool) {
	cs, ok := f.stocks[stockCacheKey(theaterID, productID, ledger)]
	if !ok {
		return nil, false
	}
	out := *cs
	return &out, true
}

func (f *fakeStockCache) SetStock(_ context.Context, cs *models.CurrentStock) {
	out := *cs
	f.stocks[stockCacheKey(cs.TheaterID, cs.ProductID, string(cs.Ledger))] = &out
}

func (f *fakeStockCache) Invalidate(_ context.Context, theaterID, productID int, ledger string) {
	delete(f.stocks, stockCacheKey(theaterID, productID, ledger))
}

func istDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, timeutil.IST)
}

func addedEntry(date string, qty int) models.StockEntry {
	return models.StockEntry{
		Date: date, Type: models.StockEntryAdded,
		Quantity: qty, InvordStock: qty, Unit: "pcs",
	}
}

func TestAddEntryTheaterRecurrence(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.January, 15))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-10", 50),
	})
	require.NoError(t, err)

	sm, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: models.StockEntry{
			Date: "2025-01-12", Type: models.StockEntryExpired,
			Quantity: 5, ExpiredStock: 5, Unit: "pcs",
		},
	})
	require.NoError(t, err)

	require.Len(t, sm.StockDetails, 2)
	assert.Equal(t, 0, sm.StockDetails[0].OldStock)
	assert.Equal(t, 50, sm.StockDetails[0].Balance)
	assert.Equal(t, 50, sm.StockDetails[1].OldStock)
	assert.Equal(t, 45, sm.StockDetails[1].Balance)
	assert.Equal(t, 45, sm.ClosingBalance)
	assert.Equal(t, 50, sm.TotalInvordStock)
}

func TestTheaterLedgerDropsSales(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.March, 20))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-03-01", 100),
	})
	require.NoError(t, err)

	// An ADDED entry that smuggles a sales figure does not shrink the balance
	sm, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: models.StockEntry{
			Date: "2025-03-05", Type: models.StockEntryAdded,
			Quantity: 10, InvordStock: 10, Sales: 7,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 110, sm.ClosingBalance)
	assert.Equal(t, 0, sm.StockDetails[1].Sales)
}

func TestCafeRecurrence(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.February, 28))
	ctx := context.Background()

	entries := []models.StockEntry{
		{Date: "2025-02-01", Type: models.StockEntryAddon, Quantity: 40, AddonStock: 40},
		{Date: "2025-02-02", Type: models.StockEntrySales, Quantity: 12, Sales: 12},
		{Date: "2025-02-03", Type: models.StockEntryCancel, Quantity: 2, CancelStock: 2},
		{Date: "2025-02-04", Type: models.StockEntryDamaged, Quantity: 1, DamageStock: 1},
	}
	var sm *models.StockMonth
	var err error
	for _, e := range entries {
		sm, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
			TheaterID: 3, ProductID: 9, Ledger: models.LedgerCafe, Entry: e,
		})
		require.NoError(t, err)
	}

	// 0 +40 -12 +2 -1 = 29
	assert.Equal(t, 29, sm.ClosingBalance)
	assert.Equal(t, []int{40, 28, 30, 29}, []int{
		sm.StockDetails[0].Balance, sm.StockDetails[1].Balance,
		sm.StockDetails[2].Balance, sm.StockDetails[3].Balance,
	})
}

func TestBalanceClampsAtZero(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.April, 10))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-04-01", 5),
	})
	require.NoError(t, err)

	sm, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: models.StockEntry{
			Date: "2025-04-02", Type: models.StockEntryExpired,
			Quantity: 20, ExpiredStock: 20,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sm.ClosingBalance)
	assert.Contains(t, sm.StockDetails[1].Notes, "clamped")
}

func TestMonthlySnapshotGapFill(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.January, 15))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-10", 50),
	})
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: models.StockEntry{
			Date: "2025-01-12", Type: models.StockEntryExpired,
			Quantity: 5, ExpiredStock: 5, Unit: "pcs",
		},
	})
	require.NoError(t, err)

	snap, err := svc.MonthlySnapshot(ctx, 1, 2, models.LedgerTheater, 2025, 1)
	require.NoError(t, err)

	// Dense from the first entry (Jan 10) through today (Jan 15)
	require.Len(t, snap.StockDetails, 6)
	wantDates := []string{"2025-01-10", "2025-01-11", "2025-01-12", "2025-01-13", "2025-01-14", "2025-01-15"}
	wantBalances := []int{50, 50, 45, 45, 45, 45}
	for i, e := range snap.StockDetails {
		assert.Equal(t, wantDates[i], e.Date, "row %d date", i)
		assert.Equal(t, wantBalances[i], e.Balance, "row %d balance", i)
	}
	assert.False(t, snap.StockDetails[0].Auto)
	assert.True(t, snap.StockDetails[1].Auto)
	assert.Equal(t, models.StockEntryCarry, snap.StockDetails[1].Type)
	assert.Equal(t, "pcs", snap.StockDetails[3].Unit)

	// Synthetic rows never persist
	stored, err := store.GetMonth(ctx, 1, 2, models.LedgerTheater, 2025, 1)
	require.NoError(t, err)
	assert.Len(t, stored.StockDetails, 2)
}

func TestSnapshotCapsAtMonthEnd(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.March, 8))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-30", 10),
	})
	require.NoError(t, err)

	snap, err := svc.MonthlySnapshot(ctx, 1, 1, models.LedgerTheater, 2025, 1)
	require.NoError(t, err)

	// Jan 30 and Jan 31; a past month never runs into today
	require.Len(t, snap.StockDetails, 2)
	assert.Equal(t, "2025-01-31", snap.StockDetails[1].Date)
}

func TestNewMonthCarriesPriorClosing(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.February, 10))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-20", 30),
	})
	require.NoError(t, err)

	sm, err := svc.GetOrCreateMonth(ctx, 1, 1, models.LedgerTheater, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 30, sm.OldStock)
	assert.Equal(t, 30, sm.ClosingBalance)
	assert.Empty(t, sm.StockDetails)
}

func TestUpdateAndDeleteEntryRecalculate(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.May, 20))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-05-01", 10),
	})
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-05-03", 20),
	})
	require.NoError(t, err)

	sm, err := svc.UpdateEntry(ctx, 1, 1, models.LedgerTheater, 2025, 5, 0, addedEntry("2025-05-01", 15))
	require.NoError(t, err)
	assert.Equal(t, 35, sm.ClosingBalance)

	sm, err = svc.DeleteEntry(ctx, 1, 1, models.LedgerTheater, 2025, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, sm.ClosingBalance)
	assert.Len(t, sm.StockDetails, 1)

	_, err = svc.DeleteEntry(ctx, 1, 1, models.LedgerTheater, 2025, 5, 7)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestEntryValidation(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.June, 1))
	ctx := context.Background()

	cases := []models.StockEntry{
		{Date: "01-06-2025", Type: models.StockEntryAdded, InvordStock: 5},
		{Date: "2025-06-01", Type: models.StockEntryAdded},
		{Date: "2025-06-01", Type: models.StockEntrySales},
		{Date: "2025-06-01", Type: models.StockEntryCarry},
		{Date: "2025-06-01", Type: "BOGUS"},
		{Date: "2025-06-01", Type: models.StockEntryAdded, InvordStock: 5, Sales: -1},
	}
	for i, entry := range cases {
		_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
			TheaterID: 1, ProductID: 1, Ledger: models.LedgerCafe, Entry: entry,
		})
		require.Error(t, err, "case %d", i)
		assert.Equal(t, models.ErrValidation, models.AsAppError(err).Kind, "case %d", i)
	}
}

func TestCASRetryThenConflict(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.July, 5))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-07-01", 10),
	})
	require.NoError(t, err)

	// Two lost races then success
	store.casFailures = 2
	sm, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-07-02", 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 15, sm.ClosingBalance)

	// Exhausted retries surface as a conflict
	store.casFailures = casRetries
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-07-03", 5),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrConflict, models.AsAppError(err).Kind)
}

func TestRepairChainRelinksMonths(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.March, 1))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-10", 20),
	})
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-02-10", 5),
	})
	require.NoError(t, err)

	// Backdated write changes January's closing balance
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 1, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-01-15", 10),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RepairChain(ctx, 1, 1, models.LedgerTheater, 2025, 1))

	feb, err := store.GetMonth(ctx, 1, 1, models.LedgerTheater, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 30, feb.OldStock)
	assert.Equal(t, 35, feb.ClosingBalance)
}

func TestAutoExpirePostsOnce(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.August, 10))
	ctx := context.Background()

	entry := addedEntry("2025-08-01", 25)
	entry.BatchNumber = "B-77"
	entry.ExpireDate = "2025-08-05"
	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 4, ProductID: 6, Ledger: models.LedgerTheater, Entry: entry,
	})
	require.NoError(t, err)

	svc.AutoExpire(ctx, 4, models.LedgerTheater)
	sm, err := store.GetMonth(ctx, 4, 6, models.LedgerTheater, 2025, 8)
	require.NoError(t, err)
	require.Len(t, sm.StockDetails, 2)
	assert.Equal(t, models.StockEntryExpired, sm.StockDetails[1].Type)
	assert.Equal(t, 25, sm.StockDetails[1].ExpiredStock)
	assert.Equal(t, 0, sm.ClosingBalance)

	// Second sweep is a no-op for the same batch
	svc.AutoExpire(ctx, 4, models.LedgerTheater)
	sm, err = store.GetMonth(ctx, 4, 6, models.LedgerTheater, 2025, 8)
	require.NoError(t, err)
	assert.Len(t, sm.StockDetails, 2)
}

func TestGetCurrentCacheHitKeepsFullShape(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.September, 10))
	stocks := newFakeStockCache()
	svc.cache = stocks
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-09-05", 40),
	})
	require.NoError(t, err)

	miss, err := svc.GetCurrent(ctx, 1, 2, models.LedgerTheater)
	require.NoError(t, err)
	assert.Equal(t, 40, miss.Balance)
	assert.Equal(t, 40, miss.TotalInvordStock)
	assert.Equal(t, "pcs", miss.Unit)

	// The warm read carries the same unit and totals as the cold one
	hit, err := svc.GetCurrent(ctx, 1, 2, models.LedgerTheater)
	require.NoError(t, err)
	assert.Equal(t, miss, hit)

	// A write drops the snapshot; the next read sees the new balance
	_, err = svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 1, ProductID: 2, Ledger: models.LedgerTheater,
		Entry: addedEntry("2025-09-08", 10),
	})
	require.NoError(t, err)

	after, err := svc.GetCurrent(ctx, 1, 2, models.LedgerTheater)
	require.NoError(t, err)
	assert.Equal(t, 50, after.Balance)
	assert.Equal(t, 50, after.TotalInvordStock)
}

func TestDecrementForSaleGuardsFloor(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newTestLedger(store, istDate(2025, time.October, 12))
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, &models.AddStockEntryRequest{
		TheaterID: 2, ProductID: 7, Ledger: models.LedgerCafe,
		Entry: models.StockEntry{
			Date: "2025-10-01", Type: models.StockEntryAddon,
			Quantity: 10, AddonStock: 10, Unit: "pcs",
		},
	})
	require.NoError(t, err)

	saleOf := func(qty int) *models.AddStockEntryRequest {
		return &models.AddStockEntryRequest{
			TheaterID: 2, ProductID: 7, Ledger: models.LedgerCafe,
			Entry: models.StockEntry{
				Date: "2025-10-12", Type: models.StockEntrySales,
				Quantity: qty, Sales: qty, Unit: "pcs",
			},
		}
	}

	// 10 on hand with a floor of 3: a sale of 8 would land at 2
	_, err = svc.DecrementForSale(ctx, saleOf(8), 3)
	require.Error(t, err)
	assert.Equal(t, models.ErrPreconditionFailed, models.AsAppError(err).Kind)

	// Nothing persisted by the refused sale
	sm, err := store.GetMonth(ctx, 2, 7, models.LedgerCafe, 2025, 10)
	require.NoError(t, err)
	assert.Len(t, sm.StockDetails, 1)
	assert.Equal(t, 10, sm.ClosingBalance)

	// A sale that lands exactly on the floor goes through
	sm, err = svc.DecrementForSale(ctx, saleOf(7), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sm.ClosingBalance)

	// Non-sale entries are refused outright
	bad := saleOf(1)
	bad.Entry.Type = models.StockEntryAdded
	bad.Entry.InvordStock = 1
	bad.Entry.Sales = 0
	_, err = svc.DecrementForSale(ctx, bad, 0)
	require.Error(t, err)
	assert.Equal(t, models.ErrValidation, models.AsAppError(err).Kind)
}

func TestResolveUnitPrefersOverride(t *testing.T) {
	sm := &models.StockMonth{StockDetails: []models.StockEntry{
		{Date: "2025-01-01", Unit: "pcs"},
		{Date: "2025-01-02", Unit: "box"},
		{Date: "2025-01-03", Unit: "pcs"},
	}}
	assert.Equal(t, "box", ResolveUnit(sm, "pcs"))
	assert.Equal(t, "pcs", ResolveUnit(sm, "box"))
	assert.Equal(t, "", ResolveUnit(nil, "pcs"))
}
