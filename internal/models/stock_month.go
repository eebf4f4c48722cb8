package models

import "time"

// LedgerKind selects the balance recurrence applied to a stock month.
// The theater ledger tracks physical store-room stock; the cafe ledger tracks
// counter stock that sales draw down.
type LedgerKind string

const (
	LedgerTheater LedgerKind = "theater"
	LedgerCafe    LedgerKind = "cafe"
)

// StockEntryType tags which delta an entry carries
type StockEntryType string

const (
	StockEntryAdded      StockEntryType = "ADDED"
	StockEntryAddon      StockEntryType = "ADDON" // cafe ledger: counter refill from store room
	StockEntryTransfer   StockEntryType = "TRANSFER"
	StockEntrySales      StockEntryType = "SALES"
	StockEntryExpired    StockEntryType = "EXPIRED"
	StockEntryDamaged    StockEntryType = "DAMAGED"
	StockEntryAdjustment StockEntryType = "ADJUSTMENT"
	StockEntryCancel     StockEntryType = "CANCEL" // compensating entry for a cancelled order
	StockEntryCarry      StockEntryType = "CARRY"  // synthetic carry-forward, never persisted
)

// StockEntry is one dated movement inside a monthly stock document. All delta
// fields are non-negative; the entry type says which direction they apply.
type StockEntry struct {
	Date            string         `json:"date"` // YYYY-MM-DD
	Type            StockEntryType `json:"type"`
	Quantity        int            `json:"quantity"`
	Unit            string         `json:"unit"`
	InvordStock     int            `json:"invord_stock"` // stock added this entry
	AddonStock      int            `json:"addon_stock"`  // cafe refill
	Transfer        int            `json:"transfer"`
	Sales           int            `json:"sales"`
	CancelStock     int            `json:"cancel_stock"` // returned by order cancellation
	ExpiredStock    int            `json:"expired_stock"`
	DamageStock     int            `json:"damage_stock"`
	StockAdjustment int            `json:"stock_adjustment"` // signed correction
	ExpireDate      string         `json:"expire_date,omitempty"`
	BatchNumber     string         `json:"batch_number,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	OldStock        int            `json:"old_stock"` // balance before this entry
	Balance         int            `json:"balance"`   // balance after this entry
	Auto            bool           `json:"auto"`      // synthetic carry-forward marker
}

// StockMonth is the per-(theater, product, year, month, ledger) document
// holding the ordered daily entries and the running closing balance.
type StockMonth struct {
	ID               int          `json:"id"`
	TheaterID        int          `json:"theater_id"`
	ProductID        int          `json:"product_id"`
	Ledger           LedgerKind   `json:"ledger"`
	Year             int          `json:"year"`
	Month            int          `json:"month"` // 1..12
	OldStock         int          `json:"old_stock"` // balance carried in from the prior month
	StockDetails     []StockEntry `json:"stock_details"`
	ClosingBalance   int          `json:"closing_balance"`
	TotalInvordStock int          `json:"total_invord_stock"` // month-to-date added
	Version          int          `json:"version"`            // optimistic-lock token
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AddStockEntryRequest appends one movement; the ledger locates the month
// from the entry date.
type AddStockEntryRequest struct {
	TheaterID int        `json:"theater_id"`
	ProductID int        `json:"product_id"`
	Ledger    LedgerKind `json:"ledger"`
	Entry     StockEntry `json:"entry"`
}

// CurrentStock answers "what is the balance right now?" in one store read.
type CurrentStock struct {
	TheaterID        int        `json:"theater_id"`
	ProductID        int        `json:"product_id"`
	Ledger           LedgerKind `json:"ledger"`
	Balance          int        `json:"balance"`
	Unit             string     `json:"unit"`
	TotalInvordStock int        `json:"total_invord_stock"` // current month
}
