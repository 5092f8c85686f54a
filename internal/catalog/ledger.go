package catalog

import (
	"sync"

	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// StockLedger is the mutable stock column of the catalog, under a
// single-writer discipline: within one process and one email, the
// Fulfiller is the sole writer; concurrent fulfillers for different emails
// serialize their mutations through this ledger's mutex. Readers
// (Stockkeeper, Advisor) may observe a stock value that differs from the
// Fulfiller's final value for the same email — that is an accepted
// boundary behavior, not a bug.
type StockLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

// NewStockLedger constructs an empty StockLedger.
func NewStockLedger() *StockLedger {
	return &StockLedger{stock: make(map[string]int)}
}

// set initializes the stock for a normalized product id at catalog load
// time. Not safe to call after load; use Reserve/Release afterward.
func (l *StockLedger) set(normalizedID string, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[normalizedID] = stock
}

// Get returns the current stock for a normalized product id, or 0 if the
// id is unknown to the catalog.
func (l *StockLedger) Get(normalizedID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[normalizedID]
}

// Reserve attempts to decrement stock by quantity atomically. On success
// it returns the stock remaining after the reservation. On failure
// (insufficient stock, or unknown product) it returns a StockUnavailable
// error and leaves the ledger untouched.
func (l *StockLedger) Reserve(normalizedID string, quantity int) (stockAfter int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, known := l.stock[normalizedID]
	if !known {
		return 0, &hermeserrors.StockUnavailable{ProductID: normalizedID, Requested: quantity, Available: 0}
	}
	if current < quantity {
		return current, &hermeserrors.StockUnavailable{ProductID: normalizedID, Requested: quantity, Available: current}
	}

	l.stock[normalizedID] = current - quantity
	return current - quantity, nil
}

// Release returns quantity units to the ledger. Used to roll back a
// reservation if a later step in fulfillment fails after stock was
// decremented.
func (l *StockLedger) Release(normalizedID string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[normalizedID] += quantity
}
