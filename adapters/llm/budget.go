package llm

import (
	"sync"

	"github.com/tandarun/coach/domain"
)

// BudgetLedger enforces the completion spend ceiling. Every request
// reserves a flat estimated cost before it is sent; once the ledger
// reaches the cap, further requests fail fast with ErrBudgetExceeded
// instead of being sent. A cap of zero disables the ceiling.
//
// The ledger is shared across connections, hence the lock.
type BudgetLedger struct {
	mu                sync.Mutex
	capUSD            float64
	costPerRequestUSD float64
	spentUSD          float64
}

func NewBudgetLedger(capUSD, costPerRequestUSD float64) *BudgetLedger {
	return &BudgetLedger{
		capUSD:            capUSD,
		costPerRequestUSD: costPerRequestUSD,
	}
}

// Reserve charges one request against the ledger.
func (l *BudgetLedger) Reserve() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.capUSD > 0 && l.spentUSD+l.costPerRequestUSD > l.capUSD {
		return domain.ErrBudgetExceeded
	}
	l.spentUSD += l.costPerRequestUSD
	return nil
}

// SpentUSD returns the amount charged so far.
func (l *BudgetLedger) SpentUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spentUSD
}
