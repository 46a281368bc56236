package usecase

import "sync"

// InvoiceLocks serializes mutations of the same invoice inside one process.
// Different invoices never contend. Cross-process races are caught by the
// repository's optimistic version check instead.
type InvoiceLocks struct {
	mu    sync.Mutex
	locks map[string]*invoiceLock
}

type invoiceLock struct {
	mu   sync.Mutex
	refs int
}

func NewInvoiceLocks() *InvoiceLocks {
	return &InvoiceLocks{locks: make(map[string]*invoiceLock)}
}

// Lock blocks until the caller holds invoiceID and returns the release func.
func (l *InvoiceLocks) Lock(invoiceID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[invoiceID]
	if !ok {
		entry = &invoiceLock{}
		l.locks[invoiceID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, invoiceID)
		}
		l.mu.Unlock()
	}
}

func (l *InvoiceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
