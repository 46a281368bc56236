package usecase

import (
	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type noopObserver struct{}

func (noopObserver) InvoiceDecided(domain.ApprovalState, int) {}
func (noopObserver) NameResolved(domain.ResolutionOutcome)    {}
func (noopObserver) ApprovalBlocked(string)                   {}

func observerOrNoop(o ports.ReconciliationObserver) ports.ReconciliationObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
