package core

import "github.com/shopspring/decimal"

// BalanceStatus is the settlement state of a contract.
type BalanceStatus string

const (
	StatusPaid    BalanceStatus = "paid"
	StatusPartial BalanceStatus = "partial"
	StatusUnpaid  BalanceStatus = "unpaid"
)

// ContractBalance is the reconciled figure set for one contract. The JSON
// field names are a stable contract with the summary cards and the PDF
// service; renaming them is a breaking change.
type ContractBalance struct {
	TotalDue           decimal.Decimal `json:"totalDue"`
	Rent               decimal.Decimal `json:"rent"`
	TotalCollected     decimal.Decimal `json:"totalCollected"`
	TotalDisbursed     decimal.Decimal `json:"totalDisbursed"`
	TotalExpenses      decimal.Decimal `json:"totalExpenses"`
	Remaining          decimal.Decimal `json:"remaining"`
	AdvanceBalance     decimal.Decimal `json:"advanceBalance"`
	NetBalance         decimal.Decimal `json:"netBalance"`
	ProgressPercentage float64         `json:"progressPercentage"`
	Status             BalanceStatus   `json:"status"`
}

// ReconcileContract recomputes the balance figures for one contract from
// its ledger collections. Nothing is persisted and the input is not
// mutated; callers get the same result for the same snapshot every time.
//
// advanceFallback is the server-stored advance figure. The locally derived
// value is canonical: whenever the contract is overpaid (remaining < 0) the
// advance is exactly the overpayment and the stored figure is ignored.
// Only when nothing is overpaid does the stored figure pass through.
func ReconcileContract(c Contract, advanceFallback decimal.Decimal) ContractBalance {
	var paymentsTotal, tenantExpenses, totalExpenses decimal.Decimal
	var totalCollected, totalDisbursed decimal.Decimal

	for _, p := range c.Payments {
		paymentsTotal = paymentsTotal.Add(p.Amount)
	}
	for _, e := range c.Expenses {
		totalExpenses = totalExpenses.Add(e.Amount)
		if e.OnWhom == BearerTenant {
			tenantExpenses = tenantExpenses.Add(e.Amount)
		}
	}
	for _, r := range c.Receipts {
		switch r.Type {
		case ReceiptReceive:
			totalCollected = totalCollected.Add(r.Amount)
		case ReceiptDisburse:
			totalDisbursed = totalDisbursed.Add(r.Amount)
		}
		// Settlement receipts adjust the books elsewhere and stay out of
		// the primary balance formula.
	}

	totalDue := paymentsTotal.Add(tenantExpenses)
	remaining := totalDue.Sub(totalCollected)

	advance := advanceFallback
	if remaining.IsNegative() {
		advance = remaining.Neg()
	}

	rent := c.AnnualRent
	if !rent.IsPositive() {
		rent = paymentsTotal
	}

	status := StatusUnpaid
	switch {
	case remaining.Sign() <= 0:
		status = StatusPaid
	case totalCollected.IsPositive():
		status = StatusPartial
	}

	return ContractBalance{
		TotalDue:           totalDue,
		Rent:               rent,
		TotalCollected:     totalCollected,
		TotalDisbursed:     totalDisbursed,
		TotalExpenses:      totalExpenses,
		Remaining:          remaining,
		AdvanceBalance:     advance,
		NetBalance:         totalCollected.Sub(totalExpenses),
		ProgressPercentage: ClampPercent(Percent(totalCollected, totalDue)),
		Status:             status,
	}
}
