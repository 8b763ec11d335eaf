package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RateBasis selects what the office fee rate is applied to.
type RateBasis string

const (
	RateBasisIncome RateBasis = "income" // fee on everything collected
	RateBasisProfit RateBasis = "profit" // fee on collected minus expenses
)

// NormalizeRateBasis maps a stored basis string onto the closed set,
// defaulting to the income basis.
func NormalizeRateBasis(s string) RateBasis {
	if RateBasis(strings.ToLower(strings.TrimSpace(s))) == RateBasisProfit {
		return RateBasisProfit
	}
	return RateBasisIncome
}

// FeeBreakdown is the office fee and profit figure set for one scope.
// Field names are stable for the summary cards and the PDF service.
type FeeBreakdown struct {
	NetProfit     decimal.Decimal `json:"netProfit"`
	OfficeFee     decimal.Decimal `json:"officeFee"`
	RatePercent   float64         `json:"ratePercent"`
	Basis         RateBasis       `json:"basis"`
	MarginPercent float64         `json:"marginPercent"`
}

// ComputeFee derives the office fee from collections and expenses at the
// given rate. The rate is unclamped: 0 and values above 100 are applied as
// given. A negative net profit is a loss and propagates; under the profit
// basis that makes the office fee negative as well, which is intentional.
func ComputeFee(totalCollected, totalExpenses decimal.Decimal, ratePercent float64, basis RateBasis) FeeBreakdown {
	netProfit := totalCollected.Sub(totalExpenses)

	base := totalCollected
	if basis == RateBasisProfit {
		base = netProfit
	}

	return FeeBreakdown{
		NetProfit:     netProfit,
		OfficeFee:     ApplyRate(base, ratePercent),
		RatePercent:   ratePercent,
		Basis:         basis,
		MarginPercent: Percent(netProfit, totalCollected),
	}
}
