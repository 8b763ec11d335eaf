// Package core holds the financial reconciliation and reporting computations
// of the property system. Everything in this package is a pure function over
// already-fetched snapshots: no I/O, no clocks besides explicit parameters,
// no mutation of inputs. Fetching, authorization and persistence live in the
// calling layers.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptType tags the direction of a receipt in the cash ledger.
type ReceiptType string

const (
	ReceiptReceive    ReceiptType = "receive"    // money collected from a tenant
	ReceiptDisburse   ReceiptType = "disburse"   // money paid out
	ReceiptSettlement ReceiptType = "settlement" // adjustment entry, outside the income/expense balance
	ReceiptOther      ReceiptType = "other"
)

// NormalizeReceiptType maps a stored type string onto the closed set of
// receipt types. Unknown values land in ReceiptOther instead of being
// dropped during aggregation.
func NormalizeReceiptType(s string) ReceiptType {
	switch ReceiptType(strings.ToLower(strings.TrimSpace(s))) {
	case ReceiptReceive:
		return ReceiptReceive
	case ReceiptDisburse:
		return ReceiptDisburse
	case ReceiptSettlement:
		return ReceiptSettlement
	default:
		return ReceiptOther
	}
}

// ExpenseBearer identifies who an expense is charged to.
type ExpenseBearer string

const (
	BearerOwner  ExpenseBearer = "owner"
	BearerTenant ExpenseBearer = "tenant"
	BearerOffice ExpenseBearer = "office"
	BearerOther  ExpenseBearer = "other"
)

// NormalizeBearer maps a stored bearer string onto the closed set of
// expense bearers, falling back to BearerOther.
func NormalizeBearer(s string) ExpenseBearer {
	switch ExpenseBearer(strings.ToLower(strings.TrimSpace(s))) {
	case BearerOwner:
		return BearerOwner
	case BearerTenant:
		return BearerTenant
	case BearerOffice:
		return BearerOffice
	default:
		return BearerOther
	}
}

// PartyRole distinguishes the people attached to a contract.
type PartyRole string

const (
	RoleTenant PartyRole = "tenant"
	RoleLessor PartyRole = "lessor"
	RoleBroker PartyRole = "broker"
)

// Party is a person or company attached to a contract.
type Party struct {
	ID    int64
	Name  string
	Phone string
	Role  PartyRole
}

// Payment is a scheduled installment on a contract.
type Payment struct {
	ID         int64
	ContractID int64
	DueDate    time.Time
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	Status     string // open status tag set by the write path
}

// Remaining is the unpaid portion of the installment.
func (p Payment) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.PaidAmount)
}

// Receipt is a cash ledger entry. The scope links are optional; zero means
// the receipt is not attached to that entity.
type Receipt struct {
	ID         int64
	Date       time.Time
	Amount     decimal.Decimal
	Type       ReceiptType
	Payer      string
	Receiver   string
	ContractID int64
	UnitID     int64
	PropertyID int64
}

// Expense is a cost ledger entry. ExpenseType is an open category string;
// grouping normalizes unknown categories into "Other".
type Expense struct {
	ID          int64
	Date        time.Time
	Amount      decimal.Decimal
	ExpenseType string
	OnWhom      ExpenseBearer
	ContractID  int64
	UnitID      int64
	PropertyID  int64
}

// Contract is a rental contract snapshot with its nested ledger collections.
// A contract with nil collections is valid; every computation treats nil the
// same as empty.
type Contract struct {
	ID           int64
	ContractNo   string
	TenancyStart time.Time
	TenancyEnd   time.Time
	AnnualRent   decimal.Decimal
	Status       string
	Tenants      []Party
	Lessors      []Party
	Units        []Unit
	Payments     []Payment
	Receipts     []Receipt
	Expenses     []Expense
	Broker       *Party
}

// ActiveAt reports whether the tenancy period covers the given instant.
// Open-ended contracts (zero TenancyEnd) stay active after their start.
func (c Contract) ActiveAt(now time.Time) bool {
	if c.TenancyStart.IsZero() || now.Before(c.TenancyStart) {
		return false
	}
	return c.TenancyEnd.IsZero() || !now.After(c.TenancyEnd)
}

// Unit is a rentable unit inside a property.
//
// Occupied is the stored occupancy flag maintained by the write path; it is
// the canonical input for occupancy rates. HasActiveContract is an
// independent signal derived from the contract history and the two are not
// guaranteed to agree.
type Unit struct {
	ID         int64
	PropertyID int64
	Number     string
	Area       decimal.Decimal
	Occupied   bool
	Contracts  []Contract
}

// HasActiveContract reports whether any contract in the unit's history is
// active at the given instant.
func (u Unit) HasActiveContract(now time.Time) bool {
	for _, c := range u.Contracts {
		if c.ActiveAt(now) {
			return true
		}
	}
	return false
}

// Property owns a collection of units.
type Property struct {
	ID    int64
	Name  string
	City  string
	Units []Unit
}
