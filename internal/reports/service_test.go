package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"aqar/internal/core"
	"aqar/internal/storage"
)

type fakeLedger struct {
	contracts  []storage.ContractSnapshot
	properties []core.Property
	receipts   []core.Receipt
	expenses   []core.Expense
	events     []core.ActivityEvent
}

func (f *fakeLedger) GetContract(_ context.Context, id int64) (*storage.ContractSnapshot, error) {
	for i := range f.contracts {
		if f.contracts[i].Contract.ID == id {
			return &f.contracts[i], nil
		}
	}
	return nil, errNotFound
}

func (f *fakeLedger) ListContracts(context.Context) ([]storage.ContractSnapshot, error) {
	return f.contracts, nil
}

func (f *fakeLedger) ListProperties(context.Context) ([]core.Property, error) {
	return f.properties, nil
}

func (f *fakeLedger) ListReceipts(context.Context) ([]core.Receipt, error) {
	return f.receipts, nil
}

func (f *fakeLedger) ListExpenses(context.Context) ([]core.Expense, error) {
	return f.expenses, nil
}

func (f *fakeLedger) ListActivityEvents(_ context.Context, since time.Time) ([]core.ActivityEvent, error) {
	out := make([]core.ActivityEvent, 0, len(f.events))
	for _, ev := range f.events {
		if !ev.At.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(ledger Ledger) *Service {
	return NewService(ledger, 5, core.RateBasisIncome, 30, 14)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildContractStatement(t *testing.T) {
	ledger := &fakeLedger{contracts: []storage.ContractSnapshot{{
		Contract: core.Contract{
			ID:         1,
			ContractNo: "C-100",
			Tenants:    []core.Party{{Name: "Ahmed"}, {Name: "Sara"}},
			Payments: []core.Payment{
				{Amount: dec("12000")},
			},
			Expenses: []core.Expense{
				{Amount: dec("500"), OnWhom: core.BearerTenant},
			},
			Receipts: []core.Receipt{
				{Amount: dec("10000"), Type: core.ReceiptReceive},
			},
		},
	}}}

	svc := newTestService(ledger)
	st, err := svc.BuildContractStatement(context.Background(), 1, 10, core.RateBasisIncome, nil)
	if err != nil {
		t.Fatalf("BuildContractStatement() error = %v", err)
	}

	if !st.Balance.TotalDue.Equal(dec("12500")) {
		t.Errorf("TotalDue = %v, want 12500", st.Balance.TotalDue)
	}
	if !st.Balance.Remaining.Equal(dec("2500")) {
		t.Errorf("Remaining = %v, want 2500", st.Balance.Remaining)
	}
	if st.Balance.Status != core.StatusPartial {
		t.Errorf("Status = %v, want partial", st.Balance.Status)
	}
	if !st.Fee.OfficeFee.Equal(dec("1000")) {
		t.Errorf("OfficeFee = %v, want 1000 (10%% of 10000)", st.Fee.OfficeFee)
	}
	if len(st.Tenants) != 2 || st.Tenants[0] != "Ahmed" {
		t.Errorf("Tenants = %v, want [Ahmed Sara]", st.Tenants)
	}
}

func TestBuildContractStatementDefaultsRateAndBasis(t *testing.T) {
	ledger := &fakeLedger{contracts: []storage.ContractSnapshot{{
		Contract: core.Contract{
			ID:       1,
			Receipts: []core.Receipt{{Amount: dec("1000"), Type: core.ReceiptReceive}},
		},
	}}}

	svc := newTestService(ledger)
	st, err := svc.BuildContractStatement(context.Background(), 1, 0, "", nil)
	if err != nil {
		t.Fatalf("BuildContractStatement() error = %v", err)
	}

	if st.Fee.RatePercent != 5 {
		t.Errorf("RatePercent = %v, want configured default 5", st.Fee.RatePercent)
	}
	if st.Fee.Basis != core.RateBasisIncome {
		t.Errorf("Basis = %v, want configured default income", st.Fee.Basis)
	}
	if !st.Fee.OfficeFee.Equal(dec("50")) {
		t.Errorf("OfficeFee = %v, want 50", st.Fee.OfficeFee)
	}
}

func TestBuildContractStatementAdvanceOverride(t *testing.T) {
	ledger := &fakeLedger{contracts: []storage.ContractSnapshot{{
		Contract: core.Contract{
			ID:       1,
			Payments: []core.Payment{{Amount: dec("1000")}},
			Receipts: []core.Receipt{{Amount: dec("400"), Type: core.ReceiptReceive}},
		},
		StoredAdvance: dec("250"),
	}}}

	svc := newTestService(ledger)
	override := dec("90")
	st, err := svc.BuildContractStatement(context.Background(), 1, 0, "", &override)
	if err != nil {
		t.Fatalf("BuildContractStatement() error = %v", err)
	}
	if !st.Balance.AdvanceBalance.Equal(dec("90")) {
		t.Errorf("AdvanceBalance = %v, want override 90", st.Balance.AdvanceBalance)
	}

	// Overpayment still wins over any supplied figure.
	ledger.contracts[0].Contract.Receipts = []core.Receipt{{Amount: dec("1300"), Type: core.ReceiptReceive}}
	st, err = svc.BuildContractStatement(context.Background(), 1, 0, "", &override)
	if err != nil {
		t.Fatalf("BuildContractStatement() error = %v", err)
	}
	if !st.Balance.AdvanceBalance.Equal(dec("300")) {
		t.Errorf("AdvanceBalance = %v, want derived 300", st.Balance.AdvanceBalance)
	}
}

func contractWithBalance(id int64, no, tenant string, start time.Time, due, collected string) storage.ContractSnapshot {
	return storage.ContractSnapshot{Contract: core.Contract{
		ID:           id,
		ContractNo:   no,
		TenancyStart: start,
		Tenants:      []core.Party{{Name: tenant}},
		Payments:     []core.Payment{{Amount: dec(due)}},
		Receipts:     []core.Receipt{{Amount: dec(collected), Type: core.ReceiptReceive}},
	}}
}

func TestListContractSummariesFiltersAndSorts(t *testing.T) {
	ledger := &fakeLedger{contracts: []storage.ContractSnapshot{
		contractWithBalance(1, "C-1", "Ahmed", date(2025, 1, 1), "1000", "1000"),
		contractWithBalance(2, "C-2", "Sara", date(2025, 3, 1), "2000", "500"),
		contractWithBalance(3, "C-3", "Omar", date(2024, 6, 1), "3000", "0"),
	}}
	svc := newTestService(ledger)

	t.Run("no query returns all", func(t *testing.T) {
		got, err := svc.ListContractSummaries(context.Background(), ContractQuery{})
		if err != nil {
			t.Fatalf("ListContractSummaries() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d summaries, want 3", len(got))
		}
	})

	t.Run("status filter", func(t *testing.T) {
		got, err := svc.ListContractSummaries(context.Background(), ContractQuery{Status: "partial"})
		if err != nil {
			t.Fatalf("ListContractSummaries() error = %v", err)
		}
		if len(got) != 1 || got[0].ContractID != 2 {
			t.Fatalf("status filter got %+v, want only contract 2", got)
		}
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		got, err := svc.ListContractSummaries(context.Background(), ContractQuery{Search: "sara"})
		if err != nil {
			t.Fatalf("ListContractSummaries() error = %v", err)
		}
		if len(got) != 1 || got[0].ContractID != 2 {
			t.Fatalf("search got %+v, want only contract 2", got)
		}
	})

	t.Run("date range on tenancy start", func(t *testing.T) {
		got, err := svc.ListContractSummaries(context.Background(), ContractQuery{
			From: date(2025, 1, 1), To: date(2025, 12, 31),
		})
		if err != nil {
			t.Fatalf("ListContractSummaries() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("date range got %d summaries, want 2", len(got))
		}
	})

	t.Run("sort by remaining desc", func(t *testing.T) {
		got, err := svc.ListContractSummaries(context.Background(), ContractQuery{
			Sort: []core.SortSpec{{Key: "remaining", Dir: core.Desc}},
		})
		if err != nil {
			t.Fatalf("ListContractSummaries() error = %v", err)
		}
		if got[0].ContractID != 3 || got[2].ContractID != 1 {
			t.Fatalf("sort order = [%d %d %d], want [3 2 1]",
				got[0].ContractID, got[1].ContractID, got[2].ContractID)
		}
	})
}

func TestCashflowMergesMonths(t *testing.T) {
	ledger := &fakeLedger{receipts: []core.Receipt{
		{Date: date(2025, 2, 10), Amount: dec("300"), Type: core.ReceiptDisburse},
		{Date: date(2025, 1, 5), Amount: dec("1000"), Type: core.ReceiptReceive},
		{Date: date(2025, 1, 20), Amount: dec("500"), Type: core.ReceiptReceive},
		{Date: date(2025, 1, 15), Amount: dec("200"), Type: core.ReceiptDisburse},
		{Date: date(2024, 12, 31), Amount: dec("9999"), Type: core.ReceiptReceive},
		{Date: date(2025, 3, 1), Amount: dec("777"), Type: core.ReceiptSettlement},
	}}
	svc := newTestService(ledger)

	got, err := svc.Cashflow(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Cashflow() error = %v", err)
	}

	if len(got.Months) != 2 {
		t.Fatalf("got %d months, want 2 (settlements and other years excluded)", len(got.Months))
	}
	jan := got.Months[0]
	if jan.Month != "2025-01" || !jan.Collected.Equal(dec("1500")) || !jan.Disbursed.Equal(dec("200")) || !jan.Net.Equal(dec("1300")) {
		t.Errorf("January = %+v, want collected 1500, disbursed 200, net 1300", jan)
	}
	feb := got.Months[1]
	if feb.Month != "2025-02" || !feb.Net.Equal(dec("-300")) {
		t.Errorf("February = %+v, want net -300", feb)
	}
	if !got.Net.Equal(dec("1000")) {
		t.Errorf("year net = %v, want 1000", got.Net)
	}
}

func TestCashflowCachesResult(t *testing.T) {
	ledger := &fakeLedger{receipts: []core.Receipt{
		{Date: date(2025, 1, 5), Amount: dec("1000"), Type: core.ReceiptReceive},
	}}
	svc := newTestService(ledger)

	first, err := svc.Cashflow(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Cashflow() error = %v", err)
	}

	// Mutate the ledger; the cached payload must still be served.
	ledger.receipts = nil
	second, err := svc.Cashflow(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Cashflow() error = %v", err)
	}
	if second != first {
		t.Error("second call should return the cached report")
	}
}

func TestExpenseBreakdownGroupings(t *testing.T) {
	ledger := &fakeLedger{
		properties: []core.Property{{ID: 1, Name: "Tower A"}},
		expenses: []core.Expense{
			{Date: date(2025, 1, 1), Amount: dec("100"), ExpenseType: "maintenance", OnWhom: core.BearerOwner, PropertyID: 1},
			{Date: date(2025, 2, 1), Amount: dec("50"), ExpenseType: "Maintenance", OnWhom: core.BearerTenant, PropertyID: 1},
			{Date: date(2025, 3, 1), Amount: dec("30"), ExpenseType: "", OnWhom: core.BearerOther, PropertyID: 99},
		},
	}

	t.Run("by type folds case and blanks into other", func(t *testing.T) {
		got, err := newTestService(ledger).ExpenseBreakdown(context.Background(), GroupByType, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("ExpenseBreakdown() error = %v", err)
		}
		if len(got.Buckets) != 2 {
			t.Fatalf("got %d buckets, want 2", len(got.Buckets))
		}
		if got.Buckets[0].Key != "maintenance" || !got.Buckets[0].Total.Equal(dec("150")) {
			t.Errorf("top bucket = %+v, want maintenance 150", got.Buckets[0])
		}
		if got.Buckets[1].Key != "other" {
			t.Errorf("blank type bucket key = %q, want other", got.Buckets[1].Key)
		}
		if !got.Total.Equal(dec("180")) {
			t.Errorf("Total = %v, want 180", got.Total)
		}
	})

	t.Run("by property maps unknown ids to other", func(t *testing.T) {
		got, err := newTestService(ledger).ExpenseBreakdown(context.Background(), GroupByProperty, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("ExpenseBreakdown() error = %v", err)
		}
		if got.Buckets[0].Key != "Tower A" || !got.Buckets[0].Total.Equal(dec("150")) {
			t.Errorf("top bucket = %+v, want Tower A 150", got.Buckets[0])
		}
		if got.Buckets[1].Key != "other" {
			t.Errorf("unknown property bucket key = %q, want other", got.Buckets[1].Key)
		}
	})

	t.Run("period bounds are inclusive", func(t *testing.T) {
		got, err := newTestService(ledger).ExpenseBreakdown(context.Background(), GroupByBearer,
			date(2025, 2, 1), date(2025, 3, 1))
		if err != nil {
			t.Fatalf("ExpenseBreakdown() error = %v", err)
		}
		if !got.Total.Equal(dec("80")) {
			t.Errorf("Total = %v, want 80 (Feb 1 and Mar 1 included)", got.Total)
		}
	})

	t.Run("unknown grouping fails", func(t *testing.T) {
		_, err := newTestService(ledger).ExpenseBreakdown(context.Background(), "color", time.Time{}, time.Time{})
		if err == nil {
			t.Fatal("expected error for unknown grouping")
		}
	})
}

func TestOccupancyReport(t *testing.T) {
	ledger := &fakeLedger{properties: []core.Property{
		{ID: 1, Name: "Tower A", Units: []core.Unit{{Occupied: true}, {Occupied: true}, {Occupied: false}}},
		{ID: 2, Name: "Villa B", Units: []core.Unit{{Occupied: false}}},
		{ID: 3, Name: "Empty lot"},
	}}
	svc := newTestService(ledger)

	got, err := svc.Occupancy(context.Background())
	if err != nil {
		t.Fatalf("Occupancy() error = %v", err)
	}

	if got.Portfolio.TotalUnits != 4 || got.Portfolio.OccupiedUnits != 2 || got.Portfolio.OccupancyRate != 50 {
		t.Errorf("portfolio = %+v, want 2/4 occupied at 50%%", got.Portfolio)
	}
	if len(got.Properties) != 3 {
		t.Fatalf("got %d property rows, want 3", len(got.Properties))
	}
	wantRate := float64(2) / float64(3) * 100
	if got.Properties[0].OccupancyRate != wantRate {
		t.Errorf("Tower A rate = %v, want %v", got.Properties[0].OccupancyRate, wantRate)
	}
	if got.Properties[2].TotalUnits != 0 || got.Properties[2].OccupancyRate != 0 {
		t.Errorf("zero-unit property = %+v, want rate 0", got.Properties[2])
	}
}

func TestEngagementReport(t *testing.T) {
	now := date(2025, 6, 15)
	ledger := &fakeLedger{events: []core.ActivityEvent{
		{AccountID: "acc-low", Kind: core.EventView, At: now.AddDate(0, 0, -2)},
		{AccountID: "acc-high", Kind: core.EventPaymentPaid, At: now.AddDate(0, 0, -1)},
		{AccountID: "acc-high", Kind: core.EventPaymentPaid, At: now.AddDate(0, 0, -3)},
		{AccountID: "acc-high", Kind: core.EventReportDownload, At: now.AddDate(0, 0, -5)},
	}}
	svc := newTestService(ledger)
	svc.now = func() time.Time { return now }

	got, err := svc.Engagement(context.Background())
	if err != nil {
		t.Fatalf("Engagement() error = %v", err)
	}

	if len(got.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(got.Accounts))
	}
	high := got.Accounts[0]
	if high.AccountID != "acc-high" || high.Score != 110 || high.Tier != core.TierReadyToPay {
		t.Errorf("top account = %+v, want acc-high score 110 ready_to_pay", high)
	}
	low := got.Accounts[1]
	if low.Score != 5 || low.Tier != core.TierSemiActive {
		t.Errorf("low account = %+v, want score 5 semi_active", low)
	}

	counts := map[string]int{}
	for _, b := range got.TierCounts {
		counts[b.Key] = b.Count
	}
	if counts["ready_to_pay"] != 1 || counts["semi_active"] != 1 {
		t.Errorf("tier counts = %v, want one ready_to_pay and one semi_active", counts)
	}
}

func TestBuildReportDispatch(t *testing.T) {
	ledger := &fakeLedger{receipts: []core.Receipt{
		{Date: date(2025, 1, 5), Amount: dec("1000"), Type: core.ReceiptReceive},
	}}
	svc := newTestService(ledger)

	payload, err := svc.BuildReport(context.Background(), ReportCashflow, Request{
		PeriodFrom: date(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("BuildReport() error = %v", err)
	}
	report, ok := payload.(*CashflowReport)
	if !ok {
		t.Fatalf("payload type = %T, want *CashflowReport", payload)
	}
	if report.Year != 2025 {
		t.Errorf("Year = %d, want 2025", report.Year)
	}

	if _, err := svc.BuildReport(context.Background(), "nope", Request{}); err == nil {
		t.Error("expected error for unknown report type")
	}

	if _, err := svc.BuildReport(context.Background(), ReportContractStatement, Request{}); err == nil {
		t.Error("contract statement without scope should fail")
	}
}
