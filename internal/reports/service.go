// Package reports assembles dashboard and export payloads from the ledger.
//
// Everything here is read-only: builders load a snapshot through the Ledger
// interface, run the pure calculators in internal/core, and shape the result
// for the HTTP layer, the worker, and the Sheets export.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"aqar/internal/core"
	"aqar/internal/storage"
)

// Report payloads are memoized for this long. Ledger writes land through a
// different service, so a short TTL is the staleness bound.
const reportCacheTTL = 5 * time.Minute

// Ledger is the read surface the builders need from storage.
type Ledger interface {
	GetContract(ctx context.Context, id int64) (*storage.ContractSnapshot, error)
	ListContracts(ctx context.Context) ([]storage.ContractSnapshot, error)
	ListProperties(ctx context.Context) ([]core.Property, error)
	ListReceipts(ctx context.Context) ([]core.Receipt, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListActivityEvents(ctx context.Context, since time.Time) ([]core.ActivityEvent, error)
}

// Service builds report payloads on demand.
type Service struct {
	ledger           Ledger
	cache            *cache.Cache
	ratePercent      float64
	rateBasis        core.RateBasis
	windowDays       int
	dormantAfterDays int
	now              func() time.Time
}

func NewService(ledger Ledger, ratePercent float64, basis core.RateBasis, windowDays, dormantAfterDays int) *Service {
	return &Service{
		ledger:           ledger,
		cache:            cache.New(reportCacheTTL, 2*reportCacheTTL),
		ratePercent:      ratePercent,
		rateBasis:        basis,
		windowDays:       windowDays,
		dormantAfterDays: dormantAfterDays,
		now:              time.Now,
	}
}

// ContractStatement is one contract's full financial position.
type ContractStatement struct {
	ContractID int64                `json:"contractId"`
	ContractNo string               `json:"contractNo"`
	Tenants    []string             `json:"tenants"`
	Status     string               `json:"status"`
	Balance    core.ContractBalance `json:"balance"`
	Fee        core.FeeBreakdown    `json:"fee"`
}

// BuildContractStatement reconciles one contract and computes the office fee
// at the given rate. A zero rate falls back to the configured office rate. A
// non-nil advance replaces the stored advance fallback; the derived figure
// still wins whenever the contract is overpaid.
func (s *Service) BuildContractStatement(ctx context.Context, contractID int64, ratePercent float64, basis core.RateBasis, advance *decimal.Decimal) (*ContractStatement, error) {
	snap, err := s.ledger.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}

	if ratePercent == 0 {
		ratePercent = s.ratePercent
	}
	if basis == "" {
		basis = s.rateBasis
	}
	storedAdvance := snap.StoredAdvance
	if advance != nil {
		storedAdvance = *advance
	}

	balance := core.ReconcileContract(snap.Contract, storedAdvance)
	fee := core.ComputeFee(balance.TotalCollected, balance.TotalExpenses, ratePercent, basis)

	tenants := make([]string, 0, len(snap.Contract.Tenants))
	for _, t := range snap.Contract.Tenants {
		tenants = append(tenants, t.Name)
	}

	return &ContractStatement{
		ContractID: snap.Contract.ID,
		ContractNo: snap.Contract.ContractNo,
		Tenants:    tenants,
		Status:     snap.Contract.Status,
		Balance:    balance,
		Fee:        fee,
	}, nil
}

// ContractQuery carries the list endpoint's search, filter and sort state.
type ContractQuery struct {
	Search string
	Status string
	From   time.Time
	To     time.Time
	Sort   []core.SortSpec
}

// ContractSummary is one row of the contracts table.
type ContractSummary struct {
	ContractID     int64              `json:"contractId"`
	ContractNo     string             `json:"contractNo"`
	Tenants        string             `json:"tenants"`
	TenancyStart   time.Time          `json:"tenancyStart"`
	TenancyEnd     time.Time          `json:"tenancyEnd"`
	TotalDue       decimal.Decimal    `json:"totalDue"`
	TotalCollected decimal.Decimal    `json:"totalCollected"`
	Remaining      decimal.Decimal    `json:"remaining"`
	Progress       float64            `json:"progressPercentage"`
	Status         core.BalanceStatus `json:"status"`
}

// summaryFields maps sortable column names onto summary values. Unknown
// column names coming from the query string are simply ignored by the sort.
var summaryFields = map[string]core.Field[ContractSummary]{
	"contract_no":     func(c ContractSummary) any { return c.ContractNo },
	"tenants":         func(c ContractSummary) any { return c.Tenants },
	"tenancy_start":   func(c ContractSummary) any { return c.TenancyStart },
	"tenancy_end":     func(c ContractSummary) any { return c.TenancyEnd },
	"total_due":       func(c ContractSummary) any { return c.TotalDue },
	"total_collected": func(c ContractSummary) any { return c.TotalCollected },
	"remaining":       func(c ContractSummary) any { return c.Remaining },
	"progress":        func(c ContractSummary) any { return c.Progress },
	"status":          func(c ContractSummary) any { return string(c.Status) },
}

// ListContractSummaries reconciles every contract and applies the query's
// filters and sort. Filters are conjunctive; text search covers contract
// number and tenant names.
func (s *Service) ListContractSummaries(ctx context.Context, q ContractQuery) ([]ContractSummary, error) {
	snaps, err := s.ledger.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}

	summaries := make([]ContractSummary, 0, len(snaps))
	for _, snap := range snaps {
		balance := core.ReconcileContract(snap.Contract, snap.StoredAdvance)
		names := make([]string, 0, len(snap.Contract.Tenants))
		for _, t := range snap.Contract.Tenants {
			names = append(names, t.Name)
		}
		summaries = append(summaries, ContractSummary{
			ContractID:     snap.Contract.ID,
			ContractNo:     snap.Contract.ContractNo,
			Tenants:        strings.Join(names, ", "),
			TenancyStart:   snap.Contract.TenancyStart,
			TenancyEnd:     snap.Contract.TenancyEnd,
			TotalDue:       balance.TotalDue,
			TotalCollected: balance.TotalCollected,
			Remaining:      balance.Remaining,
			Progress:       balance.ProgressPercentage,
			Status:         balance.Status,
		})
	}

	preds := []core.Predicate[ContractSummary]{
		core.TextSearch(q.Search,
			func(c ContractSummary) any { return c.ContractNo },
			func(c ContractSummary) any { return c.Tenants },
		),
		core.DateBetween(func(c ContractSummary) time.Time { return c.TenancyStart }, q.From, q.To),
	}
	if q.Status != "" {
		preds = append(preds, core.Equals(func(c ContractSummary) any { return string(c.Status) }, q.Status))
	}

	filtered := core.ApplyFilters(summaries, preds...)
	return core.SortRecords(filtered, summaryFields, q.Sort...), nil
}

// CashflowMonth is one month's in and out totals.
type CashflowMonth struct {
	Month     string          `json:"month"`
	Collected decimal.Decimal `json:"collected"`
	Disbursed decimal.Decimal `json:"disbursed"`
	Net       decimal.Decimal `json:"net"`
}

// CashflowReport is a year of receipt flow bucketed by month.
type CashflowReport struct {
	Year           int             `json:"year"`
	Months         []CashflowMonth `json:"months"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
	TotalDisbursed decimal.Decimal `json:"totalDisbursed"`
	Net            decimal.Decimal `json:"net"`
}

// Cashflow buckets the year's receipts into monthly collected and disbursed
// totals. Settlement and unknown receipt types stay out, matching the
// contract balance formula.
func (s *Service) Cashflow(ctx context.Context, year int) (*CashflowReport, error) {
	cacheKey := fmt.Sprintf("cashflow:%d", year)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*CashflowReport), nil
	}

	receipts, err := s.ledger.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	inYear := core.ApplyFilters(receipts, func(r core.Receipt) bool {
		return r.Date.Year() == year
	})

	collected := core.GroupSum(
		core.ApplyFilters(inYear, func(r core.Receipt) bool { return r.Type == core.ReceiptReceive }),
		func(r core.Receipt) string { return core.MonthKey(r.Date) },
		func(r core.Receipt) decimal.Decimal { return r.Amount },
	)
	disbursed := core.GroupSum(
		core.ApplyFilters(inYear, func(r core.Receipt) bool { return r.Type == core.ReceiptDisburse }),
		func(r core.Receipt) string { return core.MonthKey(r.Date) },
		func(r core.Receipt) decimal.Decimal { return r.Amount },
	)

	report := mergeCashflow(year, collected, disbursed)
	s.cache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

func mergeCashflow(year int, collected, disbursed []core.Bucket) *CashflowReport {
	index := make(map[string]int)
	months := make([]CashflowMonth, 0, len(collected)+len(disbursed))

	monthAt := func(key string) int {
		i, ok := index[key]
		if !ok {
			i = len(months)
			index[key] = i
			months = append(months, CashflowMonth{Month: key})
		}
		return i
	}

	report := &CashflowReport{Year: year}
	for _, b := range collected {
		i := monthAt(b.Key)
		months[i].Collected = months[i].Collected.Add(b.Total)
		report.TotalCollected = report.TotalCollected.Add(b.Total)
	}
	for _, b := range disbursed {
		i := monthAt(b.Key)
		months[i].Disbursed = months[i].Disbursed.Add(b.Total)
		report.TotalDisbursed = report.TotalDisbursed.Add(b.Total)
	}

	for i := range months {
		months[i].Net = months[i].Collected.Sub(months[i].Disbursed)
	}
	// Month keys are "YYYY-MM", so lexicographic is chronological.
	sort.SliceStable(months, func(i, j int) bool { return months[i].Month < months[j].Month })

	report.Months = months
	report.Net = report.TotalCollected.Sub(report.TotalDisbursed)
	return report
}

// Expense groupings accepted by ExpenseBreakdown.
const (
	GroupByType     = "type"
	GroupByBearer   = "bearer"
	GroupByProperty = "property"
)

// ExpenseBreakdownReport ranks expense buckets for one grouping.
type ExpenseBreakdownReport struct {
	GroupBy string          `json:"groupBy"`
	Buckets []core.Bucket   `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

// ExpenseBreakdown groups expenses in the period by type, bearer or
// property, ranked by total descending. Records without a recognizable key
// land in the "other" bucket instead of being dropped.
func (s *Service) ExpenseBreakdown(ctx context.Context, groupBy string, from, to time.Time) (*ExpenseBreakdownReport, error) {
	cacheKey := fmt.Sprintf("expenses:%s:%s:%s", groupBy, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*ExpenseBreakdownReport), nil
	}

	expenses, err := s.ledger.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var key func(core.Expense) string
	switch groupBy {
	case GroupByType:
		key = func(e core.Expense) string {
			t := strings.ToLower(strings.TrimSpace(e.ExpenseType))
			if t == "" {
				return string(core.BearerOther)
			}
			return t
		}
	case GroupByBearer:
		key = func(e core.Expense) string { return string(e.OnWhom) }
	case GroupByProperty:
		props, err := s.ledger.ListProperties(ctx)
		if err != nil {
			return nil, fmt.Errorf("list properties: %w", err)
		}
		names := make(map[int64]string, len(props))
		for _, p := range props {
			names[p.ID] = p.Name
		}
		key = func(e core.Expense) string {
			if name, ok := names[e.PropertyID]; ok {
				return name
			}
			return string(core.BearerOther)
		}
	default:
		return nil, fmt.Errorf("unknown expense grouping %q", groupBy)
	}

	inPeriod := core.ApplyFilters(expenses,
		core.DateBetween(func(e core.Expense) time.Time { return e.Date }, from, to))

	buckets := core.GroupSum(inPeriod, key,
		func(e core.Expense) decimal.Decimal { return e.Amount })
	core.SortBucketsByTotalDesc(buckets)

	report := &ExpenseBreakdownReport{GroupBy: groupBy, Buckets: buckets}
	for _, b := range buckets {
		report.Total = report.Total.Add(b.Total)
	}

	s.cache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

// PropertyOccupancyRow is one property's occupancy figures.
type PropertyOccupancyRow struct {
	PropertyID int64  `json:"propertyId"`
	Name       string `json:"name"`
	City       string `json:"city"`
	core.OccupancySummary
}

// OccupancyReport covers the whole portfolio plus every property.
type OccupancyReport struct {
	Portfolio  core.OccupancySummary  `json:"portfolio"`
	Properties []PropertyOccupancyRow `json:"properties"`
}

// Occupancy summarizes unit occupancy per property and portfolio-wide.
// Property rows are computed concurrently; each goroutine writes only its
// own slot.
func (s *Service) Occupancy(ctx context.Context) (*OccupancyReport, error) {
	if cached, ok := s.cache.Get("occupancy"); ok {
		return cached.(*OccupancyReport), nil
	}

	props, err := s.ledger.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}

	rows := make([]PropertyOccupancyRow, len(props))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range props {
		g.Go(func() error {
			rows[i] = PropertyOccupancyRow{
				PropertyID:       p.ID,
				Name:             p.Name,
				City:             p.City,
				OccupancySummary: core.PropertyOccupancy(p),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &OccupancyReport{
		Portfolio:  core.PortfolioOccupancy(props),
		Properties: rows,
	}
	s.cache.Set("occupancy", report, cache.DefaultExpiration)
	return report, nil
}

// AccountEngagement is one account's scored usage.
type AccountEngagement struct {
	AccountID string `json:"accountId"`
	core.UsageScore
}

// EngagementReport scores every account seen in the trailing window.
type EngagementReport struct {
	WindowDays int                 `json:"windowDays"`
	Accounts   []AccountEngagement `json:"accounts"`
	TierCounts []core.Bucket       `json:"tierCounts"`
}

// Engagement scores account activity over the trailing window and counts
// accounts per tier. Accounts with no events inside the window never appear;
// the dashboard treats absence as dormant.
func (s *Service) Engagement(ctx context.Context) (*EngagementReport, error) {
	if cached, ok := s.cache.Get("engagement"); ok {
		return cached.(*EngagementReport), nil
	}

	now := s.now()
	since := now.AddDate(0, 0, -s.windowDays)
	events, err := s.ledger.ListActivityEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}

	byAccount := make(map[string][]core.ActivityEvent)
	order := make([]string, 0)
	for _, ev := range events {
		if _, ok := byAccount[ev.AccountID]; !ok {
			order = append(order, ev.AccountID)
		}
		byAccount[ev.AccountID] = append(byAccount[ev.AccountID], ev)
	}

	accounts := make([]AccountEngagement, 0, len(order))
	for _, id := range order {
		accounts = append(accounts, AccountEngagement{
			AccountID:  id,
			UsageScore: core.ScoreUsage(byAccount[id], now, s.windowDays, s.dormantAfterDays),
		})
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].Score != accounts[j].Score {
			return accounts[i].Score > accounts[j].Score
		}
		return accounts[i].AccountID < accounts[j].AccountID
	})

	report := &EngagementReport{
		WindowDays: s.windowDays,
		Accounts:   accounts,
		TierCounts: core.GroupCount(accounts, func(a AccountEngagement) string { return string(a.Tier) }),
	}
	s.cache.Set("engagement", report, cache.DefaultExpiration)
	return report, nil
}
