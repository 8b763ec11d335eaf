package reports

import (
	"context"
	"fmt"
	"time"

	"aqar/internal/core"
)

// Report types accepted by the run endpoint and the queue.
const (
	ReportCashflow          = "cashflow"
	ReportExpensesByType    = "expenses_by_type"
	ReportExpensesByBearer  = "expenses_by_bearer"
	ReportExpensesByProp    = "expenses_by_property"
	ReportOccupancy         = "occupancy"
	ReportEngagement        = "engagement"
	ReportContractStatement = "contract_statement"
)

// Request carries the parameters a queued run was created with.
type Request struct {
	ScopeID     int64
	PeriodFrom  time.Time
	PeriodTo    time.Time
	RatePercent float64
	RateBasis   string
}

// Builder produces one report type's payload.
type Builder interface {
	Build(ctx context.Context, s *Service, req Request) (any, error)
}

// BuilderFunc adapts a plain function to the Builder interface.
type BuilderFunc func(ctx context.Context, s *Service, req Request) (any, error)

func (f BuilderFunc) Build(ctx context.Context, s *Service, req Request) (any, error) {
	return f(ctx, s, req)
}

// builders maps report types onto their builders. The worker looks types up
// here, so registering a new report is one entry plus its builder.
var builders = map[string]Builder{
	ReportCashflow:          BuilderFunc(buildCashflow),
	ReportExpensesByType:    expenseBuilder(GroupByType),
	ReportExpensesByBearer:  expenseBuilder(GroupByBearer),
	ReportExpensesByProp:    expenseBuilder(GroupByProperty),
	ReportOccupancy:         BuilderFunc(buildOccupancy),
	ReportEngagement:        BuilderFunc(buildEngagement),
	ReportContractStatement: BuilderFunc(buildContractStatement),
}

// GetBuilder returns the builder for a report type.
func GetBuilder(reportType string) (Builder, error) {
	b, ok := builders[reportType]
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
	return b, nil
}

// RegisterBuilder registers a builder for a new report type.
func RegisterBuilder(reportType string, b Builder) {
	builders[reportType] = b
}

// BuildReport dispatches a run request to the matching builder.
func (s *Service) BuildReport(ctx context.Context, reportType string, req Request) (any, error) {
	b, err := GetBuilder(reportType)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, s, req)
}

func buildCashflow(ctx context.Context, s *Service, req Request) (any, error) {
	year := req.PeriodFrom.Year()
	if year == 1 { // zero time
		year = s.now().Year()
	}
	return s.Cashflow(ctx, year)
}

func expenseBuilder(groupBy string) BuilderFunc {
	return func(ctx context.Context, s *Service, req Request) (any, error) {
		return s.ExpenseBreakdown(ctx, groupBy, req.PeriodFrom, req.PeriodTo)
	}
}

func buildOccupancy(ctx context.Context, s *Service, _ Request) (any, error) {
	return s.Occupancy(ctx)
}

func buildEngagement(ctx context.Context, s *Service, _ Request) (any, error) {
	return s.Engagement(ctx)
}

func buildContractStatement(ctx context.Context, s *Service, req Request) (any, error) {
	if req.ScopeID <= 0 {
		return nil, fmt.Errorf("contract statement requires a contract scope")
	}
	// An empty basis means "use the configured one", so it must not be
	// normalized into the income default here.
	basis := core.RateBasis("")
	if req.RateBasis != "" {
		basis = core.NormalizeRateBasis(req.RateBasis)
	}
	return s.BuildContractStatement(ctx, req.ScopeID, req.RatePercent, basis, nil)
}
