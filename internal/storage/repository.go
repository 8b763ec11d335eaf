package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"aqar/internal/core"
)

// ErrNotFound marks lookups for rows that don't exist. Handlers map it to
// a 404 instead of a 500.
var ErrNotFound = errors.New("not found")

// SQLiteRepository materializes the snapshots the computation core works
// on. Amount columns are stored as decimal TEXT and scanned through
// core.ParseAmount, so malformed values degrade to zero instead of
// failing a whole report.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database reachability, for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ContractSnapshot pairs a contract with the server-stored advance figure.
// The stored figure is only a fallback; reconciliation derives the
// canonical advance from a negative remaining balance.
type ContractSnapshot struct {
	Contract      core.Contract
	StoredAdvance decimal.Decimal
}

// GetContract loads one contract with all nested ledger collections.
// Contracts without child rows come back with empty collections.
func (r *SQLiteRepository) GetContract(ctx context.Context, id int64) (*ContractSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, contract_no, tenancy_start, tenancy_end, annual_rent, status, advance_balance
		 FROM contracts WHERE id = ?`, id)

	snap, err := scanContract(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("contract %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}

	if err := r.loadContractChildren(ctx, map[int64]*ContractSnapshot{id: snap}); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListContracts loads every contract with its nested collections.
func (r *SQLiteRepository) ListContracts(ctx context.Context) ([]ContractSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contract_no, tenancy_start, tenancy_end, annual_rent, status, advance_balance
		 FROM contracts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var order []int64
	byID := make(map[int64]*ContractSnapshot)
	for rows.Next() {
		snap, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		byID[snap.Contract.ID] = snap
		order = append(order, snap.Contract.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}

	if err := r.loadContractChildren(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]ContractSnapshot, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(s rowScanner) (*ContractSnapshot, error) {
	var (
		c                   core.Contract
		start, end          string
		annualRent, advance string
	)
	if err := s.Scan(&c.ID, &c.ContractNo, &start, &end, &annualRent, &c.Status, &advance); err != nil {
		return nil, err
	}
	c.TenancyStart = parseDate(start)
	c.TenancyEnd = parseDate(end)
	c.AnnualRent = core.ParseAmount(annualRent)
	return &ContractSnapshot{Contract: c, StoredAdvance: core.ParseAmount(advance)}, nil
}

// loadContractChildren fills payments, receipts, expenses, parties and
// units for every snapshot in the map with single bucketed queries.
func (r *SQLiteRepository) loadContractChildren(ctx context.Context, byID map[int64]*ContractSnapshot) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contract_id, due_date, amount, paid_amount, status FROM payments ORDER BY due_date`)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for rows.Next() {
		var p core.Payment
		var due, amount, paid string
		if err := rows.Scan(&p.ID, &p.ContractID, &due, &amount, &paid, &p.Status); err != nil {
			rows.Close()
			return fmt.Errorf("scan payment: %w", err)
		}
		p.DueDate = parseDate(due)
		p.Amount = core.ParseAmount(amount)
		p.PaidAmount = core.ParseAmount(paid)
		if snap, ok := byID[p.ContractID]; ok {
			snap.Contract.Payments = append(snap.Contract.Payments, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	receipts, err := r.ListReceipts(ctx)
	if err != nil {
		return err
	}
	for _, rc := range receipts {
		if snap, ok := byID[rc.ContractID]; ok {
			snap.Contract.Receipts = append(snap.Contract.Receipts, rc)
		}
	}

	expenses, err := r.ListExpenses(ctx)
	if err != nil {
		return err
	}
	for _, e := range expenses {
		if snap, ok := byID[e.ContractID]; ok {
			snap.Contract.Expenses = append(snap.Contract.Expenses, e)
		}
	}

	prows, err := r.db.QueryContext(ctx,
		`SELECT id, contract_id, name, phone, role FROM contract_parties ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load parties: %w", err)
	}
	for prows.Next() {
		var party core.Party
		var contractID int64
		var role string
		if err := prows.Scan(&party.ID, &contractID, &party.Name, &party.Phone, &role); err != nil {
			prows.Close()
			return fmt.Errorf("scan party: %w", err)
		}
		party.Role = core.PartyRole(role)
		snap, ok := byID[contractID]
		if !ok {
			continue
		}
		switch party.Role {
		case core.RoleLessor:
			snap.Contract.Lessors = append(snap.Contract.Lessors, party)
		case core.RoleBroker:
			b := party
			snap.Contract.Broker = &b
		default:
			snap.Contract.Tenants = append(snap.Contract.Tenants, party)
		}
	}
	prows.Close()
	if err := prows.Err(); err != nil {
		return fmt.Errorf("load parties: %w", err)
	}

	urows, err := r.db.QueryContext(ctx,
		`SELECT cu.contract_id, u.id, u.property_id, u.unit_no, u.area, u.occupied
		 FROM contract_units cu JOIN units u ON u.id = cu.unit_id ORDER BY u.id`)
	if err != nil {
		return fmt.Errorf("load contract units: %w", err)
	}
	for urows.Next() {
		var contractID int64
		var u core.Unit
		var area string
		var occupied int
		if err := urows.Scan(&contractID, &u.ID, &u.PropertyID, &u.Number, &area, &occupied); err != nil {
			urows.Close()
			return fmt.Errorf("scan contract unit: %w", err)
		}
		u.Area = core.ParseAmount(area)
		u.Occupied = occupied != 0
		if snap, ok := byID[contractID]; ok {
			snap.Contract.Units = append(snap.Contract.Units, u)
		}
	}
	urows.Close()
	if err := urows.Err(); err != nil {
		return fmt.Errorf("load contract units: %w", err)
	}

	return nil
}

// ListProperties loads all properties with their units.
func (r *SQLiteRepository) ListProperties(ctx context.Context) ([]core.Property, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, city FROM properties ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var order []int64
	byID := make(map[int64]*core.Property)
	for rows.Next() {
		var p core.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.City); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		byID[p.ID] = &p
		order = append(order, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}

	urows, err := r.db.QueryContext(ctx,
		`SELECT id, property_id, unit_no, area, occupied FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer urows.Close()
	for urows.Next() {
		var u core.Unit
		var area string
		var occupied int
		if err := urows.Scan(&u.ID, &u.PropertyID, &u.Number, &area, &occupied); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.Area = core.ParseAmount(area)
		u.Occupied = occupied != 0
		if p, ok := byID[u.PropertyID]; ok {
			p.Units = append(p.Units, u)
		}
	}
	if err := urows.Err(); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	out := make([]core.Property, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// ListReceipts loads every receipt, normalizing stored type strings onto
// the closed receipt type set.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount, receipt_type, payer, receiver, contract_id, unit_id, property_id
		 FROM receipts ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := make([]core.Receipt, 0)
	for rows.Next() {
		var rc core.Receipt
		var date, amount, rtype string
		if err := rows.Scan(&rc.ID, &date, &amount, &rtype, &rc.Payer, &rc.Receiver, &rc.ContractID, &rc.UnitID, &rc.PropertyID); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rc.Date = parseDate(date)
		rc.Amount = core.ParseAmount(amount)
		rc.Type = core.NormalizeReceiptType(rtype)
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}

// ListExpenses loads every expense, normalizing stored bearer strings.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount, expense_type, on_whom, contract_id, unit_id, property_id
		 FROM expenses ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		var date, amount, bearer string
		if err := rows.Scan(&e.ID, &date, &amount, &e.ExpenseType, &bearer, &e.ContractID, &e.UnitID, &e.PropertyID); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = parseDate(date)
		e.Amount = core.ParseAmount(amount)
		e.OnWhom = core.NormalizeBearer(bearer)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// ListActivityEvents loads the interaction events recorded since the
// given instant, oldest first.
func (r *SQLiteRepository) ListActivityEvents(ctx context.Context, since time.Time) ([]core.ActivityEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, kind, occurred_at FROM activity_events
		 WHERE occurred_at >= ? ORDER BY occurred_at`, since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	out := make([]core.ActivityEvent, 0)
	for rows.Next() {
		var ev core.ActivityEvent
		var kind, at string
		if err := rows.Scan(&ev.AccountID, &kind, &at); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		ev.Kind = core.EventKind(kind)
		ev.At = parseDate(at)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	return out, nil
}

// parseDate accepts the ISO-8601 shapes the write path stores. Malformed
// dates degrade to the zero time rather than failing the report.
func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
