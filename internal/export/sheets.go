// Package export mirrors finished report runs to a Google Sheet so the
// office staff can audit what was generated without touching the database.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"aqar/internal/config"
	"aqar/internal/storage"
)

// SheetsExporter appends report run rows to one spreadsheet tab.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsExporter builds a client from the OAuth credentials in the
// config. Returns (nil, nil) when no spreadsheet is configured, so callers
// can treat the export as simply disabled.
func NewSheetsExporter(ctx context.Context, cfg *config.Config) (*SheetsExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, nil
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth client: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Sheets export enabled",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     cfg.GoogleSheetName,
	}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read credential file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("no credential provided")
	}
}

// AppendRun appends one finished run as a row. The payload itself stays in
// the database; the sheet carries the audit columns only.
func (e *SheetsExporter) AppendRun(ctx context.Context, run *storage.ReportRun) error {
	if e == nil || e.svc == nil {
		return nil
	}

	completed := ""
	if !run.CompletedAt.IsZero() {
		completed = run.CompletedAt.Format(time.RFC3339)
	}
	row := []any{
		run.ID,
		run.ReportType,
		run.ScopeID,
		dateCell(run.PeriodFrom),
		dateCell(run.PeriodTo),
		run.RatePercent,
		run.RateBasis,
		run.Status,
		run.Error,
		run.RequestedAt.Format(time.RFC3339),
		completed,
	}

	rng := fmt.Sprintf("%s!A:K", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append run row: %w", err)
	}

	slog.InfoContext(ctx, "Exported report run to sheet", "run_id", run.ID, "sheet", e.sheetName)
	return nil
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
