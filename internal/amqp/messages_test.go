package amqp

import (
	"testing"
	"time"
)

func TestNewReportRequestMessage(t *testing.T) {
	msg := NewReportRequestMessage("run-1", "cashflow", 42)

	if msg.RunID != "run-1" {
		t.Errorf("RunID = %v, want run-1", msg.RunID)
	}
	if msg.ReportType != "cashflow" {
		t.Errorf("ReportType = %v, want cashflow", msg.ReportType)
	}
	if msg.ScopeID != 42 {
		t.Errorf("ScopeID = %v, want 42", msg.ScopeID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestReportRequestMessage_JSON(t *testing.T) {
	msg := &ReportRequestMessage{
		RunID:       "9f1b2c",
		ReportType:  "contract_statement",
		ScopeID:     7,
		PeriodFrom:  "2025-01-01",
		PeriodTo:    "2025-12-31",
		RatePercent: 5,
		RateBasis:   "income",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ReportRequestMessageFromJSON(body)
	if err != nil {
		t.Fatalf("ReportRequestMessageFromJSON() error = %v", err)
	}

	if parsed.RunID != msg.RunID {
		t.Errorf("Parsed RunID = %v, want %v", parsed.RunID, msg.RunID)
	}
	if parsed.ReportType != msg.ReportType {
		t.Errorf("Parsed ReportType = %v, want %v", parsed.ReportType, msg.ReportType)
	}
	if parsed.RatePercent != msg.RatePercent {
		t.Errorf("Parsed RatePercent = %v, want %v", parsed.RatePercent, msg.RatePercent)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestReportRequestMessage_InvalidJSON(t *testing.T) {
	_, err := ReportRequestMessageFromJSON([]byte(`{"run_id": 1}`))
	if err == nil {
		t.Error("ReportRequestMessageFromJSON() should fail when run_id is not a string")
	}
}
