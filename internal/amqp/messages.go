package amqp

import (
	"encoding/json"
	"time"
)

// ReportRequestMessage asks the worker to build one report run. It
// carries only the run id plus the query parameters; the worker reads
// the ledger snapshot from the database itself.
type ReportRequestMessage struct {
	RunID       string    `json:"run_id"`
	ReportType  string    `json:"report_type"`
	ScopeID     int64     `json:"scope_id,omitempty"`
	PeriodFrom  string    `json:"period_from,omitempty"`
	PeriodTo    string    `json:"period_to,omitempty"`
	RatePercent float64   `json:"rate_percent"`
	RateBasis   string    `json:"rate_basis"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReportRequestMessage(runID, reportType string, scopeID int64) *ReportRequestMessage {
	return &ReportRequestMessage{
		RunID:      runID,
		ReportType: reportType,
		ScopeID:    scopeID,
		Timestamp:  time.Now(),
	}
}

func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
