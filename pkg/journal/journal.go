// Package journal persists per-iteration audit records as JSON files,
// one per orchestrator pass, for offline analysis.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IterationRecord captures one end-to-end orchestrator iteration.
type IterationRecord struct {
	Timestamp     time.Time         `json:"timestamp"`
	Iteration     int               `json:"iteration"`
	Phase         string            `json:"phase"`
	TradeDate     string            `json:"trade_date"`
	Captured      []string          `json:"captured,omitempty"`
	CaptureErrors map[string]string `json:"capture_errors,omitempty"`
	Proposals     []ProposalEntry   `json:"proposals,omitempty"`
	EODClosed     int               `json:"eod_closed,omitempty"`
	Success       bool              `json:"success"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// ProposalEntry summarises one proposal and its gate verdict.
type ProposalEntry struct {
	ID       string  `json:"id"`
	Strategy string  `json:"strategy"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Decision string  `json:"decision"`
	Reason   string  `json:"reason,omitempty"`
}

// Writer persists iteration records to a directory as JSON files.
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteIteration writes a record to a timestamped JSON file.
func (w *Writer) WriteIteration(rec *IterationRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.Iteration = w.seq
	name := fmt.Sprintf("iter_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
