// Package sagalog defines the audit trail of order workflow steps.
//
// Each order workflow (creation, settlement, reconciliation) appends one entry
// per step transition. Entries carry the active trace and span ids so a row can be
// joined with the distributed trace of the request that produced it.
package sagalog

import (
	"context"
	"time"
)

type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusStepDone  Status = "STEP_DONE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Step names used by the order workflows.
const (
	StepUserCheck      = "user_check"
	StepItemsValidated = "items_validated"
	StepOrderPersisted = "order_persisted"
	StepStockSync      = "stock_sync"
	StepAmountMatched  = "amount_matched"
	StepAuthorization  = "authorization"
	StepStatusUpdated  = "status_updated"
	StepLedgerSync     = "ledger_sync"
	StepReconciliation = "reconciliation"
)

type Entry struct {
	// SagaID is the order id, or the workflow name when no order exists yet.
	SagaID      string
	Workflow    string
	Status      Status
	CurrentStep string
	Detail      string
	TraceID     string
	SpanID      string
	UpdatedAt   time.Time
}

// Recorder appends entries. The log is append-only.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}
