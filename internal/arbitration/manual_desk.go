package arbitration

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManualDesk keeps cases in memory for operators who resolve disputes through
// the internal API. It is used when no arbitration service is configured.
type ManualDesk struct {
	mu    sync.Mutex
	cases map[string]CaseRequest
	log   *zap.Logger
}

func NewManualDesk(log *zap.Logger) *ManualDesk {
	return &ManualDesk{cases: make(map[string]CaseRequest), log: log}
}

func (d *ManualDesk) OpenCase(ctx context.Context, req CaseRequest) (string, error) {
	ref := "manual-" + uuid.NewString()

	d.mu.Lock()
	d.cases[ref] = req
	d.mu.Unlock()

	d.log.Info("arbitration case opened for manual review",
		zap.String("case_ref", ref),
		zap.String("transaction_id", req.TransactionID.String()),
		zap.String("reason", req.Reason))
	return ref, nil
}

func (d *ManualDesk) CancelCase(ctx context.Context, caseRef string) error {
	d.mu.Lock()
	delete(d.cases, caseRef)
	d.mu.Unlock()

	d.log.Info("arbitration case withdrawn", zap.String("case_ref", caseRef))
	return nil
}

// Open lists cases still awaiting a decision.
func (d *ManualDesk) Open() map[string]CaseRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]CaseRequest, len(d.cases))
	for k, v := range d.cases {
		out[k] = v
	}
	return out
}
