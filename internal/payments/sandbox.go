package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Operations understood by Sandbox.FailNext and Sandbox.Calls.
const (
	OpAuthorize = "authorize"
	OpCapture   = "capture"
	OpRefund    = "refund"
	OpPayout    = "payout"
)

type charge struct {
	amount   int64
	captured bool
	refunded bool
	paidOut  bool
}

// Sandbox is an in-memory Gateway for development and tests. It honours
// idempotency keys and rejects refunds of charges that were already paid out.
type Sandbox struct {
	mu       sync.Mutex
	charges  map[string]*charge
	results  map[string]Result
	failures map[string][]error
	calls    map[string]int
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		charges:  make(map[string]*charge),
		results:  make(map[string]Result),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next call of op return err.
func (s *Sandbox) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls reports how many times op reached the sandbox, replays included.
func (s *Sandbox) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Moved reports how many distinct money movements of op were executed.
func (s *Sandbox) Moved(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.charges {
		switch op {
		case OpCapture:
			if c.captured {
				n++
			}
		case OpRefund:
			if c.refunded {
				n++
			}
		case OpPayout:
			if c.paidOut {
				n++
			}
		}
	}
	return n
}

func (s *Sandbox) begin(op, key string) (*Result, error) {
	s.calls[op]++
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		return nil, queued[0]
	}
	if key != "" {
		if r, ok := s.results[op+":"+key]; ok {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Sandbox) remember(op, key string, r Result) *Result {
	if key != "" {
		s.results[op+":"+key] = r
	}
	return &r
}

func (s *Sandbox) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, err := s.begin(OpAuthorize, req.IdempotencyKey); r != nil || err != nil {
		return r, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}
	ref := "sbx_" + uuid.NewString()
	s.charges[ref] = &charge{amount: req.Amount}
	return s.remember(OpAuthorize, req.IdempotencyKey, Result{Ref: ref, Status: "authorized"}), nil
}

func (s *Sandbox) Capture(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, err := s.begin(OpCapture, idempotencyKey); r != nil || err != nil {
		return r, err
	}
	c, ok := s.charges[ref]
	if !ok {
		return nil, fmt.Errorf("%w: unknown authorization %s", ErrDeclined, ref)
	}
	if amount != c.amount {
		return nil, fmt.Errorf("%w: capture amount %d differs from authorized %d", ErrDeclined, amount, c.amount)
	}
	c.captured = true
	return s.remember(OpCapture, idempotencyKey, Result{Ref: ref, Status: "captured"}), nil
}

func (s *Sandbox) Refund(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, err := s.begin(OpRefund, idempotencyKey); r != nil || err != nil {
		return r, err
	}
	c, ok := s.charges[ref]
	if !ok || !c.captured {
		return nil, fmt.Errorf("%w: nothing captured for %s", ErrDeclined, ref)
	}
	if c.paidOut {
		return nil, fmt.Errorf("%w: %s already paid out", ErrDeclined, ref)
	}
	c.refunded = true
	return s.remember(OpRefund, idempotencyKey, Result{Ref: "rf_" + ref, Status: "refunded"}), nil
}

func (s *Sandbox) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, err := s.begin(OpPayout, req.IdempotencyKey); r != nil || err != nil {
		return r, err
	}
	c, ok := s.charges[req.SourceRef]
	if !ok || !c.captured {
		return nil, fmt.Errorf("%w: nothing captured for %s", ErrDeclined, req.SourceRef)
	}
	if c.refunded {
		return nil, fmt.Errorf("%w: %s already refunded", ErrDeclined, req.SourceRef)
	}
	if req.Amount > c.amount {
		return nil, fmt.Errorf("%w: payout exceeds captured amount", ErrDeclined)
	}
	c.paidOut = true
	return s.remember(OpPayout, req.IdempotencyKey, Result{Ref: "po_" + req.SourceRef, Status: "paid"}), nil
}
