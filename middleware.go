package ledgerxgo

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

//
// Request validation middleware
//

// validationMiddleware rejects requests that are malformed before they reach
// the ledger: a missing account identifier can never resolve to an account,
// so it fails fast as a bad request rather than a lookup miss.
type validationMiddleware struct {
	next Service
}

var (
	_ Service = (*validationMiddleware)(nil)
)

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{next: svc}
	}
}

func checkAcctID(id string) error {
	if id == "" {
		return ErrBadRequest{Fields: map[string]string{"acctID": "missing or invalid"}}
	}
	return nil
}

func (v *validationMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	if err := checkAcctID(req.AcctID); err != nil {
		return nil, err
	}
	return v.next.Deposit(req)
}

func (v *validationMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	if err := checkAcctID(req.AcctID); err != nil {
		return nil, err
	}
	return v.next.Withdraw(req)
}

func (v *validationMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	if err := checkAcctID(req.AcctID); err != nil {
		return nil, err
	}
	return v.next.Balance(req)
}

func (v *validationMiddleware) Statement(req StatementReq) (string, error) {
	if err := checkAcctID(req.AcctID); err != nil {
		return "", err
	}
	return v.next.Statement(req)
}

func (v *validationMiddleware) StatementPDF(w io.Writer, req StatementReq) error {
	if err := checkAcctID(req.AcctID); err != nil {
		return err
	}
	return v.next.StatementPDF(w, req)
}

//
// Rate limiting middlewares
//

// acquisition budget before a request is shed
const limitAcquireTimeout = time.Second

// limitMiddleware bounds the number of in-flight requests per operation with
// a weighted semaphore. Limits are static, so on a heterogeneous fleet they
// need manual tuning per machine class; good enough as load shedding here.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	Deposit   *semaphore.Weighted
	Withdraw  *semaphore.Weighted
	Balance   *semaphore.Weighted
	Statement *semaphore.Weighted
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func acquire(sem *semaphore.Weighted) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), limitAcquireTimeout)
	defer cancel()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, ErrTooManyRequests{}
	}
	return func() { sem.Release(1) }, nil
}

func (l *limitMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	release, err := acquire(l.limits.Deposit)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Deposit(req)
}

func (l *limitMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	release, err := acquire(l.limits.Withdraw)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Withdraw(req)
}

func (l *limitMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	release, err := acquire(l.limits.Balance)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Balance(req)
}

func (l *limitMiddleware) Statement(req StatementReq) (string, error) {
	release, err := acquire(l.limits.Statement)
	if err != nil {
		return "", err
	}
	defer release()
	return l.next.Statement(req)
}

func (l *limitMiddleware) StatementPDF(w io.Writer, req StatementReq) error {
	release, err := acquire(l.limits.Statement)
	if err != nil {
		return err
	}
	defer release()
	return l.next.StatementPDF(w, req)
}

type ServiceBreaker struct {
	Deposit   *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Withdraw  *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Balance   *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Statement *gobreaker.TwoStepCircuitBreaker[string]
}

// circuitBreakMiddleware trips per-operation breakers on internal failures.
// Works in conjunction with limitMiddleware: when the service struggles to
// release limit tokens within deadline, the breaker opens and sheds traffic
// before it ever queues. Business rejections (invalid amount, insufficient
// balance, unknown account) count as successes; they are the ledger working
// as intended.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var (
		nf ErrNotFound
		ia ErrInvalidAmount
		ib ErrInsufficientBalance
		br ErrBadRequest
	)
	return errors.As(err, &nf) || errors.As(err, &ia) || errors.As(err, &ib) || errors.As(err, &br)
}

func (c *circuitBreakMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	done, err := c.brkrs.Deposit.Allow()
	if err != nil {
		return nil, ErrTooManyRequests{}
	}
	bal, err := c.next.Deposit(req)
	done(breakerSuccess(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	done, err := c.brkrs.Withdraw.Allow()
	if err != nil {
		return nil, ErrTooManyRequests{}
	}
	bal, err := c.next.Withdraw(req)
	done(breakerSuccess(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	done, err := c.brkrs.Balance.Allow()
	if err != nil {
		return nil, ErrTooManyRequests{}
	}
	bal, err := c.next.Balance(req)
	done(breakerSuccess(err))
	return bal, err
}

func (c *circuitBreakMiddleware) Statement(req StatementReq) (string, error) {
	done, err := c.brkrs.Statement.Allow()
	if err != nil {
		return "", ErrTooManyRequests{}
	}
	stmt, err := c.next.Statement(req)
	done(breakerSuccess(err))
	return stmt, err
}

func (c *circuitBreakMiddleware) StatementPDF(w io.Writer, req StatementReq) error {
	done, err := c.brkrs.Statement.Allow()
	if err != nil {
		return ErrTooManyRequests{}
	}
	err = c.next.StatementPDF(w, req)
	done(breakerSuccess(err))
	return err
}
