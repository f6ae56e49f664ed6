package ledgerxgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

const (
	statementTitle      = "Date                | Type       | Amount  | Balance\n"
	statementDelimiter  = "-----------------------------------------------------\n"
	statementFormat     = "%-20s| %-10s| %-8.2f| %-8.2f\n"
	statementTimeLayout = "2006-01-02T15:04:05"
)

const (
	// budget around lock-acquire + store round trips; exhaustion surfaces
	// a retriable error instead of queueing indefinitely
	opTimeout = 5 * time.Second
	// attempts from load before an optimistic-save conflict becomes terminal
	saveAttempts = 3
)

type ChargeReq struct {
	Amount decimal.Decimal `json:"amount"`
	AcctID string
}

type BalanceReq struct {
	AcctID string
}

type StatementReq struct {
	AcctID string
}

type Service interface {
	Deposit(ChargeReq) (*decimal.Decimal, error)
	Withdraw(ChargeReq) (*decimal.Decimal, error)
	Balance(BalanceReq) (*decimal.Decimal, error)
	Statement(StatementReq) (string, error)
	StatementPDF(io.Writer, StatementReq) error
}

// acctLocks hands out one weighted semaphore per account identifier so that
// load/validate/save on the same account never interleave while operations
// on different accounts proceed in parallel. Semaphores are never evicted;
// the registry grows with the set of accounts touched by this process.
type acctLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func newAcctLocks() *acctLocks {
	return &acctLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (al *acctLocks) get(id string) *semaphore.Weighted {
	al.mu.Lock()
	defer al.mu.Unlock()
	sem, ok := al.locks[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		al.locks[id] = sem
	}
	return sem
}

func NewService(store AccountStore, log *zerolog.Logger) *serviceImpl {
	return &serviceImpl{
		store: store,
		locks: newAcctLocks(),
		log:   log,
	}
}

type serviceImpl struct {
	store AccountStore
	locks *acctLocks
	log   *zerolog.Logger
}

var (
	_ Service = (*serviceImpl)(nil)
)

func (s *serviceImpl) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	return s.mutate(Deposit, req)
}

func (s *serviceImpl) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	return s.mutate(Withdraw, req)
}

// mutate runs the read-modify-write cycle under the account's lock.
// Amount checks come first so a negative or over-precise withdrawal reports
// ErrInvalidAmount even when the balance would also be insufficient.
func (s *serviceImpl) mutate(op OperationType, req ChargeReq) (*decimal.Decimal, error) {
	if req.Amount.Sign() <= 0 {
		return nil, errAmountNotPositive(op)
	}
	if req.Amount.Exponent() < -2 {
		return nil, ErrInvalidAmount{Reason: msgPrecisionExceeded}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	lock := s.locks.get(req.AcctID)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, ErrTooManyRequests{}
	}
	defer lock.Release(1)

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		acct, err := s.store.GetAccount(req.AcctID)
		if err != nil {
			return nil, err
		}

		var newBal decimal.Decimal
		switch op {
		case Deposit:
			newBal = acct.Balance.Add(req.Amount)
		case Withdraw:
			if req.Amount.GreaterThan(acct.Balance) {
				return nil, ErrInsufficientBalance{}
			}
			newBal = acct.Balance.Sub(req.Amount)
		}
		acct.append(time.Now(), op, req.Amount, newBal)

		if err = s.store.SaveAccount(acct); err != nil {
			conflict := ErrConflict{}
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return &newBal, nil
	}

	s.log.Error().
		Err(lastErr).
		Str("acct_id", req.AcctID).
		Str("op", op.Description()).
		Msg("save retries exhausted")
	return nil, ErrInternalServer
}

func (s *serviceImpl) Balance(req BalanceReq) (*decimal.Decimal, error) {
	acct, err := s.store.GetAccount(req.AcctID)
	if err != nil {
		return nil, err
	}
	return &acct.Balance, nil
}

func (s *serviceImpl) Statement(req StatementReq) (string, error) {
	acct, err := s.store.GetAccount(req.AcctID)
	if err != nil {
		return "", err
	}
	if len(acct.Statements) == 0 {
		return msgNoStatement, nil
	}

	var sb strings.Builder
	sb.WriteString(statementTitle)
	sb.WriteString(statementDelimiter)
	for _, st := range recentFirst(acct.Statements) {
		fmt.Fprintf(&sb, statementFormat,
			st.Timestamp.Format(statementTimeLayout),
			st.Op.Description(),
			st.Amount.InexactFloat64(),
			st.Balance.InexactFloat64(),
		)
	}
	return sb.String(), nil
}

// StatementPDF renders the same projection as Statement into a PDF document.
func (s *serviceImpl) StatementPDF(w io.Writer, req StatementReq) error {
	acct, err := s.store.GetAccount(req.AcctID)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(0, 6, strings.TrimSuffix(statementTitle, "\n"), "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	if len(acct.Statements) == 0 {
		pdf.CellFormat(0, 6, msgNoStatement, "", 1, "L", false, 0, "")
		return pdf.Output(w)
	}
	pdf.CellFormat(0, 6, strings.TrimSuffix(statementDelimiter, "\n"), "", 1, "L", false, 0, "")
	for _, st := range recentFirst(acct.Statements) {
		row := fmt.Sprintf(statementFormat,
			st.Timestamp.Format(statementTimeLayout),
			st.Op.Description(),
			st.Amount.InexactFloat64(),
			st.Balance.InexactFloat64(),
		)
		pdf.CellFormat(0, 6, strings.TrimSuffix(row, "\n"), "", 1, "L", false, 0, "")
	}
	return pdf.Output(w)
}

// recentFirst returns a copy sorted by timestamp descending. The sort is
// stable so statements sharing a timestamp keep their insertion order
// relative to each other; the stored slice stays chronological.
func recentFirst(stmts []Statement) []Statement {
	out := make([]Statement, len(stmts))
	copy(out, stmts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
