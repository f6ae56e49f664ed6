package ledgerxgo_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/semaphore"

	"github.com/ledgerxgo/ledgerxgo"
	"github.com/ledgerxgo/ledgerxgo/mocks"
)

func TestValidationMW(t *testing.T) {
	t.Run("rejects an empty account identifier", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerxgo.NewValidationMiddleware()(svc)

		bal, err := v.Deposit(ledgerxgo.ChargeReq{Amount: decimal.NewFromInt(50)})
		as.Nil(bal)
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		bal, err = v.Withdraw(ledgerxgo.ChargeReq{Amount: decimal.NewFromInt(50)})
		as.Nil(bal)
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		bal, err = v.Balance(ledgerxgo.BalanceReq{})
		as.Nil(bal)
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		_, err = v.Statement(ledgerxgo.StatementReq{})
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})
	})

	t.Run("passes well-formed requests through", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerxgo.NewValidationMiddleware()(svc)

		bal := decimal.NewFromInt(150)
		svc.EXPECT().
			Deposit(gomock.AssignableToTypeOf(ledgerxgo.ChargeReq{})).
			Return(&bal, nil).
			Times(1)

		got, err := v.Deposit(ledgerxgo.ChargeReq{AcctID: "A1", Amount: decimal.NewFromInt(50)})
		as.Nil(err)
		as.True(got.Equal(bal))
	})
}

func TestLimitMW(t *testing.T) {
	t.Run("sheds load once the semaphore is exhausted", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		sem := semaphore.NewWeighted(1)
		limits := &ledgerxgo.ServiceLimits{
			Deposit:   sem,
			Withdraw:  semaphore.NewWeighted(1),
			Balance:   semaphore.NewWeighted(1),
			Statement: semaphore.NewWeighted(1),
		}
		l := ledgerxgo.NewLimitMiddleware(limits)(svc)

		// hold the only token so the middleware cannot acquire in time
		reqrd.True(sem.TryAcquire(1))
		defer sem.Release(1)

		bal, err := l.Deposit(ledgerxgo.ChargeReq{AcctID: "A1", Amount: decimal.NewFromInt(50)})
		as.Nil(bal)
		as.ErrorAs(err, &ledgerxgo.ErrTooManyRequests{})
	})

	t.Run("releases the token after the call", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		limits := &ledgerxgo.ServiceLimits{
			Deposit:   semaphore.NewWeighted(1),
			Withdraw:  semaphore.NewWeighted(1),
			Balance:   semaphore.NewWeighted(1),
			Statement: semaphore.NewWeighted(1),
		}
		l := ledgerxgo.NewLimitMiddleware(limits)(svc)

		bal := decimal.NewFromInt(1)
		svc.EXPECT().
			Balance(gomock.AssignableToTypeOf(ledgerxgo.BalanceReq{})).
			Return(&bal, nil).
			Times(2)

		for i := 0; i < 2; i++ {
			got, err := l.Balance(ledgerxgo.BalanceReq{AcctID: "A1"})
			as.Nil(err)
			as.True(got.Equal(bal))
		}
	})
}

func TestCircuitBreakMW(t *testing.T) {
	newBreakers := func() *ledgerxgo.ServiceBreaker {
		return &ledgerxgo.ServiceBreaker{
			Deposit:   gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "deposit"}),
			Withdraw:  gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "withdraw"}),
			Balance:   gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "balance"}),
			Statement: gobreaker.NewTwoStepCircuitBreaker[string](gobreaker.Settings{Name: "statement"}),
		}
	}

	t.Run("business rejections do not trip the breaker", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		c := ledgerxgo.NewCircuitBreakMiddleware(newBreakers())(svc)

		const calls = 20
		svc.EXPECT().
			Withdraw(gomock.AssignableToTypeOf(ledgerxgo.ChargeReq{})).
			Return(nil, ledgerxgo.ErrInsufficientBalance{}).
			Times(calls)

		for i := 0; i < calls; i++ {
			_, err := c.Withdraw(ledgerxgo.ChargeReq{AcctID: "A1", Amount: decimal.NewFromInt(50)})
			as.ErrorAs(err, &ledgerxgo.ErrInsufficientBalance{})
		}
	})

	t.Run("opens after consecutive internal failures", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		c := ledgerxgo.NewCircuitBreakMiddleware(newBreakers())(svc)

		// default gobreaker settings trip after 5 consecutive failures
		const failures = 6
		svc.EXPECT().
			Deposit(gomock.AssignableToTypeOf(ledgerxgo.ChargeReq{})).
			Return(nil, ledgerxgo.ErrInternalServer).
			Times(failures)

		for i := 0; i < failures; i++ {
			_, err := c.Deposit(ledgerxgo.ChargeReq{AcctID: "A1", Amount: decimal.NewFromInt(50)})
			as.ErrorIs(err, ledgerxgo.ErrInternalServer)
		}

		// breaker is open now; the service must not be called again
		_, err := c.Deposit(ledgerxgo.ChargeReq{AcctID: "A1", Amount: decimal.NewFromInt(50)})
		as.ErrorAs(err, &ledgerxgo.ErrTooManyRequests{})
	})
}
