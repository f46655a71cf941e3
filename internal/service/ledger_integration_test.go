package service_test

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/repository"
	"github.com/speedpay/speedpay-api/internal/service"
	"github.com/speedpay/speedpay-api/internal/testutil"
)

var transactionNumberRe = regexp.MustCompile(`^[0-9]{15}$`)

func setupLedgerService(db *sql.DB) *service.LedgerService {
	return service.NewLedgerService(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		db,
	)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApply_Deposit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "deposit@test.com", "Deposit User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000001", dec("100.00"))

	res, err := svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID,
		Kind:      domain.TransactionKindDeposit,
		Amount:    dec("50.00"),
	})

	require.NoError(t, err)
	assert.Regexp(t, transactionNumberRe, res.TransactionNumber)
	assert.True(t, res.NewBalance.Equal(dec("150.00")), "new balance = %s", res.NewBalance)
	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(dec("150.00")))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, acct.ID))

	var kind string
	var amount decimal.Decimal
	err = db.QueryRow(
		`SELECT kind, amount FROM transactions WHERE account_id = $1`, acct.ID,
	).Scan(&kind, &amount)
	require.NoError(t, err)
	assert.Equal(t, "Deposit", kind)
	assert.True(t, amount.Equal(dec("50.00")))
}

func TestApply_WithdrawBoundaryInclusive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "boundary@test.com", "Boundary User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000002", dec("75.25"))

	res, err := svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID,
		Kind:      domain.TransactionKindWithdraw,
		Amount:    dec("75.25"),
	})

	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(decimal.Zero), "new balance = %s", res.NewBalance)
	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(decimal.Zero))
}

func TestApply_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "overdraft@test.com", "Overdraft User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000003", dec("100.00"))

	_, err := svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID,
		Kind:      domain.TransactionKindWithdraw,
		Amount:    dec("100.01"),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(dec("100.00")))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, acct.ID))
}

func TestApply_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "reject@test.com", "Reject User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000004", dec("10.00"))

	tests := []struct {
		name    string
		req     service.ApplyRequest
		wantErr error
	}{
		{
			name:    "zero amount",
			req:     service.ApplyRequest{AccountID: acct.ID, Kind: domain.TransactionKindDeposit, Amount: decimal.Zero},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     service.ApplyRequest{AccountID: acct.ID, Kind: domain.TransactionKindWithdraw, Amount: dec("-1.00")},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown kind",
			req:     service.ApplyRequest{AccountID: acct.ID, Kind: domain.TransactionKind("Transfer"), Amount: dec("1.00")},
			wantErr: domain.ErrInvalidTransactionKind,
		},
		{
			name:    "missing account",
			req:     service.ApplyRequest{AccountID: uuid.New(), Kind: domain.TransactionKindDeposit, Amount: dec("1.00")},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Apply(ctx, tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(dec("10.00")))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, acct.ID))
}

// The API is not idempotent across retries: the same logical request
// applied twice mints two transaction numbers and moves the balance twice.
func TestApply_RepeatedRequestIsNotIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "repeat@test.com", "Repeat User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000005", dec("0.00"))

	req := service.ApplyRequest{
		AccountID: acct.ID,
		Kind:      domain.TransactionKindDeposit,
		Amount:    dec("25.00"),
	}

	first, err := svc.Apply(ctx, req)
	require.NoError(t, err)
	second, err := svc.Apply(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.TransactionNumber, second.TransactionNumber)
	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(dec("50.00")))
	assert.Equal(t, 2, testutil.CountTransactions(t, db, acct.ID))
}

func TestApply_ConcurrentWithdrawalsDrainToZero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "concurrent@test.com", "Concurrent User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000006", dec("100.00"))

	const n = 4
	share := dec("25.00")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(ctx, service.ApplyRequest{
				AccountID: acct.ID,
				Kind:      domain.TransactionKindWithdraw,
				Amount:    share,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	final := testutil.GetAccountBalance(t, db, acct.ID)
	assert.True(t, final.Equal(decimal.Zero), "final balance = %s", final)
	assert.Equal(t, n, testutil.CountTransactions(t, db, acct.ID))
}

func TestApply_ConcurrentOverdraftNeverGoesNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "race@test.com", "Race User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000007", dec("100.00"))

	// Two withdrawals of 70 against 100: exactly one can win.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(ctx, service.ApplyRequest{
				AccountID: acct.ID,
				Kind:      domain.TransactionKindWithdraw,
				Amount:    dec("70.00"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	final := testutil.GetAccountBalance(t, db, acct.ID)
	assert.True(t, final.Equal(dec("30.00")), "final balance = %s", final)
	assert.Equal(t, 1, testutil.CountTransactions(t, db, acct.ID))
}

func TestApply_EndToEndScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "scenario@test.com", "Scenario User")
	acct := testutil.SeedTestAccount(t, db, user.ID, "1000000008", dec("100.00"))

	res, err := svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID, Kind: domain.TransactionKindDeposit, Amount: dec("50.00"),
	})
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(dec("150.00")))

	_, err = svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID, Kind: domain.TransactionKindWithdraw, Amount: dec("200.00"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, testutil.GetAccountBalance(t, db, acct.ID).Equal(dec("150.00")))

	res, err = svc.Apply(ctx, service.ApplyRequest{
		AccountID: acct.ID, Kind: domain.TransactionKindWithdraw, Amount: dec("150.00"),
	})
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(decimal.Zero))
	assert.Equal(t, 2, testutil.CountTransactions(t, db, acct.ID))

	rows, err := db.Query(
		`SELECT kind, amount FROM transactions WHERE account_id = $1 ORDER BY created_at`, acct.ID,
	)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		kind   string
		amount decimal.Decimal
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.kind, &r.amount))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "Deposit", got[0].kind)
	assert.True(t, got[0].amount.Equal(dec("50.00")))
	assert.Equal(t, "Withdraw", got[1].kind)
	assert.True(t, got[1].amount.Equal(dec("150.00")))
}
