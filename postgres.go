package ledgerxgo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	pgSelectAcctSQL = `
		SELECT balance, version
		FROM accounts
		WHERE acct_id = $1;
	`

	pgSelectStmtsSQL = `
		SELECT at, op, amount, balance
		FROM statements
		WHERE acct_id = $1
		ORDER BY seq ASC;
	`

	pgUpdateAcctSQL = `
		UPDATE accounts
		SET balance = $1, version = $2
		WHERE acct_id = $3 AND version = $4;
	`

	pgInsertStmtSQL = `
		INSERT INTO statements (acct_id, seq, at, op, amount, balance)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	pgInsertAcctSQL = `
		INSERT INTO accounts (acct_id, balance, version)
		VALUES ($1, $2, 0);
	`

	pgExistsAcctSQL = `
		SELECT 1 FROM accounts WHERE acct_id = $1;
	`
)

// PostgresEndpoint implements AccountStore on a pgx pool. Saves are
// optimistic: the accounts row carries a version column equal to the number
// of persisted statements, and an update conditioned on the loaded version
// either lands together with the new statement rows or not at all.
type PostgresEndpoint struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

var (
	_ AccountStore = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(connStr string, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		log:  log,
	}
	return endpt, err
}

func (pg *PostgresEndpoint) GetAccount(id string) (*Account, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	// repeatable read so balance and statements come from one snapshot
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	acct := &Account{AcctID: id}
	row := tx.QueryRow(ctx, pgSelectAcctSQL, id)
	if err = row.Scan(&acct.Balance, &acct.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}

	rows, err := tx.Query(ctx, pgSelectStmtsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st Statement
			op string
		)
		if err = rows.Scan(&st.Timestamp, &op, &st.Amount, &st.Balance); err != nil {
			return nil, err
		}
		st.Op = OperationType(op)
		acct.Statements = append(acct.Statements, st)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return acct, nil
}

func (pg *PostgresEndpoint) SaveAccount(acct *Account) error {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	newVersion := int64(len(acct.Statements))
	tag, err := tx.Exec(ctx, pgUpdateAcctSQL, acct.Balance, newVersion, acct.AcctID, acct.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var one int
		err = tx.QueryRow(ctx, pgExistsAcctSQL, acct.AcctID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound{ID: acct.AcctID}
		}
		if err != nil {
			return err
		}
		return ErrConflict{ID: acct.AcctID}
	}

	if newVersion > acct.Version {
		batch := &pgx.Batch{}
		for i, st := range acct.Statements[acct.Version:] {
			seq := acct.Version + int64(i)
			batch.Queue(pgInsertStmtSQL, acct.AcctID, seq, st.Timestamp, string(st.Op), st.Amount, st.Balance)
		}
		btresults := tx.SendBatch(ctx, batch)
		for range acct.Statements[acct.Version:] {
			if _, err = btresults.Exec(); err != nil {
				btresults.Close()
				return err
			}
		}
		if err = btresults.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CreateAccount provisions an account row with an opening balance. Not part
// of the AccountStore contract; used by the seeder and tests.
func (pg *PostgresEndpoint) CreateAccount(id string, balance decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, pgInsertAcctSQL, id, balance); err != nil {
		return err
	}

	return err
}
