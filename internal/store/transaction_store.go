package store

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"strings"
	"time"

	"openvault/internal/models"

	"github.com/lib/pq"
)

const transactionColumns = `id, from_account_id, to_account_id, amount, type, description, "timestamp", status, reference, failure_reason`

type TransactionStore struct {
	db DB
}

// TransactionFilter narrows FindByAccount. Zero values mean no bound;
// Limit <= 0 means no limit.
type TransactionFilter struct {
	From   time.Time
	To     time.Time
	Type   models.TransactionType
	Limit  int
	Offset int
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Append inserts a terminal record. The log has no update or delete path.
func (s *TransactionStore) Append(ctx context.Context, tx Execer, txn models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		txn.ID, txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.Type, txn.Description,
		txn.Timestamp, txn.Status, txn.Reference, txn.FailureReason,
	)
	if isReferenceViolation(err) {
		return models.ErrDuplicateReference
	}
	return err
}

func (s *TransactionStore) FindByID(ctx context.Context, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err)
	}
	return row, nil
}

// FindByAccount streams the records touching accountID, newest first. The
// cursor stays open until the caller stops ranging.
func (s *TransactionStore) FindByAccount(ctx context.Context, accountID string, filter TransactionFilter) iter.Seq2[models.Transaction, error] {
	query, args := buildAccountQuery(accountID, filter)
	return func(yield func(models.Transaction, error) bool) {
		rows, err := s.db.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(models.Transaction{}, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var txn models.Transaction
			if err := rows.StructScan(&txn); err != nil {
				yield(models.Transaction{}, err)
				return
			}
			if !yield(txn, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Transaction{}, err)
		}
	}
}

func (s *TransactionStore) CountByAccount(ctx context.Context, accountID string, filter TransactionFilter) (int, error) {
	where, args := accountWhere(accountID, filter)
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(1) FROM transactions WHERE "+where, args...)
	return count, err
}

func buildAccountQuery(accountID string, filter TransactionFilter) (string, []any) {
	where, args := accountWhere(accountID, filter)
	query := "SELECT " + transactionColumns + " FROM transactions WHERE " + where + ` ORDER BY "timestamp" DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	return query, args
}

func accountWhere(accountID string, filter TransactionFilter) (string, []any) {
	var b strings.Builder
	b.WriteString("(from_account_id = $1 OR to_account_id = $1)")
	args := []any{accountID}
	next := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		b.WriteString(` AND "timestamp" >= ` + next(filter.From))
	}
	if !filter.To.IsZero() {
		b.WriteString(` AND "timestamp" < ` + next(filter.To))
	}
	if filter.Type != "" {
		b.WriteString(" AND type = " + next(filter.Type))
	}
	return b.String(), args
}

func isReferenceViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "reference")
}
