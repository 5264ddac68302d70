package store

import (
	"context"

	"openvault/internal/models"
)

const accountColumns = `id, iban, user_id, balance, type, active, version, created_at`

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, iban, user_id, balance, type, active, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, account.ID, account.IBAN, account.UserID, account.Balance, account.Type, account.Active, account.Version, account.CreatedAt)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, notFound(err)
	}
	return row, nil
}

func (s *AccountStore) GetByIBAN(ctx context.Context, iban string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE iban = $1
	`, iban)
	if err != nil {
		return models.Account{}, notFound(err)
	}
	return row, nil
}

// GetForUpdate reads the row and holds its lock until tx ends.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, notFound(err)
	}
	return row, nil
}

// Save writes balance and active flag back only if nobody bumped the version
// since account was read. account.Version is the version that was read.
func (s *AccountStore) Save(ctx context.Context, tx Execer, account models.Account) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, active = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, account.Balance, account.Active, account.ID, account.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrConcurrentModification
	}
	return nil
}

func (s *AccountStore) ListActiveByUser(ctx context.Context, userID string) ([]models.Account, error) {
	rows := []models.Account{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM accounts WHERE user_id = $1`, userID)
	return count, err
}

// CountByUserForUpdate locks the owner's user row before counting, so scopes
// opening accounts for the same user count one after another.
func (s *AccountStore) CountByUserForUpdate(ctx context.Context, tx Tx, userID string) (int, error) {
	if _, err := tx.ExecContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return 0, err
	}
	var count int
	err := tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM accounts WHERE user_id = $1`, userID)
	return count, err
}

func (s *AccountStore) ExistsByIBAN(ctx context.Context, iban string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE iban = $1)`, iban)
	return exists, err
}

// SelfCheck compares each stored balance of the user with the balance
// recomputed from completed transactions.
func (s *AccountStore) SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error) {
	rows := []models.BalanceCheck{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       a.iban,
		       a.balance AS account_balance,
		       COALESCE(SUM(CASE WHEN t.to_account_id = a.id THEN t.amount ELSE -t.amount END), 0) AS ledger_sum,
		       a.balance - COALESCE(SUM(CASE WHEN t.to_account_id = a.id THEN t.amount ELSE -t.amount END), 0) AS difference
		FROM accounts a
		LEFT JOIN transactions t
		       ON t.status = 'COMPLETED' AND (t.from_account_id = a.id OR t.to_account_id = a.id)
		WHERE a.user_id = $1
		GROUP BY a.id, a.iban, a.balance
		ORDER BY a.iban
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
