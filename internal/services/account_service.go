package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"openvault/internal/db"
	"openvault/internal/iban"
	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxAccountsPerUser = 5
	maxIBANAttempts           = 10
)

type IBANSource interface {
	Generate() string
}

type AccountService struct {
	scopes      ScopeRunner
	accounts    AccountReader
	ibans       IBANSource
	audit       AuditLogger
	logger      *zap.Logger
	maxAccounts int
	now         clock
	newID       func() string
}

func NewAccountService(scopes ScopeRunner, accounts AccountReader, audit AuditLogger, logger *zap.Logger, maxAccounts int) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAccounts <= 0 {
		maxAccounts = DefaultMaxAccountsPerUser
	}
	return &AccountService{
		scopes:      scopes,
		accounts:    accounts,
		ibans:       iban.NewGenerator(),
		audit:       audit,
		logger:      logger,
		maxAccounts: maxAccounts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Open creates an empty active account for userID with a fresh IBAN.
func (s *AccountService) Open(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error) {
	if userID == "" {
		return models.Account{}, models.ErrUnauthorized
	}
	count, err := s.accounts.CountByUser(ctx, userID)
	if err != nil {
		return models.Account{}, db.ClassifyError(err)
	}
	if count >= s.maxAccounts {
		return models.Account{}, fmt.Errorf("%w: at most %d accounts per user", models.ErrAccountLimitReached, s.maxAccounts)
	}
	number, err := s.uniqueIBAN(ctx)
	if err != nil {
		return models.Account{}, err
	}
	account := models.Account{
		ID:        s.newID(),
		IBAN:      number,
		UserID:    userID,
		Balance:   money.Zero(),
		Type:      accountType,
		Active:    true,
		Version:   1,
		CreatedAt: s.now().UTC(),
	}
	err = s.scopes.InScope(ctx, func(scope store.Scope) error {
		count, err := scope.CountUserAccounts(ctx, userID)
		if err != nil {
			return err
		}
		if count >= s.maxAccounts {
			return fmt.Errorf("%w: at most %d accounts per user", models.ErrAccountLimitReached, s.maxAccounts)
		}
		return scope.InsertAccount(ctx, account)
	})
	if err != nil {
		return models.Account{}, db.ClassifyError(err)
	}
	s.logger.Info("account opened",
		zap.String("user_id", userID),
		zap.String("account_id", account.ID),
		zap.String("type", string(account.Type)),
	)
	s.record(ctx, userID, "account.open", account)
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, userID, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, db.ClassifyError(err)
	}
	if !account.OwnedBy(userID) {
		return models.Account{}, models.ErrUnauthorized
	}
	return account, nil
}

func (s *AccountService) ListActive(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := s.accounts.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, db.ClassifyError(err)
	}
	return accounts, nil
}

func (s *AccountService) TotalBalance(ctx context.Context, userID string) (money.Money, error) {
	accounts, err := s.ListActive(ctx, userID)
	if err != nil {
		return money.Money{}, err
	}
	total := money.Zero()
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}
	return total, nil
}

func (s *AccountService) SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error) {
	checks, err := s.accounts.SelfCheck(ctx, userID)
	if err != nil {
		return nil, db.ClassifyError(err)
	}
	for _, check := range checks {
		if !check.Difference.IsZero() {
			s.logger.Warn("balance does not match ledger",
				zap.String("account_id", check.AccountID),
				zap.Stringer("difference", check.Difference),
			)
		}
	}
	return checks, nil
}

// Deactivate closes an empty account. Its transactions stay in the log.
func (s *AccountService) Deactivate(ctx context.Context, userID, accountID string) (models.Account, error) {
	var closed models.Account
	err := s.scopes.InScope(ctx, func(scope store.Scope) error {
		account, err := scope.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.OwnedBy(userID) {
			return models.ErrUnauthorized
		}
		if err := account.Deactivate(); err != nil {
			return err
		}
		if err := scope.SaveAccount(ctx, account); err != nil {
			return err
		}
		closed = account
		return nil
	})
	if err != nil {
		return models.Account{}, db.ClassifyError(err)
	}
	closed.Version++
	s.logger.Info("account deactivated", zap.String("user_id", userID), zap.String("account_id", accountID))
	s.record(ctx, userID, "account.deactivate", closed)
	return closed, nil
}

func (s *AccountService) uniqueIBAN(ctx context.Context) (string, error) {
	for range maxIBANAttempts {
		candidate := s.ibans.Generate()
		exists, err := s.accounts.ExistsByIBAN(ctx, candidate)
		if err != nil {
			return "", db.ClassifyError(err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique iban", models.ErrPersistenceFailure)
}

func (s *AccountService) record(ctx context.Context, userID, action string, account models.Account) {
	if s.audit == nil {
		return
	}
	data, _ := json.Marshal(map[string]string{
		"iban": account.IBAN,
		"type": string(account.Type),
	})
	if err := s.audit.Log(ctx, userID, action, "account", account.ID, string(data)); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
