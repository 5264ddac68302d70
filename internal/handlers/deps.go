package handlers

import (
	"context"
	"time"

	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/services"
	"openvault/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AuditStore interface {
	Log(ctx context.Context, actorID, action, entityType, entityID, data string) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error)
}

type LedgerService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (models.Transaction, error)
	Deposit(ctx context.Context, req services.DepositRequest) (models.Transaction, error)
	Withdraw(ctx context.Context, req services.WithdrawRequest) (models.Transaction, error)
}

type AccountService interface {
	Open(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error)
	Get(ctx context.Context, userID, accountID string) (models.Account, error)
	ListActive(ctx context.Context, userID string) ([]models.Account, error)
	TotalBalance(ctx context.Context, userID string) (money.Money, error)
	SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error)
	Deactivate(ctx context.Context, userID, accountID string) (models.Account, error)
}

type HistoryService interface {
	List(ctx context.Context, userID, accountID string, filter store.TransactionFilter) (services.TransactionPage, error)
	Get(ctx context.Context, userID, transactionID string) (models.Transaction, error)
	Stats(ctx context.Context, userID, accountID string, now time.Time) (models.Stats, error)
}
