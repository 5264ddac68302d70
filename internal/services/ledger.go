package services

import (
	"context"
	"iter"
	"time"

	"openvault/internal/models"
	"openvault/internal/store"
	"openvault/internal/websocket"
)

type ScopeRunner interface {
	InScope(ctx context.Context, fn func(store.Scope) error) error
}

type AccountReader interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByIBAN(ctx context.Context, iban string) (models.Account, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Account, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	ExistsByIBAN(ctx context.Context, iban string) (bool, error)
	SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error)
}

type TransactionReader interface {
	FindByID(ctx context.Context, transactionID string) (models.Transaction, error)
	FindByAccount(ctx context.Context, accountID string, filter store.TransactionFilter) iter.Seq2[models.Transaction, error]
	CountByAccount(ctx context.Context, accountID string, filter store.TransactionFilter) (int, error)
}

type ReferenceSource interface {
	Next() string
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type AuditLogger interface {
	Log(ctx context.Context, actorID, action, entityType, entityID, data string) error
}

type noopHub struct{}

func (noopHub) BroadcastBalance(string, websocket.BalanceUpdate) {}

type clock func() time.Time
