package services

import (
	"context"
	"errors"
	"time"

	"openvault/internal/db"
	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/store"

	"go.uber.org/zap"
)

type HistoryService struct {
	accounts     AccountReader
	transactions TransactionReader
	logger       *zap.Logger
}

type TransactionPage struct {
	Items  []models.Transaction `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func NewHistoryService(accounts AccountReader, transactions TransactionReader, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{accounts: accounts, transactions: transactions, logger: logger}
}

func (s *HistoryService) List(ctx context.Context, userID, accountID string, filter store.TransactionFilter) (TransactionPage, error) {
	if _, err := s.owned(ctx, userID, accountID); err != nil {
		return TransactionPage{}, err
	}
	filter.Offset = max(filter.Offset, 0)
	total, err := s.transactions.CountByAccount(ctx, accountID, filter)
	if err != nil {
		return TransactionPage{}, db.ClassifyError(err)
	}
	page := TransactionPage{Items: []models.Transaction{}, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for txn, err := range s.transactions.FindByAccount(ctx, accountID, filter) {
		if err != nil {
			return TransactionPage{}, db.ClassifyError(err)
		}
		page.Items = append(page.Items, txn)
	}
	return page, nil
}

// Get returns the record when userID owns at least one of its accounts.
func (s *HistoryService) Get(ctx context.Context, userID, transactionID string) (models.Transaction, error) {
	txn, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, db.ClassifyError(err)
	}
	for _, accountID := range []*string{txn.FromAccountID, txn.ToAccountID} {
		if accountID == nil {
			continue
		}
		account, err := s.accounts.GetByID(ctx, *accountID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.Transaction{}, db.ClassifyError(err)
		}
		if account.OwnedBy(userID) {
			return txn, nil
		}
	}
	return models.Transaction{}, models.ErrUnauthorized
}

// Stats summarises the calendar month of now. Every record of the month is
// counted; only COMPLETED ones contribute to the totals.
func (s *HistoryService) Stats(ctx context.Context, userID, accountID string, now time.Time) (models.Stats, error) {
	account, err := s.owned(ctx, userID, accountID)
	if err != nil {
		return models.Stats{}, err
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats := models.Stats{
		TotalIncoming:  money.Zero(),
		TotalOutgoing:  money.Zero(),
		CurrentBalance: account.Balance,
	}
	for txn, err := range s.transactions.FindByAccount(ctx, accountID, store.TransactionFilter{From: monthStart}) {
		if err != nil {
			return models.Stats{}, db.ClassifyError(err)
		}
		stats.TotalTransactions++
		if txn.Status != models.StatusCompleted {
			continue
		}
		if txn.IsIncoming(accountID) {
			stats.TotalIncoming = stats.TotalIncoming.Add(txn.Amount)
		}
		if txn.IsOutgoing(accountID) {
			stats.TotalOutgoing = stats.TotalOutgoing.Add(txn.Amount)
		}
	}
	return stats, nil
}

func (s *HistoryService) owned(ctx context.Context, userID, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, db.ClassifyError(err)
	}
	if !account.OwnedBy(userID) {
		return models.Account{}, models.ErrUnauthorized
	}
	return account, nil
}
