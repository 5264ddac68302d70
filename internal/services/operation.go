package services

import (
	"time"

	"openvault/internal/models"

	"go.uber.org/zap"
)

type opState string

const (
	stateValidating opState = "VALIDATING"
	stateLocking    opState = "LOCKING"
	stateMutating   opState = "MUTATING"
	stateCommitted  opState = "COMMITTED"
	stateFailed     opState = "FAILED"
)

// operation tracks one ledger call through its states. Any state may move to
// FAILED; COMMITTED and FAILED are terminal.
type operation struct {
	kind    models.TransactionType
	state   opState
	started time.Time
	logger  *zap.Logger
}

func (s *LedgerService) begin(kind models.TransactionType, fields ...zap.Field) *operation {
	op := &operation{
		kind:    kind,
		state:   stateValidating,
		started: time.Now(),
		logger:  s.logger.With(append(fields, zap.String("operation", string(kind)))...),
	}
	op.logger.Debug("ledger operation started", zap.String("state", string(op.state)))
	return op
}

func (op *operation) advance(next opState, fields ...zap.Field) {
	if op.terminal() {
		return
	}
	op.state = next
	op.logger.Debug("ledger operation state", append(fields, zap.String("state", string(next)))...)
}

func (op *operation) commit(txn models.Transaction) {
	op.state = stateCommitted
	op.logger.Info("ledger operation committed",
		zap.String("transaction_id", txn.ID),
		zap.String("reference", txn.Reference),
		zap.Duration("elapsed", time.Since(op.started)),
	)
}

func (op *operation) fail(err error) error {
	from := op.state
	op.state = stateFailed
	op.logger.Warn("ledger operation failed",
		zap.String("failed_in", string(from)),
		zap.Duration("elapsed", time.Since(op.started)),
		zap.Error(err),
	)
	return err
}

func (op *operation) terminal() bool {
	return op.state == stateCommitted || op.state == stateFailed
}
