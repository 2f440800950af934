package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
	"payment-gateway-service/repository"
)

// EventPublisher emits payment lifecycle events. A nil publisher is
// valid and means events are disabled.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// ReconciliationService applies a verified gateway result to a
// transaction. It owns the two exactly-once guarantees: the CAS on the
// transaction status decides which caller performs the terminal
// transition, and the unique wallet-transaction index decides which
// caller credits the wallet. The two are deliberately independent — a
// crash between them is healed by the next verification of the same
// transaction.
type ReconciliationService struct {
	txns      repository.TransactionStore
	wallets   repository.WalletStore
	users     repository.UserStore
	events    EventPublisher
	reference string // wallet ledger reference label, e.g. "connectips top-up"
	logger    *zap.Logger
}

func NewReconciliationService(
	txns repository.TransactionStore,
	wallets repository.WalletStore,
	users repository.UserStore,
	events EventPublisher,
	reference string,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		txns:      txns,
		wallets:   wallets,
		users:     users,
		events:    events,
		reference: reference,
		logger:    logger,
	}
}

// Apply reconciles txn against the gateway's verdict and returns the
// transaction re-read from the store. Safe to call any number of times
// from any trigger (redirect callback, webhook, status poll): repeats
// and races collapse to no-ops.
func (s *ReconciliationService) Apply(ctx context.Context, txn *models.Transaction, res *GatewayResult) (*models.Transaction, error) {
	switch res.Outcome {
	case OutcomeSuccess:
		if err := s.applySuccess(ctx, txn, res); err != nil {
			return nil, err
		}
	case OutcomeFailed:
		if err := s.applyFailure(ctx, txn, res, models.StatusFailed); err != nil {
			return nil, err
		}
	case OutcomeCancelled:
		if err := s.applyFailure(ctx, txn, res, models.StatusCancelled); err != nil {
			return nil, err
		}
	default:
		// PENDING and UNKNOWN carry no verdict; the state machine does
		// not move and a later trigger re-verifies.
		s.logger.Info("Gateway outcome not terminal, leaving transaction untouched",
			zap.String("txn_id", txn.TxnID),
			zap.String("outcome", string(res.Outcome)),
			zap.String("response_code", res.ResponseCode),
		)
		return txn, nil
	}

	return s.txns.FindByTxnID(ctx, txn.TxnID)
}

func (s *ReconciliationService) applySuccess(ctx context.Context, txn *models.Transaction, res *GatewayResult) error {
	transitioned, err := s.txns.MarkTerminal(ctx, txn.TxnID, repository.TerminalUpdate{
		Status:           models.StatusSuccess,
		GatewayReference: res.GatewayReference,
		PaymentMethod:    res.PaymentMethod,
	})
	if err != nil {
		return err
	}

	// The wallet credit is attempted on every successful verification,
	// not only by the caller that won the CAS. If a previous call
	// crashed after the transition but before the credit, this is where
	// the credit catches up; the unique ledger index keeps it to one.
	if err := s.creditWallet(ctx, txn, res.GatewayReference); err != nil {
		return err
	}

	if transitioned {
		s.logger.Info("Transaction completed",
			zap.String("txn_id", txn.TxnID),
			zap.String("gateway", txn.Gateway),
			zap.String("gateway_reference", res.GatewayReference),
			zap.Float64("amount", float64(txn.Amount)),
		)
		s.publish(ctx, txn, "payment_succeeded", res.GatewayReference)
	}
	return nil
}

func (s *ReconciliationService) applyFailure(ctx context.Context, txn *models.Transaction, res *GatewayResult, status models.TransactionStatus) error {
	errMsg := res.ResponseMessage
	if errMsg == "" && status == models.StatusFailed {
		errMsg = "payment failed at gateway"
	}
	transitioned, err := s.txns.MarkTerminal(ctx, txn.TxnID, repository.TerminalUpdate{
		Status:           status,
		GatewayReference: res.GatewayReference,
		PaymentMethod:    res.PaymentMethod,
		ErrorMessage:     errMsg,
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.logger.Info("Transaction closed without payment",
			zap.String("txn_id", txn.TxnID),
			zap.String("gateway", txn.Gateway),
			zap.String("status", string(status)),
			zap.String("response_code", res.ResponseCode),
		)
		s.publish(ctx, txn, "payment_failed", res.GatewayReference)
	}
	return nil
}

// EnsureCredited backfills the wallet credit for a transaction that is
// already terminal SUCCESS. Terminal short-circuit paths call this so
// that a credit lost between the status transition and the ledger
// insert (transient store error, crash) is applied by the next trigger
// instead of being dropped forever.
func (s *ReconciliationService) EnsureCredited(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.StatusSuccess {
		return nil
	}
	_, err := s.wallets.FindByTransactionID(ctx, txn.TxnID)
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		return err
	}
	s.logger.Warn("Successful transaction has no wallet credit, backfilling",
		zap.String("txn_id", txn.TxnID),
		zap.String("user_id", txn.UserID),
	)
	return s.creditWallet(ctx, txn, txn.GatewayReference)
}

func (s *ReconciliationService) creditWallet(ctx context.Context, txn *models.Transaction, gatewayReference string) error {
	user, err := s.users.FindByUserID(ctx, txn.UserID)
	if err != nil {
		return err
	}

	created, err := s.wallets.CreateSuccessful(ctx, &models.WalletTransaction{
		User:               user.ID,
		Amount:             txn.Amount,
		Type:               models.WalletTxTypeTopUp,
		TransactionID:      txn.TxnID,
		Currency:           txn.Currency,
		ExternalPaymentRef: gatewayReference,
		PaymentID:          gatewayReference,
		Reference:          s.reference,
		UserWalletUpdated:  true,
	})
	if err != nil {
		return err
	}
	if !created {
		// Ledger entry exists, so the balance was already incremented.
		s.logger.Info("Wallet already credited for transaction", zap.String("txn_id", txn.TxnID))
		return nil
	}

	if err := s.users.IncrementWallet(ctx, txn.UserID, txn.Amount); err != nil {
		// The ledger entry is in place but the balance is not. This
		// needs an operator; retrying here would race the index.
		s.logger.Error("Wallet ledger recorded but balance increment failed",
			zap.String("txn_id", txn.TxnID),
			zap.String("user_id", txn.UserID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Wallet credited",
		zap.String("txn_id", txn.TxnID),
		zap.String("user_id", txn.UserID),
		zap.Float64("amount", float64(txn.Amount)),
	)
	return nil
}

func (s *ReconciliationService) publish(ctx context.Context, txn *models.Transaction, eventType, reference string) {
	if s.events == nil {
		return
	}
	event := models.PaymentEvent{
		Type:          eventType,
		Gateway:       txn.Gateway,
		TransactionID: txn.TxnID,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		AmountPaisa:   txn.AmountPaisa,
		Currency:      txn.Currency,
		Reference:     reference,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		// Events are best effort; the payment state is already durable.
		s.logger.Error("Failed to publish payment event",
			zap.String("txn_id", txn.TxnID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
