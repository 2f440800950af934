package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payment-gateway-service/models"
	"payment-gateway-service/repository"
)

// --- Shared store mocks ---

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionStore) FindByTxnID(ctx context.Context, txnID string) (*models.Transaction, error) {
	args := m.Called(ctx, txnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) FindByGatewayReference(ctx context.Context, ref string) (*models.Transaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) MarkProcessing(ctx context.Context, txnID, gatewayReference string) error {
	args := m.Called(ctx, txnID, gatewayReference)
	return args.Error(0)
}

func (m *MockTransactionStore) MarkTerminal(ctx context.Context, txnID string, upd repository.TerminalUpdate) (bool, error) {
	args := m.Called(ctx, txnID, upd)
	return args.Bool(0), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByUserID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) IncrementWallet(ctx context.Context, userID string, amount models.MajorAmount) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

type MockWalletStore struct {
	mock.Mock
}

func (m *MockWalletStore) CreateSuccessful(ctx context.Context, wt *models.WalletTransaction) (bool, error) {
	args := m.Called(ctx, wt)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.WalletTransaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
