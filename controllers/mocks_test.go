package controllers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payment-gateway-service/models"
	"payment-gateway-service/repository"
	"payment-gateway-service/services"
)

// --- Gateway mocks ---

type MockConnectIPSGateway struct {
	mock.Mock
}

func (m *MockConnectIPSGateway) InitiatePayment(ctx context.Context, amount models.MajorAmount, description, userID string) (*services.FormPaymentResult, error) {
	args := m.Called(ctx, amount, description, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FormPaymentResult), args.Error(1)
}

func (m *MockConnectIPSGateway) VerifyTransaction(ctx context.Context, txn *models.Transaction) (*services.GatewayResult, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GatewayResult), args.Error(1)
}

type MockHBLGateway struct {
	mock.Mock
}

func (m *MockHBLGateway) GeneratePaymentPage(ctx context.Context, amount models.MajorAmount, description, userID string) (*services.PagePaymentResult, error) {
	args := m.Called(ctx, amount, description, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PagePaymentResult), args.Error(1)
}

func (m *MockHBLGateway) VerifyTransaction(ctx context.Context, txn *models.Transaction) (*services.GatewayResult, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GatewayResult), args.Error(1)
}

func (m *MockHBLGateway) DecodeWebhook(body []byte) (*services.HBLWebhookNotification, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.HBLWebhookNotification), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Apply(ctx context.Context, txn *models.Transaction, res *services.GatewayResult) (*models.Transaction, error) {
	args := m.Called(ctx, txn, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockReconciler) EnsureCredited(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

// --- Store mock ---

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
