package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/middleware"
	"payment-gateway-service/models"
	"payment-gateway-service/services"
)

const testFrontendURL = "http://localhost:3000"

func connectIPSRouter(gw *MockConnectIPSGateway, txns *MockTransactionStore, recon *MockReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pc := &ConnectIPSController{
		Gateway:     gw,
		Txns:        txns,
		Recon:       recon,
		FrontendURL: testFrontendURL,
		Logger:      zap.NewNop(),
	}
	r := gin.New()
	r.POST("/payment/connectips/initiate", middleware.AuthMiddleware(), pc.InitiatePayment)
	r.GET("/payment/connectips/success", pc.PaymentSuccess)
	r.GET("/payment/connectips/failure", pc.PaymentFailure)
	r.POST("/payment/connectips/webhook", pc.Webhook)
	r.GET("/payment/connectips/status/:txnId", pc.TransactionStatus)
	return r
}

func TestConnectIPSInitiateEndpoint(t *testing.T) {
	t.Run("Success - 200 with form fields", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		gw.On("InitiatePayment", mock.Anything, models.MajorAmount(100.5), "top-up", "user-1").
			Return(&services.FormPaymentResult{
				GatewayURL: "https://uat.connectips.com/connectipswebgw/loginpage",
				Method:     "POST",
				Fields:     map[string]string{"TXNID": "TXN1", "TOKEN": "sig"},
				TxnID:      "TXN1",
			}, nil).Once()
		router := connectIPSRouter(gw, new(MockTransactionStore), new(MockReconciler))

		body, _ := json.Marshal(gin.H{"amount": 100.5, "description": "top-up"})
		req := httptest.NewRequest(http.MethodPost, "/payment/connectips/initiate", bytes.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "TXN1", resp["transactionId"])
		gw.AssertExpectations(t)
	})

	t.Run("Failure - 401 without user identity", func(t *testing.T) {
		router := connectIPSRouter(new(MockConnectIPSGateway), new(MockTransactionStore), new(MockReconciler))

		body, _ := json.Marshal(gin.H{"amount": 100})
		req := httptest.NewRequest(http.MethodPost, "/payment/connectips/initiate", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failure - 400 on missing amount", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		router := connectIPSRouter(gw, new(MockTransactionStore), new(MockReconciler))

		req := httptest.NewRequest(http.MethodPost, "/payment/connectips/initiate", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		gw.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - 400 from validation error", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		gw.On("InitiatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperrors.Validation("Invalid amount", nil)).Once()
		router := connectIPSRouter(gw, new(MockTransactionStore), new(MockReconciler))

		body, _ := json.Marshal(gin.H{"amount": 10.555})
		req := httptest.NewRequest(http.MethodPost, "/payment/connectips/initiate", bytes.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConnectIPSRedirects(t *testing.T) {
	processing := &models.Transaction{TxnID: "TXN1", Status: models.StatusProcessing, UserID: "user-1"}

	t.Run("Success redirect - verified and reconciled", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(processing, nil).Once()
		res := &services.GatewayResult{Outcome: services.OutcomeSuccess}
		gw.On("VerifyTransaction", mock.Anything, processing).Return(res, nil).Once()
		recon.On("Apply", mock.Anything, processing, res).
			Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess}, nil).Once()

		router := connectIPSRouter(gw, txns, recon)
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/success?TXNID=TXN1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, testFrontendURL+"/payment-success?txnId=TXN1", w.Header().Get("Location"))
	})

	t.Run("Already terminal - no verification call", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		txns.On("FindByTxnID", mock.Anything, "TXN1").
			Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusFailed}, nil).Once()

		router := connectIPSRouter(gw, txns, new(MockReconciler))
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/success?TXNID=TXN1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, testFrontendURL+"/payment-failed?txnId=TXN1", w.Header().Get("Location"))
		gw.AssertNotCalled(t, "VerifyTransaction", mock.Anything, mock.Anything)
	})

	t.Run("Failure redirect - inconclusive verification becomes cancelled", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(processing, nil).Once()
		gw.On("VerifyTransaction", mock.Anything, processing).
			Return(&services.GatewayResult{Outcome: services.OutcomeUnknown}, nil).Once()
		recon.On("Apply", mock.Anything, processing, mock.MatchedBy(func(res *services.GatewayResult) bool {
			return res.Outcome == services.OutcomeCancelled
		})).Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusCancelled}, nil).Once()

		router := connectIPSRouter(gw, txns, recon)
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/failure?TXNID=TXN1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, testFrontendURL+"/payment-failed?txnId=TXN1", w.Header().Get("Location"))
		recon.AssertExpectations(t)
	})

	t.Run("Unknown transaction - redirect to failure page", func(t *testing.T) {
		txns := new(MockTransactionStore)
		txns.On("FindByTxnID", mock.Anything, "NOPE").
			Return(nil, apperrors.NotFound("Transaction not found", nil)).Once()

		router := connectIPSRouter(new(MockConnectIPSGateway), txns, new(MockReconciler))
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/success?TXNID=NOPE", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, testFrontendURL+"/payment-failed", w.Header().Get("Location"))
	})
}

func TestConnectIPSWebhookEndpoint(t *testing.T) {
	webhook := func(router *gin.Engine, payload gin.H) *httptest.ResponseRecorder {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/payment/connectips/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Success - reconciled to SUCCESS", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		processing := &models.Transaction{TxnID: "TXN1", Status: models.StatusProcessing}

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(processing, nil).Once()
		res := &services.GatewayResult{Outcome: services.OutcomeSuccess}
		gw.On("VerifyTransaction", mock.Anything, processing).Return(res, nil).Once()
		recon.On("Apply", mock.Anything, processing, res).
			Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess}, nil).Once()

		w := webhook(connectIPSRouter(gw, txns, recon), gin.H{"txnId": "TXN1", "status": "SUCCESS"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": true}`, w.Body.String())
	})

	t.Run("Unknown transaction - still 200", func(t *testing.T) {
		txns := new(MockTransactionStore)
		txns.On("FindByTxnID", mock.Anything, "NOPE").
			Return(nil, apperrors.NotFound("Transaction not found", nil)).Once()

		w := webhook(connectIPSRouter(new(MockConnectIPSGateway), txns, new(MockReconciler)), gin.H{"txnId": "NOPE"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": false}`, w.Body.String())
	})

	t.Run("Already terminal - retried webhook backfills a lost credit", func(t *testing.T) {
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		terminal := &models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess, UserID: "user-1"}

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(terminal, nil).Once()
		recon.On("EnsureCredited", mock.Anything, terminal).Return(nil).Once()

		w := webhook(connectIPSRouter(new(MockConnectIPSGateway), txns, recon), gin.H{"txnId": "TXN1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": true}`, w.Body.String())
		recon.AssertExpectations(t)
	})

	t.Run("Already terminal - failed backfill answers false so the gateway retries", func(t *testing.T) {
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		terminal := &models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess, UserID: "user-1"}

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(terminal, nil).Once()
		recon.On("EnsureCredited", mock.Anything, terminal).
			Return(apperrors.Internal("store unavailable", nil)).Once()

		w := webhook(connectIPSRouter(new(MockConnectIPSGateway), txns, recon), gin.H{"txnId": "TXN1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": false}`, w.Body.String())
	})

	t.Run("Verification failure - still 200, state untouched", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		processing := &models.Transaction{TxnID: "TXN1", Status: models.StatusProcessing}

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(processing, nil).Once()
		gw.On("VerifyTransaction", mock.Anything, processing).
			Return(nil, apperrors.Gateway("ConnectIPS validation call failed", nil)).Once()

		w := webhook(connectIPSRouter(gw, txns, recon), gin.H{"txnId": "TXN1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": false}`, w.Body.String())
		recon.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConnectIPSStatusEndpoint(t *testing.T) {
	t.Run("Terminal transaction served from store", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		txns.On("FindByTxnID", mock.Anything, "TXN1").
			Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess, Amount: 100}, nil).Once()
		recon.On("EnsureCredited", mock.Anything, mock.Anything).Return(nil).Once()

		router := connectIPSRouter(gw, txns, recon)
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/status/TXN1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success     bool `json:"success"`
			Transaction struct {
				Status string `json:"status"`
			} `json:"transaction"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "SUCCESS", resp.Transaction.Status)
		gw.AssertNotCalled(t, "VerifyTransaction", mock.Anything, mock.Anything)
	})

	t.Run("Not found - 404", func(t *testing.T) {
		txns := new(MockTransactionStore)
		txns.On("FindByTxnID", mock.Anything, "NOPE").
			Return(nil, apperrors.NotFound("Transaction not found", nil)).Once()

		router := connectIPSRouter(new(MockConnectIPSGateway), txns, new(MockReconciler))
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/status/NOPE", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Non-terminal - re-verified before responding", func(t *testing.T) {
		gw := new(MockConnectIPSGateway)
		txns := new(MockTransactionStore)
		recon := new(MockReconciler)
		processing := &models.Transaction{TxnID: "TXN1", Status: models.StatusProcessing}

		txns.On("FindByTxnID", mock.Anything, "TXN1").Return(processing, nil).Once()
		res := &services.GatewayResult{Outcome: services.OutcomeSuccess}
		gw.On("VerifyTransaction", mock.Anything, processing).Return(res, nil).Once()
		recon.On("Apply", mock.Anything, processing, res).
			Return(&models.Transaction{TxnID: "TXN1", Status: models.StatusSuccess}, nil).Once()

		router := connectIPSRouter(gw, txns, recon)
		req := httptest.NewRequest(http.MethodGet, "/payment/connectips/status/TXN1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"SUCCESS"`)
	})
}
